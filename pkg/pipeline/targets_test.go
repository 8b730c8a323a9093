package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherfm/pkg/clock"
	"aetherfm/pkg/config"
	"aetherfm/pkg/model"
)

type songList []*model.Song

func (l songList) AllSongs() []*model.Song { return l }

type tierMap map[string]model.Tier

func (m tierMap) TierOf(id string) model.Tier {
	if t, ok := m[id]; ok {
		return t
	}
	return model.TierDiscovery
}

func testSongs(ids ...string) songList {
	var l songList
	for _, id := range ids {
		l = append(l, &model.Song{ID: id})
	}
	return l
}

func testCal() *clock.Calendar {
	return clock.New(config.DefaultConfig().Schedule)
}

func TestEnumerateSongTargets(t *testing.T) {
	b := Batch{
		Types:    []model.ContentType{model.TypeSongIntro},
		Personas: []model.PersonaID{model.PersonaA, model.PersonaB},
	}
	keys := EnumerateTargets(b, testSongs("a", "b", "c"), tierMap{}, testCal())
	require.Len(t, keys, 6, "3 songs x 2 personas")
	assert.Equal(t, model.ContentKey{Type: model.TypeSongIntro, Persona: model.PersonaA, Target: "a"}, keys[0])
}

func TestEnumerateExcludesBanished(t *testing.T) {
	b := Batch{
		Types:    []model.ContentType{model.TypeSongIntro},
		Personas: []model.PersonaID{model.PersonaA},
	}
	tiers := tierMap{"b": model.TierBanished}
	keys := EnumerateTargets(b, testSongs("a", "b", "c"), tiers, testCal())
	require.Len(t, keys, 2)
	for _, k := range keys {
		assert.NotEqual(t, "b", k.Target)
	}
}

func TestEnumerateTimeSlots(t *testing.T) {
	b := Batch{
		Types:    []model.ContentType{model.TypeTime},
		Personas: []model.PersonaID{model.PersonaA},
	}
	keys := EnumerateTargets(b, testSongs(), tierMap{}, testCal())
	require.Len(t, keys, 48)
	assert.Equal(t, "00-00", keys[0].Target)
	assert.Equal(t, "00-30", keys[1].Target)
	assert.Equal(t, "23-30", keys[47].Target)
}

func TestEnumerateWeatherAndShows(t *testing.T) {
	b := Batch{
		Types:    []model.ContentType{model.TypeWeather, model.TypeShowIntro, model.TypeShowOutro},
		Personas: []model.PersonaID{model.PersonaA},
	}
	keys := EnumerateTargets(b, testSongs(), tierMap{}, testCal())
	require.Len(t, keys, 5, "3 weather windows + show intro + show outro")
	assert.Equal(t, "morning", keys[0].Target)
	assert.Equal(t, "evening_show", keys[3].Target)
	assert.Equal(t, "evening_show", keys[4].Target)
}

func TestEnumerateHandoffs(t *testing.T) {
	b := Batch{
		Types:    []model.ContentType{model.TypeHandoff},
		Personas: []model.PersonaID{model.PersonaA},
	}
	keys := EnumerateTargets(b, testSongs(), tierMap{}, testCal())
	require.Len(t, keys, 2, "default schedule has two persona transitions")
	assert.Equal(t, "06-00-B-A", keys[0].Target)
	assert.Equal(t, "18-00-A-B", keys[1].Target)
}

func TestEnumerateLimit(t *testing.T) {
	b := Batch{
		Types:    []model.ContentType{model.TypeSongIntro},
		Personas: []model.PersonaID{model.PersonaA},
		Limit:    2,
	}
	keys := EnumerateTargets(b, testSongs("a", "b", "c", "d"), tierMap{}, testCal())
	require.Len(t, keys, 2)
	assert.Equal(t, "a", keys[0].Target)
	assert.Equal(t, "b", keys[1].Target)
}

func TestEnumerateLimitDoesNotCapSlots(t *testing.T) {
	b := Batch{
		Types:    []model.ContentType{model.TypeTime},
		Personas: []model.PersonaID{model.PersonaA},
		Limit:    2,
	}
	keys := EnumerateTargets(b, testSongs(), tierMap{}, testCal())
	assert.Len(t, keys, 48, "limit applies to song-like targets only")
}

func TestEnumerateRandomDeterministicBySeed(t *testing.T) {
	b := Batch{
		Types:    []model.ContentType{model.TypeSongIntro},
		Personas: []model.PersonaID{model.PersonaA},
		Random:   true,
		Seed:     7,
	}
	songs := testSongs("a", "b", "c", "d", "e")
	first := EnumerateTargets(b, songs, tierMap{}, testCal())
	second := EnumerateTargets(b, songs, tierMap{}, testCal())
	assert.Equal(t, first, second, "same seed, same order")
}

func TestEnumerateDeterministic(t *testing.T) {
	b := Batch{
		Types:    []model.ContentType{model.TypeSongIntro, model.TypeTime},
		Personas: []model.PersonaID{model.PersonaA, model.PersonaB},
	}
	songs := testSongs("a", "b")
	first := EnumerateTargets(b, songs, tierMap{}, testCal())
	second := EnumerateTargets(b, songs, tierMap{}, testCal())
	assert.Equal(t, first, second)
}
