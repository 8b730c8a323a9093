package prompt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"aetherfm/pkg/config"
	"aetherfm/pkg/llm"
	"aetherfm/pkg/model"
)

// Data is the gathered context for a writer prompt.
type Data map[string]any

// SongSource resolves song ids to catalog entries. Unknown ids yield nil.
type SongSource interface {
	GetSong(id string) *model.Song
}

// Assembler builds writer briefs from content keys. Each content type maps to
// a template of the same name; the assembler injects persona and target
// context before rendering.
type Assembler struct {
	prompts *Manager
	cfg     *config.Config
	songs   SongSource
}

// NewAssembler creates an assembler. songs may be nil when no song content
// will be requested.
func NewAssembler(prompts *Manager, cfg *config.Config, songs SongSource) *Assembler {
	return &Assembler{prompts: prompts, cfg: cfg, songs: songs}
}

// ForKey assembles the brief for a content key. extra carries caller-supplied
// context such as a weather summary and overrides assembled fields on clash.
func (a *Assembler) ForKey(key model.ContentKey, extra Data) (llm.Brief, error) {
	persona := a.cfg.Persona(key.Persona)
	if persona == nil {
		return llm.Brief{}, fmt.Errorf("unknown persona %q", key.Persona)
	}

	pd := Data{
		"StationName": "Aether FM",
		"DJName":      persona.DisplayName,
		"StyleCard":   formatStyleCard(persona.StyleCard),
	}
	if err := a.injectTarget(pd, key); err != nil {
		return llm.Brief{}, err
	}
	for k, v := range extra {
		pd[k] = v
	}

	rendered, err := a.prompts.Render(string(key.Type)+".tmpl", pd)
	if err != nil {
		return llm.Brief{}, fmt.Errorf("render prompt for %s: %w", key, err)
	}

	return llm.Brief{
		ContentType: key.Type,
		Persona:     persona,
		Target:      key.Target,
		Prompt:      rendered,
	}, nil
}

func (a *Assembler) injectTarget(pd Data, key model.ContentKey) error {
	switch key.Type {
	case model.TypeSongIntro, model.TypeSongOutro:
		if a.songs == nil {
			return fmt.Errorf("no song source for %s", key)
		}
		song := a.songs.GetSong(key.Target)
		if song == nil {
			return fmt.Errorf("song %q not in catalog", key.Target)
		}
		pd["Artist"] = song.Artist
		pd["Title"] = song.Title
	case model.TypeTime:
		pd["Slot"] = key.Target
		pd["SpokenTime"] = spokenSlot(key.Target)
	case model.TypeWeather:
		pd["Window"] = key.Target
	case model.TypeShowIntro, model.TypeShowOutro:
		pd["ShowID"] = key.Target
		pd["ShowName"] = strings.ReplaceAll(key.Target, "_", " ")
	case model.TypeHandoff:
		from, to := handoffPersonas(key.Target)
		if p := a.cfg.Persona(from); p != nil {
			pd["FromName"] = p.DisplayName
		}
		if p := a.cfg.Persona(to); p != nil {
			pd["ToName"] = p.DisplayName
		}
	}
	return nil
}

// formatStyleCard renders a style card as "key: value" lines in stable order.
func formatStyleCard(card map[string]string) string {
	if len(card) == 0 {
		return ""
	}
	keys := make([]string, 0, len(card))
	for k := range card {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, card[k])
	}
	return b.String()
}

// spokenSlot converts an "HH-MM" slot id into spoken clock time, e.g.
// "14-30" becomes "2:30 PM". Unparseable slots are returned as-is.
func spokenSlot(slot string) string {
	parts := strings.SplitN(slot, "-", 2)
	if len(parts) != 2 {
		return slot
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return slot
	}
	suffix := "AM"
	display := h
	switch {
	case h == 0:
		display = 12
	case h == 12:
		suffix = "PM"
	case h > 12:
		display = h - 12
		suffix = "PM"
	}
	if m == 0 {
		return fmt.Sprintf("%d o'clock %s", display, suffix)
	}
	return fmt.Sprintf("%d:%02d %s", display, m, suffix)
}

// handoffPersonas parses a handoff target "HH-MM-from-to" into persona ids.
func handoffPersonas(target string) (from, to model.PersonaID) {
	parts := strings.Split(target, "-")
	if len(parts) < 4 {
		return "", ""
	}
	return model.PersonaID(parts[len(parts)-2]), model.PersonaID(parts[len(parts)-1])
}
