// Package weather fetches current conditions for weather announcements.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aetherfm/pkg/cache"
	"aetherfm/pkg/request"
)

const cacheKey = "weather_conditions"

// Conditions is a typed snapshot of current weather.
type Conditions struct {
	TemperatureC float64
	WindSpeedKmh float64
	Code         int
	Description  string
	FetchedAt    time.Time
}

// Summary renders the conditions as plain prose for a writer brief.
func (c *Conditions) Summary() string {
	return fmt.Sprintf("%s, %.0f degrees Celsius, wind %.0f km/h",
		c.Description, c.TemperatureC, c.WindSpeedKmh)
}

// Provider fetches and caches conditions from an open-meteo compatible
// endpoint.
type Provider struct {
	client   *request.Client
	endpoint string
	lat, lon float64
	ttl      time.Duration
	store    cache.Cacher // optional persistent fallback

	mu     sync.Mutex
	cached *Conditions
}

// NewProvider creates a provider. ttl bounds cache staleness. store is an
// optional persistent cache; when a fetch fails the last stored conditions
// are served instead, however stale.
func NewProvider(client *request.Client, endpoint string, lat, lon float64, ttl time.Duration, store cache.Cacher) *Provider {
	return &Provider{client: client, endpoint: endpoint, lat: lat, lon: lon, ttl: ttl, store: store}
}

// Current returns conditions, served from cache within the TTL.
func (p *Provider) Current(ctx context.Context) (*Conditions, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && time.Since(p.cached.FetchedAt) < p.ttl {
		return p.cached, nil
	}

	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&current_weather=true", p.endpoint, p.lat, p.lon)
	body, err := p.client.Get(ctx, "weather", url)
	if err != nil {
		if fallback := p.restore(ctx); fallback != nil {
			slog.Warn("weather fetch failed, serving stored conditions", "error", err, "age", time.Since(fallback.FetchedAt))
			p.cached = fallback
			return fallback, nil
		}
		return nil, fmt.Errorf("weather fetch: %w", err)
	}

	var resp struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
			WeatherCode int     `json:"weathercode"`
		} `json:"current_weather"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("weather parse: %w", err)
	}

	p.cached = &Conditions{
		TemperatureC: resp.CurrentWeather.Temperature,
		WindSpeedKmh: resp.CurrentWeather.WindSpeed,
		Code:         resp.CurrentWeather.WeatherCode,
		Description:  describeCode(resp.CurrentWeather.WeatherCode),
		FetchedAt:    time.Now(),
	}
	p.persist(ctx, p.cached)
	return p.cached, nil
}

func (p *Provider) persist(ctx context.Context, c *Conditions) {
	if p.store == nil {
		return
	}
	data, err := json.Marshal(c)
	if err != nil {
		return
	}
	_ = p.store.SetCache(ctx, cacheKey, data)
}

func (p *Provider) restore(ctx context.Context) *Conditions {
	if p.store == nil {
		return nil
	}
	data, ok := p.store.GetCache(ctx, cacheKey)
	if !ok {
		return nil
	}
	var c Conditions
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}
	return &c
}

// describeCode maps WMO weather interpretation codes to short prose.
func describeCode(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 2:
		return "partly cloudy"
	case code == 3:
		return "overcast"
	case code == 45 || code == 48:
		return "foggy"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorms"
	}
	return "mixed conditions"
}
