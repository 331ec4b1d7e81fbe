package telemetry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/airsense/indoor-comfort/internal/common"
	"github.com/airsense/indoor-comfort/internal/store"
	"github.com/airsense/indoor-comfort/internal/telemetry/sources"
)

// Store is the slice of persistence the ingestion pipeline needs: pure
// appends, nothing else.
type Store interface {
	InsertNodeReadings(ctx context.Context, readings []store.NodeReading) error
	InsertOutdoorReading(ctx context.Context, r *store.OutdoorReading) error
}

// NodeSource reports a batch of per-device indoor samples.
type NodeSource interface {
	Fetch(ctx context.Context) ([]sources.NodeSample, error)
}

// PollutantSource reports current ambient pollutant conditions.
type PollutantSource interface {
	Fetch(ctx context.Context) (sources.PollutantReading, error)
}

// WeatherSource reports current ambient weather conditions.
type WeatherSource interface {
	Fetch(ctx context.Context) (sources.WeatherReading, error)
}

// Service normalizes upstream telemetry and appends it to the store.
type Service struct {
	store      Store
	nodes      NodeSource
	pollutants PollutantSource
	weather    WeatherSource
}

func NewService(st Store, nodes NodeSource, pollutants PollutantSource, weather WeatherSource) *Service {
	return &Service{
		store:      st,
		nodes:      nodes,
		pollutants: pollutants,
		weather:    weather,
	}
}

// IngestNodeReadings runs one indoor poll cycle: fetch, normalize, append.
// An empty upstream batch is a logged no-op; the next tick tries again.
func (s *Service) IngestNodeReadings(ctx context.Context) error {
	samples, err := s.nodes.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch node samples: %w", err)
	}
	if len(samples) == 0 {
		log.Println("telemetry: no node samples received; skipping cycle")
		return nil
	}

	readings := make([]store.NodeReading, 0, len(samples))
	for _, sample := range samples {
		readings = append(readings, store.NodeReading{
			DeviceKey: sample.DeviceKey,
			Sample:    store.JSONMap(sample.Data),
			SourceTS:  sampleTimestamp(sample.Data),
		})
	}

	if err := s.store.InsertNodeReadings(ctx, readings); err != nil {
		return fmt.Errorf("store node readings: %w", err)
	}
	log.Printf("telemetry: inserted %d node readings", len(readings))
	return nil
}

// sampleTimestamp normalizes the source-reported timestamp. Samples with a
// missing or malformed timestamp fall back to the ingestion instant.
func sampleTimestamp(data map[string]any) time.Time {
	if raw, ok := data["timestamp"].(string); ok {
		if ts, err := common.ParseSensorTimestamp(raw); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}

// IngestOutdoorReading runs one outdoor poll cycle. Both sources must
// succeed; partial success aborts the cycle without writing anything.
func (s *Service) IngestOutdoorReading(ctx context.Context) error {
	var (
		wg         sync.WaitGroup
		pollutants sources.PollutantReading
		weather    sources.WeatherReading
		pollErr    error
		weatherErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		pollutants, pollErr = s.pollutants.Fetch(ctx)
	}()
	go func() {
		defer wg.Done()
		weather, weatherErr = s.weather.Fetch(ctx)
	}()
	wg.Wait()

	if pollErr != nil {
		return fmt.Errorf("fetch pollutant data: %w", pollErr)
	}
	if weatherErr != nil {
		return fmt.Errorf("fetch weather data: %w", weatherErr)
	}

	reading := store.OutdoorReading{
		RecordedAt: common.FormatDisplay(time.Now()),
		Measurements: store.JSONMap{
			"pm10":                 pollutants.Pm10,
			"pm2_5":                pollutants.Pm25,
			"carbon_monoxide":      pollutants.CarbonMonoxide,
			"dust":                 pollutants.Dust,
			"temperature_2m":       weather.Temperature2m,
			"relative_humidity_2m": weather.RelativeHumidity2m,
		},
		Metadata: store.JSONMap{
			"wind_speed_10m":     weather.WindSpeed10m,
			"wind_direction_10m": weather.WindDirection10m,
			"wind_gusts_10m":     weather.WindGusts10m,
			"rain":               weather.Rain,
			"precipitation":      weather.Precipitation,
			"is_day":             weather.IsDay,
		},
	}

	if err := s.store.InsertOutdoorReading(ctx, &reading); err != nil {
		return fmt.Errorf("store outdoor reading: %w", err)
	}
	log.Printf("telemetry: inserted outdoor reading @ %s", reading.RecordedAt)
	return nil
}
