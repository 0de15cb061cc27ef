package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"reviewdash/internal/adapters/observability"
	"reviewdash/internal/domain"
)

// GeoService backfills coordinates for properties that have none. Calls fan
// out concurrently within a fixed-size batch; a pause separates batches to
// stay inside the mapping provider's rate limits. Outcomes are independent:
// one failed property never aborts the batch or the run.
type GeoService struct {
	repo      domain.ReviewRepository
	geocoder  domain.Geocoder
	batchSize int
	pause     time.Duration
}

type GeoOutcome struct {
	PropertyID int64  `json:"propertyId"`
	Slug       string `json:"slug"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

type BatchReport struct {
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Outcomes  []GeoOutcome `json:"outcomes"`
}

func NewGeoService(r domain.ReviewRepository, g domain.Geocoder, batchSize int, pause time.Duration) *GeoService {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &GeoService{repo: r, geocoder: g, batchSize: batchSize, pause: pause}
}

// Run geocodes every property missing coordinates. Failed lookups are
// reported per property; there is no retry within a run.
func (s *GeoService) Run(ctx context.Context) (BatchReport, error) {
	props, err := s.repo.ListProperties(ctx, domain.PropertyFilter{MissingGeo: true})
	if err != nil {
		return BatchReport{}, err
	}

	report := BatchReport{Processed: len(props)}
	for start := 0; start < len(props); start += s.batchSize {
		end := start + s.batchSize
		if end > len(props) {
			end = len(props)
		}
		batch := props[start:end]

		// Each call writes its own slot; results are merged after the join.
		outcomes := make([]GeoOutcome, len(batch))
		var wg sync.WaitGroup
		for i, p := range batch {
			wg.Add(1)
			go func(i int, p domain.Property) {
				defer wg.Done()
				outcomes[i] = s.geocodeOne(ctx, p)
			}(i, p)
		}
		wg.Wait()

		for _, o := range outcomes {
			if o.OK {
				report.Succeeded++
			} else {
				report.Failed++
			}
			observability.ObserveGeocode(o.OK)
		}
		report.Outcomes = append(report.Outcomes, outcomes...)

		if end < len(props) && !sleepCtx(ctx, s.pause) {
			return report, ctx.Err()
		}
	}
	return report, nil
}

func (s *GeoService) geocodeOne(ctx context.Context, p domain.Property) GeoOutcome {
	out := GeoOutcome{PropertyID: p.ID, Slug: p.Slug}
	g, err := s.geocoder.Geocode(ctx, p.Location)
	if err != nil {
		out.Error = err.Error()
		log.Warn().Int64("property", p.ID).Err(err).Msg("geocode failed")
		return out
	}
	if err := s.repo.SetPropertyGeo(ctx, p.ID, g); err != nil {
		out.Error = err.Error()
		log.Warn().Int64("property", p.ID).Err(err).Msg("persist geocode failed")
		return out
	}
	out.OK = true
	return out
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
