package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"reviewdash/internal/domain"
)

// ReviewService owns the two write transitions on reviews. Both keep the
// Approved flag in lockstep with the workflow status; no other write path
// touches either field.
type ReviewService struct {
	repo      domain.ReviewRepository
	cache     domain.Cache
	decisions domain.DecisionLog
}

func NewReviewService(r domain.ReviewRepository, c domain.Cache) *ReviewService {
	return &ReviewService{repo: r, cache: c}
}

// WithDecisions mirrors every approval transition into a decision log.
func (s *ReviewService) WithDecisions(d domain.DecisionLog) *ReviewService {
	s.decisions = d
	return s
}

// recordDecision writes the verdict to the decision log. The store write
// already succeeded, so a log failure is reported, not propagated.
func (s *ReviewService) recordDecision(id int64, approved bool, notes, updatedBy *string) {
	if s.decisions == nil {
		return
	}
	if _, err := s.decisions.RecordDecision(id, approved, notes, updatedBy); err != nil {
		log.Warn().Int64("review", id).Err(err).Msg("record decision failed")
	}
}

// Approve records a manager decision: approved publishes the review,
// not-approved rejects it. Unknown ids fail with ErrNotFound and write
// nothing.
func (s *ReviewService) Approve(ctx context.Context, id int64, approved bool, notes, updatedBy *string) (domain.Review, error) {
	if id <= 0 {
		return domain.Review{}, fmt.Errorf("review id must be positive: %w", domain.ErrValidation)
	}
	status := domain.StatusRejected
	if approved {
		status = domain.StatusPublished
	}
	rv, err := s.repo.UpdateReview(ctx, id, domain.ReviewPatch{
		Status:       &status,
		Approved:     &approved,
		ManagerNotes: notes,
		UpdatedBy:    updatedBy,
	})
	if err != nil {
		return domain.Review{}, err
	}
	s.recordDecision(id, approved, notes, updatedBy)
	s.invalidate(ctx, rv.PropertyID)
	return rv, nil
}

// UpdateStatus applies a literal workflow transition. The caller supplies
// both fields; silently creating a row for an unknown id is not permitted.
func (s *ReviewService) UpdateStatus(ctx context.Context, id int64, status domain.Status, approved bool) (domain.Review, error) {
	if id <= 0 {
		return domain.Review{}, fmt.Errorf("review id must be positive: %w", domain.ErrValidation)
	}
	if status == domain.StatusPublished && !approved {
		// published-but-not-approved is not a valid combination
		return domain.Review{}, fmt.Errorf("published requires isApproved: %w", domain.ErrValidation)
	}
	rv, err := s.repo.UpdateReview(ctx, id, domain.ReviewPatch{Status: &status, Approved: &approved})
	if err != nil {
		return domain.Review{}, err
	}
	s.recordDecision(id, approved, nil, nil)
	s.invalidate(ctx, rv.PropertyID)
	return rv, nil
}

// invalidate drops the cache variants a review mutation can go stale in:
// both property-review keys, the list generation (orphaning every filtered
// list variant), and every stats window.
func (s *ReviewService) invalidate(ctx context.Context, propertyID int64) {
	if s.cache == nil {
		return
	}
	for _, approved := range []bool{true, false} {
		_ = s.cache.Del(ctx, fmt.Sprintf("reviews:prop:%d:%t", propertyID, approved))
	}
	_ = s.cache.Del(ctx, listVerKey)
	for rng := range windows {
		_ = s.cache.Del(ctx, "stats:"+rng)
	}
}

// SyncService pulls each property's reviews from the platform API and
// Google Places, normalizes them, and upserts the result.
type SyncService struct {
	hostaway domain.HostawayClient
	places   domain.PlacesClient
	repo     domain.ReviewRepository
	cache    domain.Cache
}

func NewSyncService(h domain.HostawayClient, p domain.PlacesClient, r domain.ReviewRepository, c domain.Cache) *SyncService {
	return &SyncService{hostaway: h, places: p, repo: r, cache: c}
}

// SyncProperty ingests one property's channels. Upstream 404/401/403 are
// recorded as misses and skipped; records failing normalization are counted
// and skipped; any other upstream or store error aborts the property.
func (s *SyncService) SyncProperty(ctx context.Context, prop domain.Property) error {
	var batch []domain.Review
	skipped := 0

	if s.hostaway != nil && prop.HostawayID != nil {
		revs, err := s.hostaway.ListReviews(ctx, *prop.HostawayID)
		switch {
		case err == nil:
			for _, src := range revs {
				rv, nerr := NormalizeHostaway(src, prop)
				if nerr != nil {
					skipped++
					log.Warn().Int64("property", prop.ID).Err(nerr).Msg("hostaway review rejected")
					continue
				}
				batch = append(batch, rv)
			}
		case errors.Is(err, domain.ErrNotFound):
			_ = s.repo.LogMiss(ctx, prop.ID, 404, "hostaway")
		case errors.Is(err, domain.ErrUnauthorized):
			_ = s.repo.LogMiss(ctx, prop.ID, 401, "hostaway")
		case errors.Is(err, domain.ErrForbidden):
			_ = s.repo.LogMiss(ctx, prop.ID, 403, "hostaway")
		default:
			return fmt.Errorf("hostaway reviews for %d: %w", prop.ID, err)
		}
	}

	if s.places != nil {
		if err := s.syncGoogle(ctx, prop, &batch, &skipped); err != nil {
			return err
		}
	}

	if len(batch) > 0 {
		if err := s.repo.UpsertReviews(ctx, batch); err != nil {
			return fmt.Errorf("upsert reviews for %d: %w", prop.ID, err)
		}
	}
	if skipped > 0 {
		log.Warn().Int64("property", prop.ID).Int("skipped", skipped).Msg("rejected source reviews")
	}

	// Drop stale variants even when nothing was written; the upstream call
	// succeeding with zero reviews is still fresher than the cache.
	if s.cache != nil {
		for _, approved := range []bool{true, false} {
			_ = s.cache.Del(ctx, fmt.Sprintf("reviews:prop:%d:%t", prop.ID, approved))
		}
		_ = s.cache.Del(ctx, listVerKey)
	}
	return nil
}

func (s *SyncService) syncGoogle(ctx context.Context, prop domain.Property, batch *[]domain.Review, skipped *int) error {
	placeID := ""
	if prop.PlaceID != nil {
		placeID = *prop.PlaceID
	} else {
		id, err := s.places.SearchPlace(ctx, prop.Name+" "+prop.Location)
		switch {
		case err == nil:
			placeID = id
		case errors.Is(err, domain.ErrNotFound):
			_ = s.repo.LogMiss(ctx, prop.ID, 404, "places:search")
			return nil
		default:
			return fmt.Errorf("place search for %d: %w", prop.ID, err)
		}
	}
	if placeID == "" {
		return nil
	}

	details, err := s.places.PlaceReviews(ctx, placeID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		_ = s.repo.LogMiss(ctx, prop.ID, 404, "places:reviews")
		return nil
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrForbidden):
		_ = s.repo.LogMiss(ctx, prop.ID, 403, "places:reviews")
		return nil
	default:
		return fmt.Errorf("place reviews for %d: %w", prop.ID, err)
	}

	for _, src := range details.Reviews {
		rv, nerr := NormalizeGoogle(src, prop)
		if nerr != nil {
			*skipped++
			log.Warn().Int64("property", prop.ID).Err(nerr).Msg("google review rejected")
			continue
		}
		*batch = append(*batch, rv)
	}
	return nil
}
