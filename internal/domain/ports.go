package domain

import (
	"context"
	"time"
)

// ReviewRepository is the relational store boundary.
type ReviewRepository interface {
	// Write paths
	UpsertProperty(ctx context.Context, p Property) error
	UpsertReviews(ctx context.Context, rs []Review) error
	UpdateReview(ctx context.Context, id int64, patch ReviewPatch) (Review, error)
	SetPropertyGeo(ctx context.Context, id int64, g GeoResult) error
	LogMiss(ctx context.Context, propertyID int64, status int, reason string) error

	// Read paths
	GetProperty(ctx context.Context, slugOrID string) (Property, error)
	ListProperties(ctx context.Context, f PropertyFilter) ([]Property, error)
	ListReviews(ctx context.Context, f ReviewFilter) ([]Review, error)
	CountReviews(ctx context.Context, f ReviewFilter) (int64, error)
	AverageRating(ctx context.Context, f ReviewFilter) (float64, error)
	MonthlyRollup(ctx context.Context, month time.Time) (Rollup, error)
}

// HostawayClient pulls reviews from the property-management platform.
type HostawayClient interface {
	ListReviews(ctx context.Context, listingID int64) ([]HostawayReview, error)
}

// PlacesClient resolves a place and fetches its public reviews.
type PlacesClient interface {
	SearchPlace(ctx context.Context, query string) (string, error)
	PlaceReviews(ctx context.Context, placeID string) (PlaceDetails, error)
}

// Geocoder forward-geocodes a free-text location.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (GeoResult, error)
}

// DecisionLog is the optional side table of manager decisions, applied over
// review reads and written alongside the store on approval transitions.
type DecisionLog interface {
	RecordDecision(reviewID int64, approved bool, notes, updatedBy *string) (Decision, error)
	ApplyDecisions(reviews []Review) []Review
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// ReviewPatch is a partial review update; nil fields are left untouched.
type ReviewPatch struct {
	Status       *Status
	Approved     *bool
	ManagerNotes *string
	UpdatedBy    *string
}

// ReviewFilter: all populated dimensions are AND'd. Status carries the
// boundary special cases: "approved" means Approved regardless of status,
// "pending" means not approved AND status=pending, anything else matches
// the status column literally.
type ReviewFilter struct {
	PropertyID      *int64
	MinRating       *float64
	Channel         *Channel
	Status          string
	Listing         string // case-insensitive substring on the property name
	ApprovedOnly    bool
	SubmittedAfter  *time.Time
	SubmittedBefore *time.Time
	Limit           int
}

type PropertyFilter struct {
	Status     string // "" = any
	MissingGeo bool   // only properties without coordinates
}
