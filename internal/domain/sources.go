package domain

import "time"

// Source records as the upstream clients hand them to the normalizers.
// Clients decode the wire payloads into these; the normalizers in
// internal/app turn them into canonical Reviews or reject them.

// HostawayReview is one review from the property-management platform.
// Ratings (overall and per category) are on the platform's 10-point scale;
// normalization converts to the canonical 5-point scale.
type HostawayReview struct {
	ID          int64
	Type        string
	Status      string
	Rating      *float64
	Text        string
	Categories  []HostawayCategory
	SubmittedAt string // "2006-01-02 15:04:05", platform local convention
	GuestName   string
	ListingName string
}

type HostawayCategory struct {
	Category string
	Rating   float64
}

// PlaceReview is one review attached to a Google place.
type PlaceReview struct {
	ReviewID   string // opaque; may carry no numeric signal
	AuthorName string
	Rating     float64 // 1..5 scalar, no category breakdown
	Text       string
	Time       int64 // epoch seconds; 0 means the source omitted it
}

// PlaceDetails is the reviews payload for one place.
type PlaceDetails struct {
	PlaceID      string
	Name         string
	Rating       float64
	TotalRatings int
	Reviews      []PlaceReview
}

// DirectSubmission is a review submitted straight through the dashboard.
type DirectSubmission struct {
	GuestName   string
	Rating      float64
	Categories  map[Category]float64
	Text        string
	Type        string // optional; defaults to guest-to-host
	SubmittedAt time.Time
}

// GeoResult is a successful forward-geocode outcome.
type GeoResult struct {
	Lat, Lon float64
	Address  string
}

// Rollup is one calendar month of revenue/occupancy, maintained outside this
// service and read for the dashboard deltas.
type Rollup struct {
	Month        time.Time
	RevenuePence int64
	Occupancy    float64 // 0..100
}
