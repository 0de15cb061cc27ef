package domain

import (
	"strings"
	"time"
)

// Channel is the origin platform of a review.
type Channel string

const (
	ChannelHostaway Channel = "hostaway"
	ChannelGoogle   Channel = "google"
	ChannelAirbnb   Channel = "airbnb"
	ChannelBooking  Channel = "booking"
	ChannelDirect   Channel = "direct"
)

var channels = map[string]Channel{
	"hostaway": ChannelHostaway,
	"google":   ChannelGoogle,
	"airbnb":   ChannelAirbnb,
	"booking":  ChannelBooking,
	"direct":   ChannelDirect,
}

// ParseChannel normalizes a caller-supplied channel name to the closed set.
func ParseChannel(s string) (Channel, error) {
	if c, ok := channels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", ErrValidation
}

// ReviewType is the direction of a review.
type ReviewType string

const (
	TypeHostToGuest ReviewType = "host-to-guest"
	TypeGuestToHost ReviewType = "guest-to-host"
)

// Status is the workflow state of a review. Approved is kept in sync with it
// by the two write transitions (approve, status update); Status stays the
// authoritative field.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusRejected  Status = "rejected"
)

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusPublished:
		return StatusPublished, nil
	case StatusRejected:
		return StatusRejected, nil
	}
	return "", ErrValidation
}

// Category is a sub-rating key. Sources may supply any subset.
type Category string

const (
	CategoryCleanliness   Category = "cleanliness"
	CategoryCommunication Category = "communication"
	CategoryLocation      Category = "location"
	CategoryCheckin       Category = "checkin"
	CategoryAccuracy      Category = "accuracy"
	CategoryValue         Category = "value"
	CategoryHouseRules    Category = "respect_house_rules"
)

// Categories is the full vocabulary, in display order.
var Categories = []Category{
	CategoryCleanliness,
	CategoryCommunication,
	CategoryLocation,
	CategoryCheckin,
	CategoryAccuracy,
	CategoryValue,
	CategoryHouseRules,
}

// MaxRating bounds the overall rating and every category rating.
const MaxRating = 5.0

// Review is the canonical shape every channel is normalized into.
// ListingName is a copy of the owning property's name taken at normalization
// time, so the value is self-contained for API responses.
type Review struct {
	ID           int64
	PropertyID   int64
	ListingName  string
	Channel      Channel
	Type         ReviewType
	Status       Status
	Approved     bool
	Rating       float64
	Categories   map[Category]float64
	Text         string
	GuestName    string
	SubmittedAt  time.Time
	UpdatedAt    time.Time
	ManagerNotes *string
	UpdatedBy    *string
}

// Decision is a manager verdict recorded in the approval overlay.
type Decision struct {
	ReviewID     int64     `json:"reviewId"`
	Approved     bool      `json:"isApproved"`
	ManagerNotes *string   `json:"managerNotes,omitempty"`
	UpdatedBy    *string   `json:"updatedBy,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
