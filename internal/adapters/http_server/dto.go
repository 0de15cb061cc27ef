package httpserver

import (
	"time"

	"reviewdash/internal/domain"
)

// reviewDTO is the wire shape of a canonical review.
type reviewDTO struct {
	ID            int64              `json:"id"`
	PropertyID    int64              `json:"propertyId"`
	ListingName   string             `json:"listingName"`
	Channel       string             `json:"channel"`
	Type          string             `json:"type"`
	Status        string             `json:"status"`
	IsApproved    bool               `json:"isApproved"`
	OverallRating float64            `json:"overallRating"`
	Categories    map[string]float64 `json:"categories"`
	Review        string             `json:"review"`
	GuestName     string             `json:"guestName"`
	SubmittedAt   time.Time          `json:"submittedAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	ManagerNotes  *string            `json:"managerNotes,omitempty"`
	UpdatedBy     *string            `json:"updatedBy,omitempty"`
}

func toReviewDTO(r domain.Review) reviewDTO {
	cats := make(map[string]float64, len(r.Categories))
	for k, v := range r.Categories {
		cats[string(k)] = v
	}
	return reviewDTO{
		ID:            r.ID,
		PropertyID:    r.PropertyID,
		ListingName:   r.ListingName,
		Channel:       string(r.Channel),
		Type:          string(r.Type),
		Status:        string(r.Status),
		IsApproved:    r.Approved,
		OverallRating: r.Rating,
		Categories:    cats,
		Review:        r.Text,
		GuestName:     r.GuestName,
		SubmittedAt:   r.SubmittedAt,
		UpdatedAt:     r.UpdatedAt,
		ManagerNotes:  r.ManagerNotes,
		UpdatedBy:     r.UpdatedBy,
	}
}

func toReviewDTOs(rs []domain.Review) []reviewDTO {
	out := make([]reviewDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReviewDTO(r))
	}
	return out
}

// decisionDTO is the approve endpoint's response body.
type decisionDTO struct {
	ID           int64     `json:"id"`
	IsApproved   bool      `json:"isApproved"`
	ManagerNotes *string   `json:"managerNotes,omitempty"`
	UpdatedBy    *string   `json:"updatedBy,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
