package app

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"reviewdash/internal/domain"
)

/********** category alias registry (single source of truth) **********/

var categoryAliases = map[string]domain.Category{
	"cleanliness":         domain.CategoryCleanliness,
	"communication":       domain.CategoryCommunication,
	"location":            domain.CategoryLocation,
	"checkin":             domain.CategoryCheckin,
	"check_in":            domain.CategoryCheckin,
	"arrival":             domain.CategoryCheckin,
	"accuracy":            domain.CategoryAccuracy,
	"listing_accuracy":    domain.CategoryAccuracy,
	"value":               domain.CategoryValue,
	"value_for_money":     domain.CategoryValue,
	"respect_house_rules": domain.CategoryHouseRules,
	"house_rules":         domain.CategoryHouseRules,
}

// canonicalCategory resolves a source category key. Unknown keys map to ""
// and are skipped by the callers; the fixed vocabulary is closed.
func canonicalCategory(key string) domain.Category {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer("-", "_", " ", "_").Replace(k)
	return categoryAliases[k]
}

const hostawayTimeLayout = "2006-01-02 15:04:05"

// Categories estimated from a scalar-only source. House rules are not
// guessable from a public rating, so that key stays absent.
var estimatedCategories = []domain.Category{
	domain.CategoryCleanliness,
	domain.CategoryCommunication,
	domain.CategoryLocation,
	domain.CategoryValue,
}

func inRatingBounds(v float64) bool { return v >= 0 && v <= domain.MaxRating }

func meanOf(m map[domain.Category]float64) float64 {
	if len(m) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m {
		sum += v
	}
	return sum / float64(len(m))
}

/********** hostaway (platform-native) **********/

// NormalizeHostaway converts one platform review into the canonical shape.
// Platform ratings arrive on a 10-point scale and are halved. Records with
// no id, no parsable timestamp, or no rating signal at all are rejected;
// nothing is defaulted past the invariants.
func NormalizeHostaway(src domain.HostawayReview, prop domain.Property) (domain.Review, error) {
	if src.ID <= 0 {
		return domain.Review{}, fmt.Errorf("hostaway review without id: %w", domain.ErrValidation)
	}
	ts, err := time.Parse(hostawayTimeLayout, strings.TrimSpace(src.SubmittedAt))
	if err != nil {
		return domain.Review{}, fmt.Errorf("hostaway review %d: bad submittedAt %q: %w", src.ID, src.SubmittedAt, domain.ErrValidation)
	}

	cats := make(map[domain.Category]float64, len(src.Categories))
	for _, c := range src.Categories {
		key := canonicalCategory(c.Category)
		if key == "" {
			continue // outside the vocabulary
		}
		v := c.Rating / 2
		if !inRatingBounds(v) {
			return domain.Review{}, fmt.Errorf("hostaway review %d: category %s rating %.1f out of range: %w", src.ID, key, c.Rating, domain.ErrValidation)
		}
		cats[key] = v
	}

	var rating float64
	switch {
	case src.Rating != nil:
		rating = *src.Rating / 2
		if !inRatingBounds(rating) {
			return domain.Review{}, fmt.Errorf("hostaway review %d: rating %.1f out of range: %w", src.ID, *src.Rating, domain.ErrValidation)
		}
	case len(cats) > 0:
		rating = meanOf(cats)
	default:
		return domain.Review{}, fmt.Errorf("hostaway review %d: no rating signal: %w", src.ID, domain.ErrValidation)
	}

	status, approved, err := hostawayStatus(src.Status)
	if err != nil {
		return domain.Review{}, fmt.Errorf("hostaway review %d: %w", src.ID, err)
	}

	typ := domain.TypeGuestToHost
	if strings.EqualFold(strings.TrimSpace(src.Type), string(domain.TypeHostToGuest)) {
		typ = domain.TypeHostToGuest
	}

	return domain.Review{
		ID:          src.ID,
		PropertyID:  prop.ID,
		ListingName: prop.Name,
		Channel:     domain.ChannelHostaway,
		Type:        typ,
		Status:      status,
		Approved:    approved,
		Rating:      rating,
		Categories:  cats,
		Text:        strings.TrimSpace(src.Text),
		GuestName:   strings.TrimSpace(src.GuestName),
		SubmittedAt: ts,
	}, nil
}

func hostawayStatus(s string) (domain.Status, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "published":
		return domain.StatusPublished, true, nil
	case "pending", "awaiting", "awaiting approval":
		return domain.StatusPending, false, nil
	case "rejected", "declined":
		return domain.StatusRejected, false, nil
	}
	return "", false, fmt.Errorf("unknown status %q: %w", s, domain.ErrValidation)
}

/********** google places **********/

// NormalizeGoogle converts one place review. Google supplies a single scalar
// rating, so the estimated categories are set equal to it — an approximation,
// not measured sub-ratings. Reviews always enter the workflow as pending.
func NormalizeGoogle(src domain.PlaceReview, prop domain.Property) (domain.Review, error) {
	if !inRatingBounds(src.Rating) {
		return domain.Review{}, fmt.Errorf("google review %q: rating %.1f out of range: %w", src.ReviewID, src.Rating, domain.ErrValidation)
	}
	if src.Time <= 0 {
		return domain.Review{}, fmt.Errorf("google review %q: missing timestamp: %w", src.ReviewID, domain.ErrValidation)
	}

	cats := make(map[domain.Category]float64, len(estimatedCategories))
	for _, c := range estimatedCategories {
		cats[c] = src.Rating
	}

	return domain.Review{
		ID:          numericIDFrom(src.ReviewID),
		PropertyID:  prop.ID,
		ListingName: prop.Name,
		Channel:     domain.ChannelGoogle,
		Type:        domain.TypeGuestToHost,
		Status:      domain.StatusPending,
		Approved:    false,
		Rating:      src.Rating,
		Categories:  cats,
		Text:        strings.TrimSpace(src.Text),
		GuestName:   strings.TrimSpace(src.AuthorName),
		SubmittedAt: time.Unix(src.Time, 0).UTC(),
	}, nil
}

// numericIDFrom derives a numeric id from an opaque source id by keeping its
// digit characters. With no digits at all it falls back to a process-local
// random id — unstable across runs; the store's own id wins once persisted.
func numericIDFrom(opaque string) int64 {
	var b strings.Builder
	for _, r := range opaque {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == 18 { // keep well inside int64
				break
			}
		}
	}
	if b.Len() > 0 {
		if n, err := strconv.ParseInt(b.String(), 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return rand.Int64N(1<<62) + 1
}

/********** direct submissions **********/

// NormalizeDirect validates a dashboard submission. Unknown category keys
// are rejected here (unlike external channels) since the form controls them.
func NormalizeDirect(src domain.DirectSubmission, prop domain.Property) (domain.Review, error) {
	if strings.TrimSpace(src.GuestName) == "" {
		return domain.Review{}, fmt.Errorf("direct submission: guest name required: %w", domain.ErrValidation)
	}
	if !inRatingBounds(src.Rating) {
		return domain.Review{}, fmt.Errorf("direct submission: rating %.1f out of range: %w", src.Rating, domain.ErrValidation)
	}
	if src.SubmittedAt.IsZero() {
		return domain.Review{}, fmt.Errorf("direct submission: missing timestamp: %w", domain.ErrValidation)
	}

	cats := make(map[domain.Category]float64, len(src.Categories))
	for key, v := range src.Categories {
		canon := canonicalCategory(string(key))
		if canon == "" {
			return domain.Review{}, fmt.Errorf("direct submission: unknown category %q: %w", key, domain.ErrValidation)
		}
		if !inRatingBounds(v) {
			return domain.Review{}, fmt.Errorf("direct submission: category %s rating %.1f out of range: %w", canon, v, domain.ErrValidation)
		}
		cats[canon] = v
	}

	typ := domain.TypeGuestToHost
	if strings.EqualFold(strings.TrimSpace(src.Type), string(domain.TypeHostToGuest)) {
		typ = domain.TypeHostToGuest
	}

	return domain.Review{
		ID:          rand.Int64N(1<<62) + 1, // replaced by the store id on persist
		PropertyID:  prop.ID,
		ListingName: prop.Name,
		Channel:     domain.ChannelDirect,
		Type:        typ,
		Status:      domain.StatusPending,
		Approved:    false,
		Rating:      src.Rating,
		Categories:  cats,
		Text:        strings.TrimSpace(src.Text),
		GuestName:   strings.TrimSpace(src.GuestName),
		SubmittedAt: src.SubmittedAt,
	}, nil
}
