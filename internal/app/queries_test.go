package app_test

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"reviewdash/internal/app"
	"reviewdash/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu      sync.Mutex
	props   []domain.Property
	reviews []domain.Review
	rollups map[string]domain.Rollup
	misses  []string
	geoSet  []int64
	updates int
}

func (f *fakeRepo) propByID(id int64) (domain.Property, bool) {
	for _, p := range f.props {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Property{}, false
}

func (f *fakeRepo) match(r domain.Review, flt domain.ReviewFilter) bool {
	if flt.PropertyID != nil && r.PropertyID != *flt.PropertyID {
		return false
	}
	if flt.MinRating != nil && r.Rating < *flt.MinRating {
		return false
	}
	if flt.Channel != nil && r.Channel != *flt.Channel {
		return false
	}
	switch flt.Status {
	case "":
	case "approved":
		if !r.Approved {
			return false
		}
	case "pending":
		if r.Approved || r.Status != domain.StatusPending {
			return false
		}
	default:
		if string(r.Status) != flt.Status {
			return false
		}
	}
	if flt.ApprovedOnly && !r.Approved {
		return false
	}
	if flt.Listing != "" {
		p, ok := f.propByID(r.PropertyID)
		if !ok || !strings.Contains(strings.ToLower(p.Name), strings.ToLower(flt.Listing)) {
			return false
		}
	}
	if flt.SubmittedAfter != nil && r.SubmittedAt.Before(*flt.SubmittedAfter) {
		return false
	}
	if flt.SubmittedBefore != nil && !r.SubmittedAt.Before(*flt.SubmittedBefore) {
		return false
	}
	return true
}

func (f *fakeRepo) UpsertProperty(ctx context.Context, p domain.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props = append(f.props, p)
	return nil
}

func (f *fakeRepo) UpsertReviews(ctx context.Context, rs []domain.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews = append(f.reviews, rs...)
	return nil
}

func (f *fakeRepo) UpdateReview(ctx context.Context, id int64, patch domain.ReviewPatch) (domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reviews {
		if f.reviews[i].ID != id {
			continue
		}
		f.updates++
		if patch.Status != nil {
			f.reviews[i].Status = *patch.Status
		}
		if patch.Approved != nil {
			f.reviews[i].Approved = *patch.Approved
		}
		if patch.ManagerNotes != nil {
			f.reviews[i].ManagerNotes = patch.ManagerNotes
		}
		if patch.UpdatedBy != nil {
			f.reviews[i].UpdatedBy = patch.UpdatedBy
		}
		f.reviews[i].UpdatedAt = time.Now().UTC()
		return f.reviews[i], nil
	}
	return domain.Review{}, domain.ErrNotFound
}

func (f *fakeRepo) SetPropertyGeo(ctx context.Context, id int64, g domain.GeoResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geoSet = append(f.geoSet, id)
	return nil
}

func (f *fakeRepo) LogMiss(ctx context.Context, propertyID int64, status int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.misses = append(f.misses, reason)
	return nil
}

func (f *fakeRepo) GetProperty(ctx context.Context, slugOrID string) (domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.props {
		if p.Slug == slugOrID {
			return p, nil
		}
	}
	return domain.Property{}, domain.ErrNotFound
}

func (f *fakeRepo) ListProperties(ctx context.Context, flt domain.PropertyFilter) ([]domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Property
	for _, p := range f.props {
		if flt.Status != "" && p.Status != flt.Status {
			continue
		}
		if flt.MissingGeo && p.HasCoords() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) ListReviews(ctx context.Context, flt domain.ReviewFilter) ([]domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Review
	for _, r := range f.reviews {
		if f.match(r, flt) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if flt.Limit > 0 && len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, nil
}

func (f *fakeRepo) CountReviews(ctx context.Context, flt domain.ReviewFilter) (int64, error) {
	rs, _ := f.ListReviews(ctx, flt)
	return int64(len(rs)), nil
}

func (f *fakeRepo) AverageRating(ctx context.Context, flt domain.ReviewFilter) (float64, error) {
	rs, _ := f.ListReviews(ctx, flt)
	if len(rs) == 0 {
		return 0, nil
	}
	var sum float64
	for _, r := range rs {
		sum += r.Rating
	}
	return sum / float64(len(rs)), nil
}

func (f *fakeRepo) MonthlyRollup(ctx context.Context, month time.Time) (domain.Rollup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rollups[month.Format("2006-01")]; ok {
		return r, nil
	}
	return domain.Rollup{Month: month}, nil
}

// fakeCache is type-agnostic: values round-trip through JSON like the real
// redis adapter.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// ---- fixtures ----

func ptr[T any](v T) *T { return &v }

// shoreditchRepo seeds the canonical three-review scenario.
func shoreditchRepo(now time.Time) *fakeRepo {
	return &fakeRepo{
		props: []domain.Property{{
			ID: 1, Slug: "shoreditch-heights", Name: "2B N1 A - 29 Shoreditch Heights",
			Location: "Shoreditch, London", Status: "active", PricePerNight: 15000,
		}},
		reviews: []domain.Review{
			{ID: 101, PropertyID: 1, ListingName: "2B N1 A - 29 Shoreditch Heights", Channel: domain.ChannelHostaway,
				Status: domain.StatusPublished, Approved: true, Rating: 4.8, SubmittedAt: now.Add(-24 * time.Hour)},
			{ID: 102, PropertyID: 1, ListingName: "2B N1 A - 29 Shoreditch Heights", Channel: domain.ChannelGoogle,
				Status: domain.StatusPending, Approved: false, Rating: 3.0, SubmittedAt: now.Add(-48 * time.Hour)},
			{ID: 103, PropertyID: 1, ListingName: "2B N1 A - 29 Shoreditch Heights", Channel: domain.ChannelHostaway,
				Status: domain.StatusRejected, Approved: false, Rating: 1.5, SubmittedAt: now.Add(-72 * time.Hour)},
		},
		rollups: map[string]domain.Rollup{},
	}
}

// ---- tests ----

func TestGetReviews_StatusFilters(t *testing.T) {
	now := time.Now().UTC()
	repo := shoreditchRepo(now)
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)

	approved, err := q.GetReviews(context.Background(), app.Filters{Status: "approved"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(approved) != 1 || approved[0].ID != 101 {
		t.Fatalf("approved filter: got %+v", approved)
	}

	pending, err := q.GetReviews(context.Background(), app.Filters{Status: "pending"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != 102 {
		t.Fatalf("pending filter: got %+v", pending)
	}

	rejected, err := q.GetReviews(context.Background(), app.Filters{Status: "rejected"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(rejected) != 1 || rejected[0].ID != 103 {
		t.Fatalf("rejected filter: got %+v", rejected)
	}
}

func TestGetReviews_RatingFloorAndListing(t *testing.T) {
	now := time.Now().UTC()
	repo := shoreditchRepo(now)
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)

	out, err := q.GetReviews(context.Background(), app.Filters{MinRating: ptr(3.0), Listing: "shoreditch"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 reviews at rating >= 3.0, got %d", len(out))
	}
	for _, r := range out {
		if r.Rating < 3.0 {
			t.Fatalf("rating floor violated: %+v", r)
		}
	}
}

func TestGetReviews_UnknownChannelRejected(t *testing.T) {
	q := app.NewQueryService(&fakeRepo{}, &fakeCache{}, time.Minute)
	if _, err := q.GetReviews(context.Background(), app.Filters{Channel: "myspace"}); err == nil {
		t.Fatalf("expected validation error for unknown channel")
	}
}

func TestGetReviews_CacheHit(t *testing.T) {
	now := time.Now().UTC()
	repo := shoreditchRepo(now)
	cache := &fakeCache{}
	q := app.NewQueryService(repo, cache, 10*time.Minute)

	first, err := q.GetReviews(context.Background(), app.Filters{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	// Mutate repo to ensure the second read indeed comes from cache.
	repo.mu.Lock()
	repo.reviews = nil
	repo.mu.Unlock()

	second, err := q.GetReviews(context.Background(), app.Filters{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("expected cached result of %d reviews, got %d", len(first), len(second))
	}
}

func TestGetPropertyReviews_ApprovedOnly(t *testing.T) {
	now := time.Now().UTC()
	repo := shoreditchRepo(now)
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)

	out, err := q.GetPropertyReviews(context.Background(), "shoreditch-heights", true)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(out) != 1 || out[0].Rating != 4.8 {
		t.Fatalf("expected exactly the 4.8 review, got %+v", out)
	}

	if _, err := q.GetPropertyReviews(context.Background(), "nowhere", true); err == nil {
		t.Fatalf("expected ErrNotFound for unknown slug")
	}
}

func TestDashboardStats_ShoreditchScenario(t *testing.T) {
	now := time.Now().UTC()
	repo := shoreditchRepo(now)
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)

	stats, err := q.DashboardStats(context.Background(), "30d")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if stats.PendingReviews != 1 || stats.ApprovedReviews != 1 || stats.RejectedReviews != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.RecentReviews != 3 {
		t.Fatalf("expected 3 recent reviews, got %d", stats.RecentReviews)
	}
	if stats.TotalReviews != 3 || stats.ActiveProperties != 1 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.AverageRating != 4.8 {
		t.Fatalf("window average should cover approved reviews only, got %.1f", stats.AverageRating)
	}
}

func TestDashboardStats_RevenueDeltaGuard(t *testing.T) {
	now := time.Now().UTC()
	repo := shoreditchRepo(now)
	// Previous month absent; current month 500 pence.
	repo.rollups[now.Format("2006-01")] = domain.Rollup{RevenuePence: 500, Occupancy: 80}

	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)
	stats, err := q.DashboardStats(context.Background(), "30d")
	if err != nil {
		t.Fatalf("revenue delta must not fail on a zero previous month: %v", err)
	}
	if stats.MonthRevenue != 5 {
		t.Fatalf("500 pence should floor-divide to 5, got %d", stats.MonthRevenue)
	}
	// Denominator clamps to 1: (500-0)/1*100.
	if stats.RevenueDeltaPct != 50000 {
		t.Fatalf("unexpected delta: %v", stats.RevenueDeltaPct)
	}
}

func TestDashboardStats_UnrecognizedRangeDefaults(t *testing.T) {
	now := time.Now().UTC()
	repo := shoreditchRepo(now)
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)

	stats, err := q.DashboardStats(context.Background(), "quarter")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if stats.TimeRange != "30d" {
		t.Fatalf("expected fallback to 30d, got %s", stats.TimeRange)
	}
}

func TestDashboardStats_NoReviewsAverageIsZero(t *testing.T) {
	repo := &fakeRepo{rollups: map[string]domain.Rollup{}}
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)

	stats, err := q.DashboardStats(context.Background(), "7d")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if stats.AverageRating != 0 {
		t.Fatalf("empty window must average to 0, got %v", stats.AverageRating)
	}
}
