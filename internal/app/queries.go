package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"reviewdash/internal/domain"
)

// Filters are the caller-facing review query dimensions; all conjunctive.
type Filters struct {
	MinRating *float64
	Channel   string
	Status    string
	Listing   string
}

// DashboardStats is the summary payload. Review counts are global; only
// RecentReviews and AverageRating are scoped to the reporting window.
// Revenue is in major currency units (pence divided by 100, once, here).
type DashboardStats struct {
	TimeRange        string    `json:"timeRange"`
	WindowStart      time.Time `json:"windowStart"`
	ActiveProperties int       `json:"activeProperties"`
	TotalReviews     int64     `json:"totalReviews"`
	ApprovedReviews  int64     `json:"approvedReviews"`
	PendingReviews   int64     `json:"pendingReviews"`
	RejectedReviews  int64     `json:"rejectedReviews"`
	RecentReviews    int64     `json:"recentReviews"`
	AverageRating    float64   `json:"averageRating"`
	MonthRevenue     int64     `json:"monthRevenue"`
	RevenueDeltaPct  float64   `json:"revenueDeltaPct"`
	OccupancyRate    float64   `json:"occupancyRate"`
	OccupancyDelta   float64   `json:"occupancyDelta"`
}

type QueryService struct {
	repo      domain.ReviewRepository
	cache     domain.Cache
	cacheTTL  time.Duration
	decisions domain.DecisionLog
}

func NewQueryService(r domain.ReviewRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// WithDecisions overlays a decision log on every review read.
func (s *QueryService) WithDecisions(d domain.DecisionLog) *QueryService {
	s.decisions = d
	return s
}

func (s *QueryService) applyDecisions(rs []domain.Review) []domain.Review {
	if s.decisions == nil {
		return rs
	}
	return s.decisions.ApplyDecisions(rs)
}

// GetReviews lists reviews matching the conjunction of the given filters.
func (s *QueryService) GetReviews(ctx context.Context, f Filters) ([]domain.Review, error) {
	df := domain.ReviewFilter{MinRating: f.MinRating, Listing: f.Listing}
	if f.Channel != "" {
		ch, err := domain.ParseChannel(f.Channel)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", f.Channel, err)
		}
		df.Channel = &ch
	}
	if f.Status != "" {
		st, err := parseStatusFilter(f.Status)
		if err != nil {
			return nil, err
		}
		df.Status = st
	}

	key := listCacheKey(df, s.listVersion(ctx))
	var out []domain.Review
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return s.applyDecisions(out), nil
	}
	rs, err := s.repo.ListReviews(ctx, df)
	if err != nil {
		return nil, err
	}
	// copy before caching so callers can't mutate the cached value
	cp := append([]domain.Review(nil), rs...)
	if b, _ := json.Marshal(cp); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
	}
	return s.applyDecisions(cp), nil
}

// listVerKey holds the cache generation shared by every list variant.
// Mutations delete it; a fresh generation orphans all variants at once,
// which then age out by TTL.
const listVerKey = "reviews:list:ver"

func (s *QueryService) listVersion(ctx context.Context) int64 {
	var v int64
	if ok, _ := s.cache.Get(ctx, listVerKey, &v); ok {
		return v
	}
	v = time.Now().UnixNano()
	_ = s.cache.Set(ctx, listVerKey, v, 0)
	return v
}

// parseStatusFilter admits the two overlay values ("approved", "pending")
// plus the literal workflow states.
func parseStatusFilter(s string) (string, error) {
	switch s {
	case "approved", "pending":
		return s, nil
	}
	st, err := domain.ParseStatus(s)
	if err != nil {
		return "", fmt.Errorf("status %q: %w", s, err)
	}
	return string(st), nil
}

func listCacheKey(f domain.ReviewFilter, ver int64) string {
	min := ""
	if f.MinRating != nil {
		min = fmt.Sprintf("%.1f", *f.MinRating)
	}
	ch := ""
	if f.Channel != nil {
		ch = string(*f.Channel)
	}
	return fmt.Sprintf("reviews:list:%d:%s:%s:%s:%s", ver, min, ch, f.Status, f.Listing)
}

// GetPropertyReviews returns a property's reviews, optionally only the
// publicly displayable (approved) ones.
func (s *QueryService) GetPropertyReviews(ctx context.Context, slug string, approvedOnly bool) ([]domain.Review, error) {
	p, err := s.repo.GetProperty(ctx, slug)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("reviews:prop:%d:%t", p.ID, approvedOnly)
	var out []domain.Review
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return s.applyDecisions(out), nil
	}
	rs, err := s.repo.ListReviews(ctx, domain.ReviewFilter{PropertyID: &p.ID, ApprovedOnly: approvedOnly})
	if err != nil {
		return nil, err
	}
	cp := append([]domain.Review(nil), rs...)
	_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
	return s.applyDecisions(cp), nil
}

// time ranges accepted by DashboardStats; anything else falls back to 30d.
var windows = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
}

// DashboardStats fans out the independent store reads and joins them;
// the first error wins and fails the whole response.
func (s *QueryService) DashboardStats(ctx context.Context, timeRange string) (DashboardStats, error) {
	win, ok := windows[timeRange]
	if !ok {
		timeRange, win = "30d", windows["30d"]
	}
	now := time.Now().UTC()
	start := now.Add(-win)

	key := "stats:" + timeRange
	var cached DashboardStats
	if ok, _ := s.cache.Get(ctx, key, &cached); ok {
		return cached, nil
	}

	out := DashboardStats{TimeRange: timeRange, WindowStart: start}
	thisMonth := monthStart(now)
	prevMonth := thisMonth.AddDate(0, -1, 0)

	var (
		cur, prev domain.Rollup
		props     []domain.Property
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		props, err = s.repo.ListProperties(gctx, domain.PropertyFilter{Status: "active"})
		return
	})
	g.Go(func() (err error) {
		out.TotalReviews, err = s.repo.CountReviews(gctx, domain.ReviewFilter{})
		return
	})
	g.Go(func() (err error) {
		out.ApprovedReviews, err = s.repo.CountReviews(gctx, domain.ReviewFilter{Status: "approved"})
		return
	})
	g.Go(func() (err error) {
		out.PendingReviews, err = s.repo.CountReviews(gctx, domain.ReviewFilter{Status: "pending"})
		return
	})
	g.Go(func() (err error) {
		out.RejectedReviews, err = s.repo.CountReviews(gctx, domain.ReviewFilter{Status: string(domain.StatusRejected)})
		return
	})
	g.Go(func() (err error) {
		out.RecentReviews, err = s.repo.CountReviews(gctx, domain.ReviewFilter{SubmittedAfter: &start})
		return
	})
	g.Go(func() (err error) {
		out.AverageRating, err = s.repo.AverageRating(gctx, domain.ReviewFilter{Status: "approved", SubmittedAfter: &start})
		return
	})
	g.Go(func() (err error) {
		cur, err = s.repo.MonthlyRollup(gctx, thisMonth)
		return
	})
	g.Go(func() (err error) {
		prev, err = s.repo.MonthlyRollup(gctx, prevMonth)
		return
	})
	if err := g.Wait(); err != nil {
		return DashboardStats{}, err
	}

	out.ActiveProperties = len(props)
	out.AverageRating = round1(out.AverageRating)
	out.MonthRevenue = cur.RevenuePence / 100
	out.RevenueDeltaPct = round1(revenueDelta(cur.RevenuePence, prev.RevenuePence))
	out.OccupancyRate = round1(cur.Occupancy)
	out.OccupancyDelta = round1(cur.Occupancy - prev.Occupancy)

	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

// revenueDelta is a percentage change with the denominator clamped to 1 when
// the previous month is zero or absent. An approximation, not a clean delta,
// but it keeps a first trading month from dividing by zero.
func revenueDelta(cur, prev int64) float64 {
	denom := float64(prev)
	if denom <= 0 {
		denom = 1
	}
	return float64(cur-prev) / denom * 100
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
