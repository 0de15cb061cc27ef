package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reviewdash/internal/app"
	"reviewdash/internal/domain"
)

func TestApprove_Publishes(t *testing.T) {
	now := time.Now().UTC()
	repo := shoreditchRepo(now)
	cache := &fakeCache{store: map[string][]byte{"stats:30d": []byte(`{}`)}}
	svc := app.NewReviewService(repo, cache)

	notes := "looks genuine"
	by := "sam@flexliving.example"
	rv, err := svc.Approve(context.Background(), 102, true, &notes, &by)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if rv.Status != domain.StatusPublished || !rv.Approved {
		t.Fatalf("approve must publish: %+v", rv)
	}
	if rv.ManagerNotes == nil || *rv.ManagerNotes != notes {
		t.Fatalf("manager notes not recorded: %+v", rv.ManagerNotes)
	}
	if rv.UpdatedBy == nil || *rv.UpdatedBy != by {
		t.Fatalf("updatedBy not recorded: %+v", rv.UpdatedBy)
	}
	if _, ok := cache.store["stats:30d"]; ok {
		t.Fatalf("stats cache not invalidated after approval")
	}
}

func TestApprove_NotApprovedRejects(t *testing.T) {
	now := time.Now().UTC()
	repo := shoreditchRepo(now)
	svc := app.NewReviewService(repo, &fakeCache{})

	rv, err := svc.Approve(context.Background(), 102, false, nil, nil)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if rv.Status != domain.StatusRejected || rv.Approved {
		t.Fatalf("declined approval must reject: %+v", rv)
	}
}

func TestApprove_UnknownIDWritesNothing(t *testing.T) {
	now := time.Now().UTC()
	repo := shoreditchRepo(now)
	svc := app.NewReviewService(repo, &fakeCache{})

	_, err := svc.Approve(context.Background(), 999, true, nil, nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if repo.updates != 0 {
		t.Fatalf("unknown id must not write, saw %d updates", repo.updates)
	}

	if _, err := svc.Approve(context.Background(), 0, true, nil, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("non-positive id must fail validation, got %v", err)
	}
}

func TestUpdateStatus_PublishedRequiresApproved(t *testing.T) {
	now := time.Now().UTC()
	repo := shoreditchRepo(now)
	svc := app.NewReviewService(repo, &fakeCache{})

	_, err := svc.UpdateStatus(context.Background(), 102, domain.StatusPublished, false)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("published without approval must fail, got %v", err)
	}
	if repo.updates != 0 {
		t.Fatalf("invalid transition must not write")
	}

	rv, err := svc.UpdateStatus(context.Background(), 102, domain.StatusPublished, true)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if rv.Status != domain.StatusPublished || !rv.Approved {
		t.Fatalf("unexpected state: %+v", rv)
	}
}

// ---- sync fakes ----

type fakeHostaway struct {
	reviews []domain.HostawayReview
	err     error
}

func (f *fakeHostaway) ListReviews(ctx context.Context, listingID int64) ([]domain.HostawayReview, error) {
	return f.reviews, f.err
}

type fakePlaces struct {
	placeID   string
	searchErr error
	details   domain.PlaceDetails
	detailErr error
}

func (f *fakePlaces) SearchPlace(ctx context.Context, query string) (string, error) {
	return f.placeID, f.searchErr
}

func (f *fakePlaces) PlaceReviews(ctx context.Context, placeID string) (domain.PlaceDetails, error) {
	return f.details, f.detailErr
}

func TestSyncProperty_MixedBatch(t *testing.T) {
	repo := &fakeRepo{}
	hostawayID := int64(40160)
	prop := domain.Property{ID: 1, Slug: "shoreditch-heights", Name: "Shoreditch Heights",
		Location: "London", HostawayID: &hostawayID}

	rating := 9.0
	hw := &fakeHostaway{reviews: []domain.HostawayReview{
		{ID: 7453, Type: "guest-to-host", Status: "published", Rating: &rating,
			SubmittedAt: "2024-08-21 22:45:14", GuestName: "Shane", ListingName: "Shoreditch Heights"},
		// missing timestamp, must be skipped not fatal
		{ID: 7454, Type: "guest-to-host", Status: "published", Rating: &rating, GuestName: "Anon"},
	}}
	pl := &fakePlaces{placeID: "ChIJ123", details: domain.PlaceDetails{
		Reviews: []domain.PlaceReview{{ReviewID: "alice:1724340000", AuthorName: "Alice", Rating: 4, Text: "great", Time: 1724340000}},
	}}

	svc := app.NewSyncService(hw, pl, repo, &fakeCache{})
	if err := svc.SyncProperty(context.Background(), prop); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(repo.reviews) != 2 {
		t.Fatalf("expected 2 persisted reviews (1 hostaway + 1 google), got %d", len(repo.reviews))
	}
	for _, r := range repo.reviews {
		if r.Rating < 0 || r.Rating > domain.MaxRating {
			t.Fatalf("persisted rating out of bounds: %+v", r)
		}
	}
}

func TestSyncProperty_UpstreamMissIsLogged(t *testing.T) {
	repo := &fakeRepo{}
	hostawayID := int64(99)
	prop := domain.Property{ID: 2, Slug: "x", Name: "X", Location: "Y", HostawayID: &hostawayID}

	hw := &fakeHostaway{err: domain.ErrNotFound}
	pl := &fakePlaces{searchErr: domain.ErrNotFound}

	svc := app.NewSyncService(hw, pl, repo, &fakeCache{})
	if err := svc.SyncProperty(context.Background(), prop); err != nil {
		t.Fatalf("miss should not fail the sync: %v", err)
	}
	if len(repo.misses) != 2 {
		t.Fatalf("expected hostaway + places misses, got %v", repo.misses)
	}
}

func TestSyncProperty_HardUpstreamErrorAborts(t *testing.T) {
	repo := &fakeRepo{}
	hostawayID := int64(99)
	prop := domain.Property{ID: 3, Slug: "x", Name: "X", Location: "Y", HostawayID: &hostawayID}

	hw := &fakeHostaway{err: domain.ErrUpstream}
	svc := app.NewSyncService(hw, nil, repo, nil)
	if err := svc.SyncProperty(context.Background(), prop); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error to propagate, got %v", err)
	}
}
