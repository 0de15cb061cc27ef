package app_test

import (
	"math/rand/v2"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewdash/internal/app"
	"reviewdash/internal/domain"
)

func mkReview(id int64, listing string, rating float64, month time.Month, text string) domain.Review {
	return domain.Review{
		ID:          id,
		ListingName: listing,
		Channel:     domain.ChannelHostaway,
		Rating:      rating,
		Text:        text,
		SubmittedAt: time.Date(2024, month, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestComputeAnalytics_Empty(t *testing.T) {
	a := app.ComputeAnalytics(nil)

	assert.Equal(t, 0, a.TotalReviews)
	assert.Zero(t, a.AverageRating)
	assert.NotNil(t, a.RatingDistribution)
	assert.NotNil(t, a.CategoryAverages)
	assert.NotNil(t, a.ChannelBreakdown)
	assert.Empty(t, a.MonthlyTrends)
	assert.Empty(t, a.TopProperties)
	assert.Empty(t, a.CommonIssues)
	assert.Empty(t, a.PerformanceAlerts)
}

func TestComputeAnalytics_OrderIndependent(t *testing.T) {
	reviews := []domain.Review{
		mkReview(1, "A", 5, time.January, ""),
		mkReview(2, "A", 4, time.February, ""),
		mkReview(3, "B", 3, time.January, ""),
		mkReview(4, "C", 2, time.March, "dirty and noisy"),
	}
	reviews[0].Categories = map[domain.Category]float64{domain.CategoryCleanliness: 5}
	reviews[2].Categories = map[domain.Category]float64{domain.CategoryCleanliness: 3}

	want := app.ComputeAnalytics(reviews)

	shuffled := append([]domain.Review(nil), reviews...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	got := app.ComputeAnalytics(shuffled)

	require.True(t, reflect.DeepEqual(want, got), "analytics must not depend on input order")
}

func TestComputeAnalytics_Distribution(t *testing.T) {
	reviews := []domain.Review{
		mkReview(1, "A", 5.0, time.January, ""),
		mkReview(2, "A", 4.9, time.January, ""),
		mkReview(3, "A", 4.0, time.January, ""),
		mkReview(4, "A", 0.5, time.January, ""),
	}
	a := app.ComputeAnalytics(reviews)

	// 5.0 clamps into the 5 bucket; 4.9 floors to 4.
	assert.Equal(t, 1, a.RatingDistribution[5])
	assert.Equal(t, 2, a.RatingDistribution[4])
	assert.Equal(t, 1, a.RatingDistribution[0])
	assert.Equal(t, 3.6, a.AverageRating)
}

func TestComputeAnalytics_CategoryAveragesExcludeMissing(t *testing.T) {
	r1 := mkReview(1, "A", 5, time.January, "")
	r1.Categories = map[domain.Category]float64{domain.CategoryCleanliness: 5, domain.CategoryLocation: 4}
	r2 := mkReview(2, "A", 3, time.January, "")
	r2.Categories = map[domain.Category]float64{domain.CategoryCleanliness: 2}
	r3 := mkReview(3, "A", 4, time.January, "") // no categories at all

	a := app.ComputeAnalytics([]domain.Review{r1, r2, r3})

	// cleanliness over two reviews, location over one; r3 counts toward neither.
	assert.Equal(t, 3.5, a.CategoryAverages[domain.CategoryCleanliness])
	assert.Equal(t, 4.0, a.CategoryAverages[domain.CategoryLocation])
	assert.NotContains(t, a.CategoryAverages, domain.CategoryCheckin)
}

func TestComputeAnalytics_TrendsAndRanking(t *testing.T) {
	reviews := []domain.Review{
		mkReview(1, "B", 4, time.March, ""),
		mkReview(2, "A", 5, time.January, ""),
		mkReview(3, "A", 5, time.February, ""),
		mkReview(4, "C", 5, time.January, ""),
		mkReview(5, "B", 4, time.January, ""),
	}
	a := app.ComputeAnalytics(reviews)

	require.Len(t, a.MonthlyTrends, 3)
	assert.Equal(t, "2024-01", a.MonthlyTrends[0].Month)
	assert.Equal(t, "2024-03", a.MonthlyTrends[2].Month)
	assert.Equal(t, 3, a.MonthlyTrends[0].Count)

	// A and B tie on count; A wins on average, C trails on count.
	require.Len(t, a.TopProperties, 3)
	assert.Equal(t, "A", a.TopProperties[0].ListingName)
	assert.Equal(t, "B", a.TopProperties[1].ListingName)
	assert.Equal(t, "C", a.TopProperties[2].ListingName)
}

func TestComputeAnalytics_TopPropertiesCapped(t *testing.T) {
	var reviews []domain.Review
	for i := 0; i < 8; i++ {
		reviews = append(reviews, mkReview(int64(i+1), string(rune('A'+i)), 4, time.January, ""))
	}
	a := app.ComputeAnalytics(reviews)
	assert.Len(t, a.TopProperties, 5)
}

func TestComputeAnalytics_IssueScan(t *testing.T) {
	reviews := []domain.Review{
		mkReview(1, "A", 1.5, time.January, "The flat was dirty and the walls had stains"),
		mkReview(2, "A", 2.0, time.January, "So dirty, never again"),
		mkReview(3, "A", 2.5, time.January, "dusty everywhere"),
		// high rating: keyword present but must not count
		mkReview(4, "A", 5.0, time.January, "not dirty at all, spotless"),
	}
	a := app.ComputeAnalytics(reviews)

	require.NotEmpty(t, a.CommonIssues)
	iss := a.CommonIssues[0]
	assert.Equal(t, "cleanliness", iss.Label)
	assert.Equal(t, 3, iss.Count)
	// avg of 1.5, 2.0, 2.5 is exactly 2.0, which lands in the medium band
	assert.Equal(t, "medium", iss.Severity)
}

func TestComputeAnalytics_Alerts(t *testing.T) {
	reviews := []domain.Review{
		mkReview(1, "A", 2.0, time.January, "broken heating"),
		mkReview(2, "A", 2.5, time.January, "wifi broken"),
		mkReview(3, "A", 3.0, time.January, "leak in the bathroom"),
	}
	a := app.ComputeAnalytics(reviews)

	kinds := map[string]bool{}
	for _, al := range a.PerformanceAlerts {
		kinds[al.Kind] = true
	}
	assert.True(t, kinds["low_average_rating"], "average 2.5 must trigger the low-average alert")
	assert.True(t, kinds["recurring_issue"], "3 maintenance mentions must trigger the recurring-issue alert")
}

func TestComputeAnalytics_NoAlertsWhenHealthy(t *testing.T) {
	reviews := []domain.Review{
		mkReview(1, "A", 4.5, time.January, "lovely"),
		mkReview(2, "A", 5.0, time.February, "perfect"),
	}
	a := app.ComputeAnalytics(reviews)
	assert.Empty(t, a.PerformanceAlerts)
	assert.Empty(t, a.CommonIssues)
}
