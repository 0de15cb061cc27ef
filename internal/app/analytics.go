package app

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"reviewdash/internal/domain"
)

// Analytics is recomputed from scratch over an in-memory review snapshot.
// Only MonthlyTrends and TopProperties carry an ordering guarantee; every
// other output is independent of input order.
type Analytics struct {
	TotalReviews       int                             `json:"totalReviews"`
	AverageRating      float64                         `json:"averageRating"`
	RatingDistribution map[int]int                     `json:"ratingDistribution"`
	CategoryAverages   map[domain.Category]float64     `json:"categoryAverages"`
	ChannelBreakdown   map[domain.Channel]int          `json:"channelBreakdown"`
	MonthlyTrends      []MonthlyTrend                  `json:"monthlyTrends"`
	TopProperties      []PropertyRank                  `json:"topProperties"`
	CommonIssues       []Issue                         `json:"commonIssues"`
	PerformanceAlerts  []Alert                         `json:"performanceAlerts"`
}

type MonthlyTrend struct {
	Month         string  `json:"month"` // "2006-01"
	Count         int     `json:"count"`
	AverageRating float64 `json:"averageRating"`
}

type PropertyRank struct {
	ListingName   string  `json:"listingName"`
	Count         int     `json:"count"`
	AverageRating float64 `json:"averageRating"`
}

type Issue struct {
	Label    string `json:"label"`
	Count    int    `json:"count"`
	Severity string `json:"severity"` // low|medium|high
}

type Alert struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	topPropertiesLimit = 5
	// Reviews rated below this feed the issue keyword scan.
	issueRatingCeiling = 3.5
	lowAverageCutoff   = 4.0
	recurringIssueMin  = 3
)

// Keyword vocabulary for the issue scan. Substring matching over lowercased
// bodies; a best-effort heuristic, not a classifier.
var issueVocab = []struct {
	label    string
	keywords []string
}{
	{"cleanliness", []string{"dirty", "unclean", "dust", "stain", "smell", "mess"}},
	{"noise", []string{"noise", "noisy", "loud", "thin walls"}},
	{"communication", []string{"communication", "unresponsive", "no response", "never replied", "hard to reach"}},
	{"location", []string{"location", "far from", "inconvenient", "unsafe"}},
	{"value", []string{"expensive", "overpriced", "not worth", "poor value"}},
	{"check-in", []string{"check-in", "checkin", "lockbox", "key", "access"}},
	{"maintenance", []string{"broken", "repair", "leak", "heating", "wifi", "hot water"}},
}

// ComputeAnalytics aggregates a normalized review snapshot. Pure; never
// errors, even on an empty input.
func ComputeAnalytics(reviews []domain.Review) Analytics {
	a := Analytics{
		TotalReviews:       len(reviews),
		RatingDistribution: map[int]int{},
		CategoryAverages:   map[domain.Category]float64{},
		ChannelBreakdown:   map[domain.Channel]int{},
		MonthlyTrends:      []MonthlyTrend{},
		TopProperties:      []PropertyRank{},
		CommonIssues:       []Issue{},
		PerformanceAlerts:  []Alert{},
	}
	if len(reviews) == 0 {
		return a
	}

	var ratingSum float64
	catSum := map[domain.Category]float64{}
	catN := map[domain.Category]int{}
	type bucket struct {
		n   int
		sum float64
	}
	months := map[string]*bucket{}
	props := map[string]*bucket{}

	for _, r := range reviews {
		ratingSum += r.Rating

		b := int(math.Floor(r.Rating))
		if b > int(domain.MaxRating) {
			b = int(domain.MaxRating)
		}
		a.RatingDistribution[b]++

		for c, v := range r.Categories {
			catSum[c] += v
			catN[c]++
		}
		a.ChannelBreakdown[r.Channel]++

		mk := r.SubmittedAt.Format("2006-01")
		if months[mk] == nil {
			months[mk] = &bucket{}
		}
		months[mk].n++
		months[mk].sum += r.Rating

		if props[r.ListingName] == nil {
			props[r.ListingName] = &bucket{}
		}
		props[r.ListingName].n++
		props[r.ListingName].sum += r.Rating
	}

	a.AverageRating = round1(ratingSum / float64(len(reviews)))
	for c, sum := range catSum {
		// Only reviews that populated the category count toward its mean.
		a.CategoryAverages[c] = round1(sum / float64(catN[c]))
	}

	for mk, b := range months {
		a.MonthlyTrends = append(a.MonthlyTrends, MonthlyTrend{
			Month:         mk,
			Count:         b.n,
			AverageRating: round1(b.sum / float64(b.n)),
		})
	}
	sort.Slice(a.MonthlyTrends, func(i, j int) bool { return a.MonthlyTrends[i].Month < a.MonthlyTrends[j].Month })

	for name, b := range props {
		a.TopProperties = append(a.TopProperties, PropertyRank{
			ListingName:   name,
			Count:         b.n,
			AverageRating: round1(b.sum / float64(b.n)),
		})
	}
	sort.Slice(a.TopProperties, func(i, j int) bool {
		pi, pj := a.TopProperties[i], a.TopProperties[j]
		if pi.Count != pj.Count {
			return pi.Count > pj.Count
		}
		if pi.AverageRating != pj.AverageRating {
			return pi.AverageRating > pj.AverageRating
		}
		return pi.ListingName < pj.ListingName
	})
	if len(a.TopProperties) > topPropertiesLimit {
		a.TopProperties = a.TopProperties[:topPropertiesLimit]
	}

	a.CommonIssues = scanIssues(reviews)
	a.PerformanceAlerts = deriveAlerts(a)
	return a
}

func scanIssues(reviews []domain.Review) []Issue {
	type tally struct {
		n   int
		sum float64
	}
	hits := map[string]*tally{}
	for _, r := range reviews {
		if r.Rating >= issueRatingCeiling || r.Text == "" {
			continue
		}
		body := strings.ToLower(r.Text)
		for _, v := range issueVocab {
			for _, kw := range v.keywords {
				if strings.Contains(body, kw) {
					if hits[v.label] == nil {
						hits[v.label] = &tally{}
					}
					hits[v.label].n++
					hits[v.label].sum += r.Rating
					break // one hit per vocabulary entry per review
				}
			}
		}
	}

	out := make([]Issue, 0, len(hits))
	for label, t := range hits {
		avg := t.sum / float64(t.n)
		sev := "low"
		switch {
		case avg < 2.0:
			sev = "high"
		case avg < 3.0:
			sev = "medium"
		}
		out = append(out, Issue{Label: label, Count: t.n, Severity: sev})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// deriveAlerts applies fixed threshold rules over the computed aggregates.
func deriveAlerts(a Analytics) []Alert {
	alerts := []Alert{}
	if a.TotalReviews > 0 && a.AverageRating < lowAverageCutoff {
		alerts = append(alerts, Alert{
			Kind:    "low_average_rating",
			Message: fmt.Sprintf("average rating %.1f is below %.1f", a.AverageRating, lowAverageCutoff),
		})
	}
	for _, iss := range a.CommonIssues {
		if iss.Count >= recurringIssueMin {
			alerts = append(alerts, Alert{
				Kind:    "recurring_issue",
				Message: fmt.Sprintf("%s mentioned in %d low-rated reviews (severity %s)", iss.Label, iss.Count, iss.Severity),
			})
		}
	}
	return alerts
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }
