package httpserver

import (
	"net/http/httptest"
	"testing"
)

func TestWriteCached_ETagShortCircuit(t *testing.T) {
	payload := map[string]any{"totalReviews": 3}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/stats", nil)
	writeCached(rec, req, payload)

	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest("GET", "/v1/stats", nil)
	req2.Header.Set("If-None-Match", etag)
	writeCached(rec2, req2, payload)

	if rec2.Code != 304 {
		t.Fatalf("expected 304 on matching If-None-Match, got %d", rec2.Code)
	}
	if rec2.Body.Len() != 0 {
		t.Fatalf("304 must carry no body")
	}
}

func TestParseFilters_RatingValidation(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/reviews?rating=4.5&channel=google&status=pending", nil)
	f, err := parseFilters(req)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if f.MinRating == nil || *f.MinRating != 4.5 || f.Channel != "google" || f.Status != "pending" {
		t.Fatalf("unexpected filters: %+v", f)
	}

	for _, bad := range []string{"six", "-1", "5.1"} {
		req := httptest.NewRequest("GET", "/v1/reviews?rating="+bad, nil)
		if _, err := parseFilters(req); err == nil {
			t.Errorf("rating %q must be rejected", bad)
		}
	}
}
