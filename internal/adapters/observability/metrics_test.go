package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsEndpointExposesCounters(t *testing.T) {
	reg := InitRegistry()

	ObserveHTTP("/v1/reviews", "GET", 200, 12*time.Millisecond)
	ObserveExternal("hostaway", "reviews", 200, 80*time.Millisecond)
	ObserveCache("redis", "hit")
	ObserveGeocode(true)
	ObserveGeocode(false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	MetricsHandler(reg).ServeHTTP(rec, req)

	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, metric := range []string{
		"reviewdash_http_requests_total",
		"reviewdash_external_requests_total",
		"reviewdash_cache_events_total",
		"reviewdash_geocode_outcomes_total",
	} {
		if !strings.Contains(text, metric) {
			t.Errorf("metrics output missing %s", metric)
		}
	}
}
