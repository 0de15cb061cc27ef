package google

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reviewdash/internal/adapters/observability"
	"reviewdash/internal/domain"
)

// Client covers the two Google Maps APIs this service consumes: Places
// (search + place reviews) and forward geocoding. One key, one limiter.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- wire shapes ----

type findPlaceResp struct {
	Status     string `json:"status"`
	Candidates []struct {
		PlaceID string `json:"place_id"`
	} `json:"candidates"`
}

type detailsResp struct {
	Status string `json:"status"`
	Result struct {
		Name         string  `json:"name"`
		Rating       float64 `json:"rating"`
		TotalRatings int     `json:"user_ratings_total"`
		Reviews      []struct {
			AuthorName string  `json:"author_name"`
			Rating     float64 `json:"rating"`
			Text       string  `json:"text"`
			Time       int64   `json:"time"`
		} `json:"reviews"`
	} `json:"result"`
}

type geocodeResp struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// SearchPlace resolves a free-text query to a place id.
func (c *Client) SearchPlace(ctx context.Context, query string) (string, error) {
	u := fmt.Sprintf("%s/place/findplacefromtext/json?input=%s&inputtype=textquery&fields=place_id&key=%s",
		c.base, url.QueryEscape(query), url.QueryEscape(c.key))
	var out findPlaceResp
	if err := c.get(ctx, u, "place_search", &out); err != nil {
		return "", err
	}
	if err := mapStatus(out.Status); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 {
		return "", domain.ErrNotFound
	}
	return out.Candidates[0].PlaceID, nil
}

// PlaceReviews fetches the public reviews attached to a place. Place reviews
// carry no id on the wire; ReviewID is composed from author and timestamp so
// the normalizer has an opaque identifier to work from.
func (c *Client) PlaceReviews(ctx context.Context, placeID string) (domain.PlaceDetails, error) {
	u := fmt.Sprintf("%s/place/details/json?place_id=%s&fields=name,rating,user_ratings_total,reviews&key=%s",
		c.base, url.QueryEscape(placeID), url.QueryEscape(c.key))
	var out detailsResp
	if err := c.get(ctx, u, "place_details", &out); err != nil {
		return domain.PlaceDetails{}, err
	}
	if err := mapStatus(out.Status); err != nil {
		return domain.PlaceDetails{}, err
	}
	d := domain.PlaceDetails{
		PlaceID:      placeID,
		Name:         out.Result.Name,
		Rating:       out.Result.Rating,
		TotalRatings: out.Result.TotalRatings,
	}
	for _, w := range out.Result.Reviews {
		d.Reviews = append(d.Reviews, domain.PlaceReview{
			ReviewID:   fmt.Sprintf("%s:%d", w.AuthorName, w.Time),
			AuthorName: w.AuthorName,
			Rating:     w.Rating,
			Text:       w.Text,
			Time:       w.Time,
		})
	}
	return d, nil
}

// Geocode forward-geocodes a free-text address.
func (c *Client) Geocode(ctx context.Context, address string) (domain.GeoResult, error) {
	u := fmt.Sprintf("%s/geocode/json?address=%s&key=%s", c.base, url.QueryEscape(address), url.QueryEscape(c.key))
	var out geocodeResp
	if err := c.get(ctx, u, "geocode", &out); err != nil {
		return domain.GeoResult{}, err
	}
	if err := mapStatus(out.Status); err != nil {
		return domain.GeoResult{}, err
	}
	if len(out.Results) == 0 {
		return domain.GeoResult{}, domain.ErrNotFound
	}
	r := out.Results[0]
	return domain.GeoResult{
		Lat:     r.Geometry.Location.Lat,
		Lon:     r.Geometry.Location.Lng,
		Address: r.FormattedAddress,
	}, nil
}

// mapStatus translates the API-level status field Google returns alongside
// HTTP 200 into the shared error taxonomy.
func mapStatus(s string) error {
	switch s {
	case "OK":
		return nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return domain.ErrNotFound
	case "REQUEST_DENIED":
		return domain.ErrForbidden
	}
	return fmt.Errorf("%w: google status %q", domain.ErrUpstream, s)
}

// get performs a GET with rate limiting, retries, and JSON decode into out.
func (c *Client) get(ctx context.Context, url, endpoint string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "reviewdash/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("google", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return domain.ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return domain.ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("%w: remote %d", domain.ErrUpstream, resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("%w: bad status %d: %s", domain.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
