package hostaway

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reviewdash/internal/adapters/observability"
	"reviewdash/internal/domain"
)

// Client talks to the property-management platform's review API with
// client-side rate limiting and retry on 429/transient 5xx.
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

type reviewsEnvelope struct {
	Status string       `json:"status"`
	Result []wireReview `json:"result"`
}

type wireReview struct {
	ID             int64          `json:"id"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	Rating         *float64       `json:"rating"`
	PublicReview   string         `json:"publicReview"`
	ReviewCategory []wireCategory `json:"reviewCategory"`
	SubmittedAt    string         `json:"submittedAt"`
	GuestName      string         `json:"guestName"`
	ListingName    string         `json:"listingName"`
}

type wireCategory struct {
	Category string  `json:"category"`
	Rating   float64 `json:"rating"`
}

// ListReviews fetches all reviews for one platform listing.
func (c *Client) ListReviews(ctx context.Context, listingID int64) ([]domain.HostawayReview, error) {
	url := fmt.Sprintf("%s/reviews?listingMapId=%d", c.base, listingID)
	var env reviewsEnvelope
	if err := c.get(ctx, url, "reviews", &env); err != nil {
		return nil, err
	}
	if !strings.EqualFold(env.Status, "success") {
		return nil, fmt.Errorf("%w: hostaway status %q", domain.ErrUpstream, env.Status)
	}
	out := make([]domain.HostawayReview, 0, len(env.Result))
	for _, w := range env.Result {
		cats := make([]domain.HostawayCategory, 0, len(w.ReviewCategory))
		for _, c := range w.ReviewCategory {
			cats = append(cats, domain.HostawayCategory{Category: c.Category, Rating: c.Rating})
		}
		out = append(out, domain.HostawayReview{
			ID:          w.ID,
			Type:        w.Type,
			Status:      w.Status,
			Rating:      w.Rating,
			Text:        w.PublicReview,
			Categories:  cats,
			SubmittedAt: w.SubmittedAt,
			GuestName:   w.GuestName,
			ListingName: w.ListingName,
		})
	}
	return out, nil
}

// get performs a GET with rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
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
		req.Header.Set("Authorization", "Bearer "+c.key)
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
		observability.ObserveExternal("hostaway", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
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

// sleepCtx waits for d or returns early if ctx is done.
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

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
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

// backoff returns an exponential delay (200ms, 400ms, 800ms, ...) with up to
// +50% crypto-rand jitter.
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
