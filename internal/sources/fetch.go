package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rahul/perfwizard/internal/governance"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 PerformanceWizard/1.0"

// ErrDenied is returned when the policy engine refuses a fetch.
var ErrDenied = errors.New("fetch denied by policy")

// Fetcher performs the HTTP GETs shared by the sources.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	MaxBytes  int64
	Policy    governance.PolicyEngine
}

func NewFetcher(timeout time.Duration, maxBytes int64, policy governance.PolicyEngine) *Fetcher {
	return &Fetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: defaultUserAgent,
		MaxBytes:  maxBytes,
		Policy:    policy,
	}
}

// Get fetches url and returns at most MaxBytes of the body.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if f.Policy != nil {
		res, err := f.Policy.Evaluate(ctx, governance.Request{URL: url})
		if err != nil {
			return nil, err
		}
		if !res.Allowed() {
			return nil, fmt.Errorf("%w: %s", ErrDenied, res.Reason)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status code %d", url, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes)
	}
	return io.ReadAll(body)
}
