package lookup

import (
	"io"
	"math"
	"net/http"
	"time"
)

// RetryBaseDelay is the first backoff after a 429. It doubles on each attempt.
// Tests shorten it.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 3

// keyTransport adds the API key to every request and retries rate limited
// calls with exponential backoff. The books service ignores option.WithAPIKey
// once a custom HTTP client is supplied, so the key is attached here.
type keyTransport struct {
	base       http.RoundTripper
	apiKey     string
	maxRetries int
}

func (t *keyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.apiKey != "" {
		req = req.Clone(req.Context())
		q := req.URL.Query()
		q.Set("key", t.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	maxRetries := t.maxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
	}
}
