package platform

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClient posts JSON with bounded retries. Used by the capture agent to
// publish observations to the API server.
type HTTPClient struct {
	Client  *http.Client
	Retries int
	Logger  zerolog.Logger
}

func NewHTTPClient(retries int, timeout time.Duration, logger zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		Client: &http.Client{
			Timeout: timeout,
		},
		Retries: retries,
		Logger:  logger,
	}
}

func (c *HTTPClient) PostJSON(url string, body []byte) (*http.Response, error) {
	var resp *http.Response
	var err error

	for i := 0; i <= c.Retries; i++ {
		req, rErr := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if rErr != nil {
			return nil, rErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = c.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if i < c.Retries {
			c.Logger.Warn().Str("url", url).Int("attempt", i+1).Err(err).
				Msg("HTTP request failed, retrying")
			time.Sleep(time.Duration(1<<i) * 200 * time.Millisecond) // Exponential backoff
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d retries: %w", c.Retries, err)
	}
	return resp, nil // return last response even if 500
}
