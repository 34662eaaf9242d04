package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRequestTimeout = 15 * time.Second

var errMissingBaseURL = errors.New("checkout: api base url is required")

// StatusError reports a non-2xx response from the completion endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("checkout: completion endpoint returned status %d", e.StatusCode)
}

// HTTPCompleterConfig configures the HTTP completion client.
type HTTPCompleterConfig struct {
	BaseURL      string
	SessionToken string
	HTTPClient   *http.Client
}

// HTTPCompleter calls POST {base}/courses/{courseId}/checkout/complete.
type HTTPCompleter struct {
	baseURL      *url.URL
	sessionToken string
	client       *http.Client
}

type completeRequestPayload struct {
	UserID string `json:"userId"`
}

// NewHTTPCompleter validates the configuration and constructs an HTTPCompleter.
func NewHTTPCompleter(cfg HTTPCompleterConfig) (*HTTPCompleter, error) {
	rawBase := strings.TrimSpace(cfg.BaseURL)
	if rawBase == "" {
		return nil, errMissingBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(rawBase, "/"))
	if err != nil {
		return nil, fmt.Errorf("checkout: invalid api base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPCompleter{
		baseURL:      baseURL,
		sessionToken: strings.TrimSpace(cfg.SessionToken),
		client:       client,
	}, nil
}

// CompletePurchase issues a single completion request; it never retries.
func (c *HTTPCompleter) CompletePurchase(ctx context.Context, courseID, userID string) error {
	body, err := json.Marshal(completeRequestPayload{UserID: userID})
	if err != nil {
		return err
	}

	endpoint := courseURL(c.baseURL, courseID, "checkout", "complete")
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if c.sessionToken != "" {
		request.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: response.StatusCode}
	}
	return nil
}
