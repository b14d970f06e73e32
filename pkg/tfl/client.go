package tfl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://api.tfl.gov.uk"

// Client talks to the TfL Unified API. Transient failures (transport
// errors and 5xx responses) are retried with exponential backoff; client
// errors are permanent.
type Client struct {
	AppKey  string
	BaseURL string

	httpClient *http.Client

	maxRetries      uint64
	initialInterval time.Duration
}

func NewClient(appKey string) *Client {
	return &Client{
		AppKey:  appKey,
		BaseURL: defaultBaseURL,

		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},

		maxRetries:      3,
		initialInterval: 1 * time.Second,
	}
}

type serverError struct {
	StatusCode int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("tfl api server error: %s", http.StatusText(e.StatusCode))
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("app_key", c.AppKey)

	requestURL := fmt.Sprintf("%s/%s?%s", c.BaseURL, endpoint, params.Encode())

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		// TfL sits behind Cloudflare, which rejects requests with no user agent
		req.Header["user-agent"] = []string{"curl/7.54.1"}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return &serverError{StatusCode: resp.StatusCode}
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("tfl api request failed: %s", resp.Status))
		}

		jsonBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		return backoff.Permanent(unmarshalOrNil(jsonBytes, out))
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
	if err != nil {
		log.Debug().Err(err).Str("endpoint", endpoint).Msg("TfL request exhausted retries")
	}

	return err
}

// backoff.Permanent(nil) is still nil, so successful decodes fall out of
// the retry loop cleanly.
func unmarshalOrNil(jsonBytes []byte, out any) error {
	if out == nil {
		return nil
	}

	return json.Unmarshal(jsonBytes, out)
}

// Modes lists the mode names of the network.
func (c *Client) Modes(ctx context.Context) ([]string, error) {
	var response []struct {
		ModeName string `json:"modeName"`
	}
	if err := c.get(ctx, "Line/Meta/Modes", nil, &response); err != nil {
		return nil, err
	}

	var modes []string
	for _, mode := range response {
		modes = append(modes, mode.ModeName)
	}

	return modes, nil
}

// LinesByMode lists the lines operating under the given modes.
func (c *Client) LinesByMode(ctx context.Context, modes []string) ([]Line, error) {
	var lines []Line
	endpoint := fmt.Sprintf("Line/Mode/%s", strings.Join(modes, ","))

	if err := c.get(ctx, endpoint, nil, &lines); err != nil {
		return nil, err
	}

	return lines, nil
}

// LineStatusByMode fetches current line statuses, including disruption
// detail, for the given modes.
func (c *Client) LineStatusByMode(ctx context.Context, modes []string) ([]LineWithStatus, error) {
	var lines []LineWithStatus
	endpoint := fmt.Sprintf("Line/Mode/%s/Status", strings.Join(modes, ","))

	params := url.Values{}
	params.Set("detail", "true")

	if err := c.get(ctx, endpoint, params, &lines); err != nil {
		return nil, err
	}

	return lines, nil
}

// SeverityCodes fetches the severity code catalog.
func (c *Client) SeverityCodes(ctx context.Context) ([]SeverityCode, error) {
	var codes []SeverityCode
	if err := c.get(ctx, "Line/Meta/Severity", nil, &codes); err != nil {
		return nil, err
	}

	return codes, nil
}

// DisruptionCategories fetches the disruption category catalog.
func (c *Client) DisruptionCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.get(ctx, "Line/Meta/DisruptionCategories", nil, &categories); err != nil {
		return nil, err
	}

	return categories, nil
}

// DisruptionsByMode fetches all currently reported disruptions for the
// given modes.
func (c *Client) DisruptionsByMode(ctx context.Context, modes []string) ([]Disruption, error) {
	var disruptions []Disruption
	endpoint := fmt.Sprintf("Line/Mode/%s/Disruption", strings.Join(modes, ","))

	if err := c.get(ctx, endpoint, nil, &disruptions); err != nil {
		return nil, err
	}

	return disruptions, nil
}

// StopArrivals fetches all arrival predictions at a stop point.
func (c *Client) StopArrivals(ctx context.Context, naptanID string) ([]ArrivalPrediction, error) {
	var arrivals []ArrivalPrediction
	endpoint := fmt.Sprintf("StopPoint/%s/Arrivals", naptanID)

	if err := c.get(ctx, endpoint, nil, &arrivals); err != nil {
		return nil, err
	}

	return arrivals, nil
}

// LineArrivalsAtStop fetches arrival predictions for specific lines at a
// stop point.
func (c *Client) LineArrivalsAtStop(ctx context.Context, lineIDs []string, naptanID string) ([]ArrivalPrediction, error) {
	var arrivals []ArrivalPrediction
	endpoint := fmt.Sprintf("Line/%s/Arrivals/%s", strings.Join(lineIDs, ","), naptanID)

	if err := c.get(ctx, endpoint, nil, &arrivals); err != nil {
		return nil, err
	}

	return arrivals, nil
}

// RouteSequence fetches the ordered stop sequence of a line in one
// direction ("inbound" or "outbound").
func (c *Client) RouteSequence(ctx context.Context, lineID string, direction string) (*RouteSequenceResponse, error) {
	var sequence RouteSequenceResponse
	endpoint := fmt.Sprintf("Line/%s/Route/Sequence/%s", lineID, direction)

	if err := c.get(ctx, endpoint, nil, &sequence); err != nil {
		return nil, err
	}

	return &sequence, nil
}

// ParseTimestamp parses a TfL API timestamp. Returns nil for empty or
// malformed values.
func ParseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}

	parsed = parsed.UTC()
	return &parsed
}
