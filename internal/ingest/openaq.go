package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/lox/airwatch/internal/httputil"
	"github.com/lox/airwatch/internal/metrics"
	"github.com/lox/airwatch/internal/models"
)

const (
	DefaultOpenAQURL = "https://api.openaq.org/v2"
	pm25Parameter    = "pm25"
)

var ErrNoResults = errors.New("no results")

// OpenAQ fetches the latest city-keyed measurements from an OpenAQ-style API.
type OpenAQ struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	loc        *time.Location
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

func NewOpenAQ(baseURL, apiKey string, loc *time.Location) *OpenAQ {
	if baseURL == "" {
		baseURL = DefaultOpenAQURL
	}
	if loc == nil {
		loc = time.Local
	}
	return &OpenAQ{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httputil.NewClient(),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openaq",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
		loc: loc,
		now: time.Now,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = 2 * time.Minute
			return bo
		},
	}
}

type LatestResponse struct {
	Results []LatestResult `json:"results"`
}

type LatestResult struct {
	Location     string        `json:"location"`
	City         string        `json:"city"`
	Country      string        `json:"country"`
	Measurements []Measurement `json:"measurements"`
}

type Measurement struct {
	Parameter   string  `json:"parameter"`
	Value       float64 `json:"value"`
	LastUpdated string  `json:"lastUpdated"`
	Unit        string  `json:"unit"`
}

// FetchResult records transport details of a fetch for the ingest run log.
type FetchResult struct {
	HTTPStatus   int
	ResponseSize int
	RecordCount  int
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// FetchLatest returns today's PM2.5 reading for city. A city without a pm25
// measurement yields a reading with a nil PM25.
func (c *OpenAQ) FetchLatest(ctx context.Context, city string) (*models.Reading, string, *FetchResult, error) {
	u := fmt.Sprintf("%s/latest?city=%s", c.baseURL, url.QueryEscape(city))
	result := &FetchResult{}

	start := time.Now()
	body, err := c.get(ctx, u, result)
	metrics.OpenAQAPILatency.WithLabelValues(city).Observe(time.Since(start).Seconds())
	metrics.OpenAQAPICallsTotal.WithLabelValues(city, statusLabel(result.HTTPStatus, err)).Inc()
	if err != nil {
		return nil, "", result, fmt.Errorf("fetch latest: %w", err)
	}

	var data LatestResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, string(body), result, fmt.Errorf("unmarshal: %w", err)
	}
	if len(data.Results) == 0 {
		return nil, string(body), result, fmt.Errorf("%w for %s", ErrNoResults, city)
	}

	reading := &models.Reading{
		City:      city,
		Date:      c.now().In(c.loc).Format("2006-01-02"),
		FetchedAt: c.now().UTC(),
		RawJSON:   string(body),
	}
	for _, m := range data.Results[0].Measurements {
		if m.Parameter == pm25Parameter {
			v := m.Value
			reading.PM25 = &v
		}
	}
	if reading.PM25 != nil {
		result.RecordCount = 1
	}

	if err := ValidateReading(reading); err != nil {
		return nil, string(body), result, err
	}
	return reading, string(body), result, nil
}

func (c *OpenAQ) get(ctx context.Context, u string, result *FetchResult) ([]byte, error) {
	var body []byte
	operation := func() error {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(ctx, u, result)
		})
		if err != nil {
			var se *statusError
			switch {
			case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
				return backoff.Permanent(fmt.Errorf("circuit open: %w", err))
			case errors.As(err, &se) && (se.code == http.StatusTooManyRequests || se.code >= 500):
				return err
			default:
				return backoff.Permanent(err)
			}
		}
		body = out.([]byte)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *OpenAQ) do(ctx context.Context, u string, result *FetchResult) ([]byte, error) {
	req, err := httputil.NewRequest(ctx, u)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result.HTTPStatus = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	result.ResponseSize = len(body)

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: truncate(string(body), 200)}
	}
	return body, nil
}

func statusLabel(code int, err error) string {
	if code == 0 {
		if err != nil {
			return "error"
		}
		return "unknown"
	}
	return strconv.Itoa(code)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
