package providers

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

	"github.com/sony/gobreaker"

	"github.com/i474232898/green-wellness-tracker/internal/common"
	"github.com/i474232898/green-wellness-tracker/internal/sensor"
)

const (
	DefaultEndpoint = "http://openapi.seoul.go.kr:8088"
	DefaultDataset  = "IotVdata017"
	DefaultRowLimit = 1000

	// maxBodyBytes bounds how much of an answer is read; 1000 rows fit comfortably.
	maxBodyBytes = 8 << 20
)

var (
	ErrMalformedBody = errors.New("malformed response body")
	ErrMissingKey    = errors.New("response is missing an expected key")
	ErrAPIResult     = errors.New("upstream reported an error")
)

// SeoulConfig configures the Seoul open data source.
type SeoulConfig struct {
	Endpoint string
	APIKey   string
	Dataset  string
	RowLimit int
	Location *time.Location
	Backoff  BackoffConfig
}

// SeoulProvider implements sensor.Source for the Seoul IoT park sensor dataset.
type SeoulProvider struct {
	name     string
	endpoint string
	apiKey   string
	dataset  string
	rowLimit int
	location *time.Location
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	now      func() time.Time
}

type apiResult struct {
	Code    string `json:"CODE"`
	Message string `json:"MESSAGE"`
}

func NewSeoulProvider(client *http.Client, cfg SeoulConfig) *SeoulProvider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = DefaultRowLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Backoff.InitialInterval <= 0 {
		cfg.Backoff.InitialInterval = 500 * time.Millisecond
	}
	if cfg.Backoff.MaxInterval <= 0 {
		cfg.Backoff.MaxInterval = 5 * time.Second
	}

	return &SeoulProvider{
		name:     "seoul-openapi",
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		dataset:  cfg.Dataset,
		rowLimit: cfg.RowLimit,
		location: cfg.Location,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: cfg.Backoff,
		},
		circuit: newCircuitBreaker("seoul-openapi"),
		now:     time.Now,
	}
}

func (p *SeoulProvider) Name() string {
	return p.name
}

// URL returns the request URL for the configured dataset.
func (p *SeoulProvider) URL() string {
	return fmt.Sprintf("%s/%s/json/%s/1/%d/",
		p.endpoint, url.PathEscape(p.apiKey), url.PathEscape(p.dataset), p.rowLimit)
}

func (p *SeoulProvider) Fetch(ctx context.Context) (sensor.Dataset, error) {
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, p.URL(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return sensor.Dataset{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return sensor.Dataset{}, fmt.Errorf("reading response: %w", err)
	}

	rows, err := p.decode(body)
	if err != nil {
		return sensor.Dataset{}, err
	}

	readings, warnings := parseRows(rows, p.location)
	return sensor.Dataset{
		Readings:  readings,
		Warnings:  warnings,
		FetchedAt: p.now(),
	}, nil
}

// decode unwraps { "<dataset>": { "RESULT": ..., "row": [...] } }. A top-level
// RESULT without the dataset key is the API's error answer.
func (p *SeoulProvider) decode(body []byte) ([]map[string]any, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	raw, ok := envelope[p.dataset]
	if !ok {
		if res, ok := envelope["RESULT"]; ok {
			var r apiResult
			if err := json.Unmarshal(res, &r); err == nil && r.Code != "" {
				return nil, fmt.Errorf("%w: %s %s", ErrAPIResult, r.Code, r.Message)
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrMissingKey, p.dataset)
	}

	var payload struct {
		Total  int             `json:"list_total_count"`
		Result *apiResult      `json:"RESULT"`
		Rows   json.RawMessage `json:"row"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if payload.Result != nil && common.HasAny(payload.Result.Code, "ERROR") {
		return nil, fmt.Errorf("%w: %s %s", ErrAPIResult, payload.Result.Code, payload.Result.Message)
	}
	if payload.Rows == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingKey, p.dataset+".row")
	}

	dec := json.NewDecoder(bytes.NewReader(payload.Rows))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return rows, nil
}
