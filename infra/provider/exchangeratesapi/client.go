// Package exchangeratesapi fetches dated rate tables over HTTP from an
// exchangeratesapi.io compatible service.
package exchangeratesapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/amirasaad/fxdate/pkg/provider/exchange"
)

// ProviderName identifies this provider in logs, errors and metrics.
const ProviderName = "exchangeratesapi"

// Config holds the endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements exchange.Provider.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

type apiError struct {
	Code int    `json:"code"`
	Type string `json:"type"`
	Info string `json:"info"`
}

type ratesResponse struct {
	Success *bool              `json:"success,omitempty"`
	Error   *apiError          `json:"error,omitempty"`
	Base    string             `json:"base"`
	Date    string             `json:"date"`
	Rates   map[string]float64 `json:"rates"`
}

// New creates a client for cfg.BaseURL.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid exchange rate provider url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    u,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("provider", ProviderName),
	}, nil
}

func (c *Client) Name() string { return ProviderName }

// Fetch requests GET {baseURL}/{date|latest}?base=CODE.
func (c *Client) Fetch(ctx context.Context, base currency.Code, date string) (*core.RateTable, error) {
	if !currency.IsWellFormed(base) {
		return nil, &core.ParseError{Field: "base", Input: string(base), Err: core.ErrInvalidBase}
	}
	path := core.Latest
	if date != "" {
		if _, err := time.Parse(core.DateLayout, date); err != nil {
			return nil, &core.ParseError{Field: "date", Input: date, Err: core.ErrInvalidDate}
		}
		path = date
	}

	u := c.baseURL.JoinPath(path)
	q := u.Query()
	q.Set("base", string(base))
	if c.apiKey != "" {
		q.Set("access_key", c.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching exchange rates", "base", string(base), "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &core.ProviderError{Provider: ProviderName, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &core.ProviderError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", body),
		}
	}

	var payload ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &core.ParseError{Field: "response", Err: err}
	}
	if payload.Success != nil && !*payload.Success {
		msg := "request rejected"
		if payload.Error != nil {
			msg = fmt.Sprintf("%s: %s", payload.Error.Type, payload.Error.Info)
		}
		return nil, &core.ProviderError{Provider: ProviderName, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", msg)}
	}
	if payload.Rates == nil {
		return nil, &core.ParseError{Field: "rates", Err: fmt.Errorf("missing rates object")}
	}
	if payload.Base != "" && payload.Base != string(base) {
		return nil, &core.ParseError{Field: "base", Input: payload.Base, Err: core.ErrInvalidBase}
	}

	table, err := core.NewRateTable(base, payload.Date, payload.Rates)
	if err != nil {
		c.logger.Warn("Rejected rate payload", "base", string(base), "error", err)
		return nil, err
	}
	return table, nil
}

var _ exchange.Provider = (*Client)(nil)
