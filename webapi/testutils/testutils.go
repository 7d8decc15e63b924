// Package testutils builds applications and requests for HTTP tests.
package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	infraeventbus "github.com/amirasaad/fxdate/infra/eventbus"
	"github.com/amirasaad/fxdate/internal/fixtures"
	"github.com/amirasaad/fxdate/pkg/app"
	"github.com/amirasaad/fxdate/pkg/config"
	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/amirasaad/fxdate/pkg/preferences"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

// StubDate is the as-of date StubProvider reports for latest requests.
const StubDate = "2024-03-15"

// StubProvider serves fixtures.RawRates tables for every base and date, or
// Err when set.
type StubProvider struct {
	mu    sync.Mutex
	Err   error
	calls int
}

func (p *StubProvider) Name() string { return "stub" }

func (p *StubProvider) Fetch(_ context.Context, base currency.Code, date string) (*core.RateTable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Err != nil {
		return nil, p.Err
	}
	if date == "" {
		date = StubDate
	}
	return core.NewRateTable(base, date, fixtures.RawRates(base, nil))
}

// SetErr changes the failure returned by later fetches.
func (p *StubProvider) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}

// Calls returns the number of fetches so far.
func (p *StubProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// NewApp assembles an App on in-memory infrastructure around provider.
func NewApp(t testing.TB, provider *StubProvider, cfg *config.App) *app.App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg == nil {
		cfg = &config.App{Env: "test"}
	}
	a, err := app.New(&app.Deps{
		Provider:    provider,
		Preferences: preferences.NewMemory(),
		EventBus:    infraeventbus.NewWithMemory(logger),
		Logger:      logger,
	}, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// MakeRequest sends a request through fiberApp. body is sent as JSON when
// not empty.
func MakeRequest(t testing.TB, fiberApp *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	resp, err := fiberApp.Test(req, 10000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// Envelope mirrors common.Response with a typed payload.
type Envelope[T any] struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Decode reads a JSON body into T.
func Decode[T any](t testing.TB, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
