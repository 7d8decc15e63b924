package conversion

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/amirasaad/fxdate/infra/metrics"
	conversionsvc "github.com/amirasaad/fxdate/pkg/service/conversion"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type otherEvent struct{}

func (otherEvent) Type() string { return "other" }

func TestHandlers(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewSessions(prometheus.NewRegistry())

	loaded := HandleRatesLoaded(m, logger)
	failed := HandleRatesFailed(m, logger)
	changed := HandleDateChanged(m, logger)

	require.NoError(t, loaded(ctx, &conversionsvc.RatesLoadedEvent{SessionID: "s", Base: "CAD", AsOf: "2024-03-15"}))
	require.NoError(t, failed(ctx, &conversionsvc.RatesFailedEvent{SessionID: "s", Base: "CAD", Error: "boom"}))
	require.NoError(t, failed(ctx, &conversionsvc.RatesFailedEvent{SessionID: "s", Base: "USD", Error: "boom"}))
	require.NoError(t, changed(ctx, &conversionsvc.DateChangedEvent{SessionID: "s", Date: "2024-03-14"}))

	assert.InDelta(t, 1, testutil.ToFloat64(m.Events.WithLabelValues(conversionsvc.EventRatesLoaded)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Events.WithLabelValues(conversionsvc.EventRatesFailed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Events.WithLabelValues(conversionsvc.EventDateChanged)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LoadFailure.WithLabelValues("CAD")), 0)

	assert.Error(t, loaded(ctx, otherEvent{}))
	assert.Error(t, failed(ctx, otherEvent{}))
	assert.Error(t, changed(ctx, otherEvent{}))
}
