package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	m, ok := o.(prometheus.Metric)
	require.True(t, ok)
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	return out.GetHistogram().GetSampleCount()
}

func TestRecordOperation(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		outcome   string
		rounded   bool
		overflow  bool
	}{
		{"exact sum", "add", OutcomeFinite, false, false},
		{"rounded rescale", "rescale", OutcomeFinite, true, false},
		{"overflowing product", "mul", OutcomeInfinite, false, true},
		{"cancelled infinities", "sub", OutcomeInvalid, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := operationsTotal.WithLabelValues(tt.operation, tt.outcome)
			rounded := roundedResultsTotal.WithLabelValues(tt.operation)
			overflow := overflowResultsTotal.WithLabelValues(tt.operation)
			beforeOps := testutil.ToFloat64(ops)
			beforeRounded := testutil.ToFloat64(rounded)
			beforeOverflow := testutil.ToFloat64(overflow)
			beforeSamples := histogramCount(t, operationDuration.WithLabelValues(tt.operation))

			RecordOperation(tt.operation, tt.outcome, tt.rounded, tt.overflow, 0.000002)

			assert.Equal(t, beforeOps+1, testutil.ToFloat64(ops))
			assert.Equal(t, beforeSamples+1, histogramCount(t, operationDuration.WithLabelValues(tt.operation)))

			wantRounded, wantOverflow := beforeRounded, beforeOverflow
			if tt.rounded {
				wantRounded++
			}
			if tt.overflow {
				wantOverflow++
			}
			assert.Equal(t, wantRounded, testutil.ToFloat64(rounded))
			assert.Equal(t, wantOverflow, testutil.ToFloat64(overflow))
		})
	}
}

func TestTimelineMetrics(t *testing.T) {
	before := testutil.ToFloat64(timelineUpdatesTotal.WithLabelValues("position"))
	RecordTimelineUpdate("position")
	RecordTimelineUpdate("position")
	assert.Equal(t, before+2, testutil.ToFloat64(timelineUpdatesTotal.WithLabelValues("position")))

	SetActiveTimelines(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(timelinesActive))
	SetActiveTimelines(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(timelinesActive))

	beforeErr := testutil.ToFloat64(storeErrorsTotal.WithLabelValues("redis", "put"))
	IncrementStoreError("redis", "put")
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(storeErrorsTotal.WithLabelValues("redis", "put")))
}

func TestRTPMetrics(t *testing.T) {
	packets := testutil.ToFloat64(rtpPacketsTotal)
	wraps := testutil.ToFloat64(rtpWrapsTotal)
	reordered := testutil.ToFloat64(rtpReorderedTotal)

	RecordRTPPacket(false, false)
	RecordRTPPacket(true, false)
	RecordRTPPacket(false, true)

	assert.Equal(t, packets+3, testutil.ToFloat64(rtpPacketsTotal))
	assert.Equal(t, wraps+1, testutil.ToFloat64(rtpWrapsTotal))
	assert.Equal(t, reordered+1, testutil.ToFloat64(rtpReorderedTotal))

	reports := testutil.ToFloat64(senderReportsTotal)
	RecordSenderReport()
	assert.Equal(t, reports+1, testutil.ToFloat64(senderReportsTotal))
}

func TestHTTPMetrics(t *testing.T) {
	counter := httpRequestsTotal.WithLabelValues("GET", "/api/v1/timelines/{id}", "404")
	before := testutil.ToFloat64(counter)
	beforeSamples := histogramCount(t, httpRequestDuration.WithLabelValues("GET", "/api/v1/timelines/{id}"))

	RecordHTTPRequest("GET", "/api/v1/timelines/{id}", 404, 0.01)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, beforeSamples+1, histogramCount(t, httpRequestDuration.WithLabelValues("GET", "/api/v1/timelines/{id}")))

	limited := testutil.ToFloat64(rateLimitedTotal)
	IncrementRateLimited()
	assert.Equal(t, limited+1, testutil.ToFloat64(rateLimitedTotal))
}
