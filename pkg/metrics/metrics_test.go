package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestInitIdempotent(t *testing.T) {
	Init(newTestLogger())
	first := GetRegistry()
	require.NotNil(t, first)
	require.NotNil(t, AnalysesTotal)
	require.NotNil(t, AnalysisDuration)
	require.NotNil(t, ActiveAnalyses)
	require.NotNil(t, PersistFailures)

	// Re-init must not re-register or replace the registry.
	Init(newTestLogger())
	assert.Same(t, first, GetRegistry())
}

func TestMetricsEndpoint(t *testing.T) {
	Init(newTestLogger())
	AnalysesTotal.WithLabelValues("ok").Inc()
	TurnsSegmented.Add(3)

	mux := http.NewServeMux()
	RegisterHandler(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "callinsight_analyses_total")
	assert.Contains(t, body, "callinsight_turns_segmented_total")
}

func TestEnableMetricsToggle(t *testing.T) {
	EnableMetrics(false)
	assert.False(t, IsMetricsEnabled())
	EnableMetrics(true)
	assert.True(t, IsMetricsEnabled())
}
