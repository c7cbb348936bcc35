package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callinsight-server/pkg/analysis"
	"callinsight-server/pkg/errors"
)

type stubAnalyzer struct {
	result *analysis.Result
	err    error
	lastID string
}

func (s *stubAnalyzer) AnalyzeTranscript(_ context.Context, transcriptID string) (*analysis.Result, error) {
	s.lastID = transcriptID
	return s.result, s.err
}

func newTestServer(analyzer TranscriptAnalyzer) *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewServer(logger, &Config{Port: 0, EnableMetrics: false}, analyzer)
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&stubAnalyzer{})

	rec := doRequest(s, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestAnalyzeEndpoint(t *testing.T) {
	stub := &stubAnalyzer{result: &analysis.Result{
		SentimentScore: 0.72,
		Sentiment:      analysis.SentimentPositive,
		Topics:         []string{"Pricing discussion"},
	}}
	s := newTestServer(stub)

	rec := doRequest(s, http.MethodPost, "/api/analyze/t-42")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t-42", stub.lastID)

	var result analysis.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 0.72, result.SentimentScore)
	assert.Equal(t, analysis.SentimentPositive, result.Sentiment)
}

func TestAnalyzeEndpointRejectsGet(t *testing.T) {
	s := newTestServer(&stubAnalyzer{})

	rec := doRequest(s, http.MethodGet, "/api/analyze/t-42")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyzeEndpointMissingID(t *testing.T) {
	s := newTestServer(&stubAnalyzer{})

	rec := doRequest(s, http.MethodPost, "/api/analyze/")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/analyze/t-1/extra")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpointNotFound(t *testing.T) {
	s := newTestServer(&stubAnalyzer{result: nil, err: nil})

	rec := doRequest(s, http.MethodPost, "/api/analyze/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeEndpointErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"transcript not found", errors.NewTranscriptNotFound("t-1"), http.StatusNotFound},
		{"storage failure", errors.NewStorageFailure(io.ErrUnexpectedEOF, "transcripts"), http.StatusServiceUnavailable},
		{"invalid input", errors.Wrap(errors.ErrInvalidInput, "bad request"), http.StatusBadRequest},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&stubAnalyzer{err: tc.err})

			rec := doRequest(s, http.MethodPost, "/api/analyze/t-1")
			assert.Equal(t, tc.want, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestErrorResponseIncludesCode(t *testing.T) {
	s := newTestServer(&stubAnalyzer{err: errors.NewTranscriptNotFound("t-1")})

	rec := doRequest(s, http.MethodPost, "/api/analyze/t-1")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "TRANSCRIPT_NOT_FOUND", body["code"])
}
