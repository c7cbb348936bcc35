package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callinsight-server/pkg/errors"
	"callinsight-server/pkg/metrics"
	"callinsight-server/pkg/store"
)

type failingStore struct {
	*store.MemoryStore
	getErr error
}

func (s *failingStore) GetTranscript(ctx context.Context, id string) (*store.Transcript, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.GetTranscript(ctx, id)
}

type panicAttributor struct{}

func (panicAttributor) Attribute(string) []SpeakerTurn { panic("attribution blew up") }

const sampleCallText = "Agent: Thanks for calling, how can I help you today? " +
	"Customer: I wanted to ask about pricing for the enterprise plan. " +
	"Agent: Happy to help, the pricing depends on seat count. " +
	"Customer: That sounds great, the demo last week was excellent."

func TestAnalyzeTranscriptWritesBack(t *testing.T) {
	st := store.NewMemoryStore()
	st.AddTranscript(store.Transcript{ID: "t-1", CallID: "call-1", Text: sampleCallText})

	a := NewAnalyzer(newTestLogger(), st)
	result, err := a.AnalyzeTranscript(context.Background(), "t-1")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.Turns)
	assert.GreaterOrEqual(t, result.SentimentScore, 0.1)
	assert.LessOrEqual(t, result.SentimentScore, 0.9)

	record, err := st.GetTranscript(context.Background(), "t-1")
	require.NoError(t, err)
	require.True(t, record.HasAnalysis(), "Analysis fields must be written back")
	assert.GreaterOrEqual(t, *record.CallScore, 10)
	assert.LessOrEqual(t, *record.CallScore, 90)
	assert.NotEmpty(t, record.Keywords)

	var turns []SpeakerTurn
	require.NoError(t, json.Unmarshal(record.Segments, &turns), "Stored segments must round-trip")
	assert.Len(t, turns, len(result.Turns))

	callMetrics, ok := st.CallMetrics("call-1")
	require.True(t, ok, "The call record must receive denormalized metrics")
	assert.Equal(t, result.CallScore(), callMetrics.SentimentAgent)
	assert.InDelta(t, callMetrics.SentimentAgent, callMetrics.SentimentCustomer, 5, "Customer sentiment jitters at most 5 points")
	assert.GreaterOrEqual(t, callMetrics.SentimentCustomer, 0)
	assert.LessOrEqual(t, callMetrics.SentimentCustomer, 100)
	assert.Equal(t, result.SpeakerRatio.Agent, callMetrics.TalkRatioAgent)
	assert.Equal(t, result.SpeakerRatio.Customer, callMetrics.TalkRatioCustomer)
}

func TestAnalyzeTranscriptConcurrent(t *testing.T) {
	st := store.NewMemoryStore()
	// No speaker labels, so segmentation takes the randomized alternation
	// path; persistence adds randomized jitter. One shared Analyzer must
	// survive simultaneous requests for the same transcript.
	st.AddTranscript(store.Transcript{
		ID:     "t-1",
		CallID: "call-1",
		Text: "Thanks for joining today. Could you walk me through the issue? " +
			"The export job keeps failing. We upgraded last week. That helps, let me check the logs.",
	})

	a := NewAnalyzer(newTestLogger(), st)

	const workers = 8
	const iterations = 25
	errCh := make(chan error, workers*iterations)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				result, err := a.AnalyzeTranscript(context.Background(), "t-1")
				if err != nil {
					errCh <- err
					continue
				}
				if result == nil {
					errCh <- fmt.Errorf("nil result for existing transcript")
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent analysis failed: %v", err)
	}

	callMetrics, ok := st.CallMetrics("call-1")
	require.True(t, ok)
	assert.GreaterOrEqual(t, callMetrics.SentimentCustomer, 0)
	assert.LessOrEqual(t, callMetrics.SentimentCustomer, 100)
}

func TestObservationRespectsMetricsToggle(t *testing.T) {
	metrics.Init(newTestLogger())
	defer metrics.EnableMetrics(true)

	counter := metrics.AnalysesTotal.WithLabelValues("ok")

	metrics.EnableMetrics(false)
	before := testutil.ToFloat64(counter)
	observeAnalysis("ok", 0.1)
	observePersistFailure("transcripts")
	assert.Equal(t, before, testutil.ToFloat64(counter), "Disabled metrics must not record observations")

	metrics.EnableMetrics(true)
	observeAnalysis("ok", 0.1)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestAnalyzeTranscriptMissing(t *testing.T) {
	a := NewAnalyzer(newTestLogger(), store.NewMemoryStore())

	result, err := a.AnalyzeTranscript(context.Background(), "does-not-exist")

	assert.NoError(t, err, "A missing transcript is not an error")
	assert.Nil(t, result)
}

func TestAnalyzeTranscriptFetchError(t *testing.T) {
	st := &failingStore{MemoryStore: store.NewMemoryStore(), getErr: fmt.Errorf("connection refused")}
	a := NewAnalyzer(newTestLogger(), st)

	result, err := a.AnalyzeTranscript(context.Background(), "t-1")

	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestAnalyzeTranscriptPersistFailureKeepsResult(t *testing.T) {
	st := store.NewMemoryStore()
	st.AddTranscript(store.Transcript{ID: "t-1", CallID: "call-1", Text: sampleCallText})
	st.SaveAnalysisErr = fmt.Errorf("disk full")

	a := NewAnalyzer(newTestLogger(), st)
	result, err := a.AnalyzeTranscript(context.Background(), "t-1")

	assert.NoError(t, err, "Persistence failures never invalidate the analysis")
	require.NotNil(t, result)

	record, _ := st.GetTranscript(context.Background(), "t-1")
	outcome := a.persistResult(context.Background(), record, result)
	assert.False(t, outcome.TranscriptSaved)
	assert.ErrorIs(t, outcome.TranscriptErr, errors.ErrStorageFailure)
	assert.True(t, outcome.CallUpdated, "The call write is independent of the transcript write")
	assert.NoError(t, outcome.CallErr)
}

func TestAnalyzeTranscriptPanicRecovery(t *testing.T) {
	st := store.NewMemoryStore()
	st.AddTranscript(store.Transcript{ID: "t-1", CallID: "call-1", Text: "hello there"})

	a := NewAnalyzer(newTestLogger(), st)
	a.SetAttributor(panicAttributor{})

	result, err := a.AnalyzeTranscript(context.Background(), "t-1")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, errors.ErrAnalysisFailed)
}

func TestAnalyzeUsesStoredSegments(t *testing.T) {
	st := store.NewMemoryStore()
	segments := `[
		{"speaker":"agent","text":"Hello, how can I help?","start":0,"end":5},
		{"speaker":"customer","text":"The renewal quote looks too expensive.","start":5,"end":12}
	]`
	record := st.AddTranscript(store.Transcript{
		ID:       "t-1",
		CallID:   "call-1",
		Text:     "Hello, how can I help? The renewal quote looks too expensive.",
		Segments: json.RawMessage(segments),
	})

	a := NewAnalyzer(newTestLogger(), st)
	result := a.Analyze(record)

	require.Len(t, result.Turns, 2, "Upstream segments map one-to-one")
	assert.Equal(t, SpeakerAgent, result.Turns[0].Speaker)
	assert.Equal(t, SpeakerCustomer, result.Turns[1].Speaker)
	assert.Equal(t, 0.0, *result.Turns[0].Start)
	assert.Equal(t, 12.0, *result.Turns[1].End)
	assert.Equal(t, 12.0, result.CallDuration, "Duration follows the segment span")
}

func TestAnalyzeMalformedSegmentsFallsBack(t *testing.T) {
	st := store.NewMemoryStore()
	record := st.AddTranscript(store.Transcript{
		ID:       "t-1",
		CallID:   "call-1",
		Text:     "Agent: Hello there. Customer: Hi, I need help.",
		Segments: json.RawMessage(`{"not":"an array"`),
	})

	a := NewAnalyzer(newTestLogger(), st)
	result := a.Analyze(record)

	require.Len(t, result.Turns, 2, "Unreadable segments fall back to text segmentation")
	assert.Equal(t, SpeakerAgent, result.Turns[0].Speaker)
	assert.Equal(t, SpeakerCustomer, result.Turns[1].Speaker)
}

func TestAnalyzeEmptyText(t *testing.T) {
	st := store.NewMemoryStore()
	record := st.AddTranscript(store.Transcript{ID: "t-1", CallID: "call-1", Text: ""})

	a := NewAnalyzer(newTestLogger(), st)
	result := a.Analyze(record)

	require.NotNil(t, result)
	assert.Empty(t, result.Turns)
	assert.Equal(t, 0.5, result.SentimentScore)
	assert.Equal(t, SentimentNeutral, result.Sentiment)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, SpeakerRatio{Agent: 50, Customer: 50, Silence: 0, Overlap: 0}, result.SpeakerRatio)
	assert.Equal(t, 0.0, result.CallDuration)
	assert.Empty(t, result.Topics)
}

func TestSetPaceRebuildsSegmenter(t *testing.T) {
	st := store.NewMemoryStore()
	a := NewAnalyzer(newTestLogger(), st)

	a.SetPace(fixedPace{duration: 2, gap: 1})

	turns := a.attributor.Attribute("Agent: One two. Customer: Three four.")
	require.Len(t, turns, 2)
	assert.Equal(t, 0.0, *turns[0].Start)
	assert.Equal(t, 2.0, *turns[0].End)
	assert.Equal(t, 3.0, *turns[1].Start)
}

func TestResultHelpers(t *testing.T) {
	r := &Result{
		SentimentScore: 0.38,
		KeywordFrequency: []KeywordCount{
			{Word: "pricing", Count: 4},
			{Word: "renewal", Count: 2},
		},
	}

	assert.Equal(t, 38, r.CallScore())
	assert.Equal(t, []string{"pricing", "renewal"}, r.TopKeywords(10))
	assert.Equal(t, []string{"pricing"}, r.TopKeywords(1))
	assert.Empty(t, (&Result{}).TopKeywords(3))
}
