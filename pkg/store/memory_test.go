package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	added := st.AddTranscript(Transcript{Text: "hello world"})
	require.NotEmpty(t, added.ID, "IDs are assigned when absent")
	require.NotEmpty(t, added.CallID)

	got, err := st.GetTranscript(ctx, added.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello world", got.Text)

	// The returned record is a copy; mutating it must not affect the store.
	got.Text = "mutated"
	again, err := st.GetTranscript(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", again.Text)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	st := NewMemoryStore()

	got, err := st.GetTranscript(context.Background(), "nope")
	assert.NoError(t, err, "A missing transcript is (nil, nil), not an error")
	assert.Nil(t, got)
}

func TestMemoryStoreSaveAnalysis(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	added := st.AddTranscript(Transcript{Text: "hello"})

	update := AnalysisUpdate{
		CallScore:    72,
		Sentiment:    "positive",
		Keywords:     []string{"pricing"},
		KeyPhrases:   []string{"Pricing discussion"},
		SegmentsJSON: json.RawMessage(`[]`),
		MetadataJSON: json.RawMessage(`{}`),
	}
	require.NoError(t, st.SaveAnalysis(ctx, added.ID, update))

	got, err := st.GetTranscript(ctx, added.ID)
	require.NoError(t, err)
	require.True(t, got.HasAnalysis())
	assert.Equal(t, 72, *got.CallScore)
	assert.Equal(t, "positive", *got.Sentiment)
	assert.Equal(t, []string{"pricing"}, got.Keywords)
}

func TestMemoryStoreCallMetrics(t *testing.T) {
	st := NewMemoryStore()

	metrics := CallMetrics{SentimentAgent: 60, SentimentCustomer: 58, TalkRatioAgent: 55, TalkRatioCustomer: 45}
	require.NoError(t, st.UpdateCallMetrics(context.Background(), "call-1", metrics))

	got, ok := st.CallMetrics("call-1")
	require.True(t, ok)
	assert.Equal(t, metrics, got)

	_, ok = st.CallMetrics("call-2")
	assert.False(t, ok)
}

func TestMemoryStoreInjectedErrors(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	added := st.AddTranscript(Transcript{Text: "hello"})

	st.SaveAnalysisErr = fmt.Errorf("disk full")
	st.UpdateCallErr = fmt.Errorf("lock timeout")

	assert.Error(t, st.SaveAnalysis(ctx, added.ID, AnalysisUpdate{}))
	assert.Error(t, st.UpdateCallMetrics(ctx, "call-1", CallMetrics{}))
}
