package store

import (
	"encoding/json"
	"time"

	"callinsight-server/pkg/errors"
)

// Transcript is the persisted transcript record the pipeline reads from and
// writes back to. Analysis fields are nil until a first analysis runs.
type Transcript struct {
	ID         string          `db:"id" json:"id"`
	CallID     string          `db:"call_id" json:"call_id"`
	Text       string          `db:"text" json:"text"`
	Duration   *float64        `db:"duration" json:"duration,omitempty"` // seconds
	Segments   json.RawMessage `db:"transcript_segments" json:"transcript_segments,omitempty"`
	CallScore  *int            `db:"call_score" json:"call_score,omitempty"`
	Sentiment  *string         `db:"sentiment" json:"sentiment,omitempty"`
	Keywords   []string        `db:"keywords" json:"keywords,omitempty"`
	KeyPhrases []string        `db:"key_phrases" json:"key_phrases,omitempty"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// StoredSegment is one pre-existing timed segment on a transcript record,
// produced by an upstream transcription step.
type StoredSegment struct {
	Speaker string   `json:"speaker"`
	Text    string   `json:"text"`
	Start   *float64 `json:"start,omitempty"`
	End     *float64 `json:"end,omitempty"`
}

// ParseSegments decodes the stored segments column. Callers treat a decode
// failure as "no segments" and fall back to text-based segmentation.
func (t *Transcript) ParseSegments() ([]StoredSegment, error) {
	if len(t.Segments) == 0 {
		return nil, nil
	}
	var segments []StoredSegment
	if err := json.Unmarshal(t.Segments, &segments); err != nil {
		return nil, errors.NewInvalidSegments(err.Error(), map[string]interface{}{
			"transcript_id": t.ID,
		})
	}
	return segments, nil
}

// HasAnalysis reports whether the record carries a prior analysis result.
func (t *Transcript) HasAnalysis() bool {
	return t.CallScore != nil && t.Sentiment != nil
}

// AnalysisUpdate is the write-back payload for a transcript record after an
// analysis run.
type AnalysisUpdate struct {
	CallScore    int             `json:"call_score"`
	Sentiment    string          `json:"sentiment"`
	Keywords     []string        `json:"keywords"`
	KeyPhrases   []string        `json:"key_phrases"`
	SegmentsJSON json.RawMessage `json:"transcript_segments"`
	MetadataJSON json.RawMessage `json:"metadata"`
}

// CallMetrics is the secondary denormalized write to the associated call
// record. Values are 0-100 integers.
type CallMetrics struct {
	SentimentAgent    int `json:"sentiment_agent"`
	SentimentCustomer int `json:"sentiment_customer"`
	TalkRatioAgent    int `json:"talk_ratio_agent"`
	TalkRatioCustomer int `json:"talk_ratio_customer"`
}
