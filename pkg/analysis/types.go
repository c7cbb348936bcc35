package analysis

import "time"

// Speaker identifies which side of the call produced an utterance.
type Speaker string

const (
	SpeakerAgent    Speaker = "agent"
	SpeakerCustomer Speaker = "customer"
)

// SentimentLabel is a per-turn or aggregate sentiment classification.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// SpeakerTurn is one contiguous utterance attributed to a single speaker role.
// Start and End are offsets in seconds into the call; they are nil when no
// timing information exists and none could be synthesized.
type SpeakerTurn struct {
	Speaker   Speaker        `json:"speaker"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
	Start     *float64       `json:"start,omitempty"`
	End       *float64       `json:"end,omitempty"`
	Sentiment SentimentLabel `json:"sentiment,omitempty"`
}

// TimedSegment is a pre-existing segment from an upstream transcription step.
type TimedSegment struct {
	Speaker string   `json:"speaker"`
	Text    string   `json:"text"`
	Start   *float64 `json:"start,omitempty"`
	End     *float64 `json:"end,omitempty"`
}

// KeywordCount pairs a representative surface-form keyword with its
// occurrence count across the transcript.
type KeywordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// SpeakerRatio is the percentage breakdown of call time. The four values
// always sum to exactly 100.
type SpeakerRatio struct {
	Agent    int `json:"agent"`
	Customer int `json:"customer"`
	Silence  int `json:"silence"`
	Overlap  int `json:"overlap"`
}

// SentimentSummary is the aggregate sentiment of a whole call.
// Score is always within [0.1, 0.9]; Confidence grows with turn count and
// saturates at 1.0 once ten or more turns exist.
type SentimentSummary struct {
	Score      float64        `json:"score"`
	Label      SentimentLabel `json:"label"`
	Confidence float64        `json:"confidence"`
}

// Result is the aggregate output of a transcript analysis run.
type Result struct {
	SentimentScore   float64        `json:"sentiment_score"`
	Sentiment        SentimentLabel `json:"sentiment"`
	Confidence       float64        `json:"confidence"`
	KeyPhrases       []string       `json:"key_phrases"`
	KeywordFrequency []KeywordCount `json:"keyword_frequency"`
	CallDuration     float64        `json:"call_duration"`
	SpeakerRatio     SpeakerRatio   `json:"speaker_ratio"`
	Topics           []string       `json:"topics"`
	Turns            []SpeakerTurn  `json:"turns"`
	AnalyzedAt       time.Time      `json:"analyzed_at"`
}

// CallScore converts the aggregate sentiment score to a 0-100 integer scale.
func (r *Result) CallScore() int {
	return int(r.SentimentScore*100 + 0.5)
}

// TopKeywords returns up to limit keyword surface forms, highest count first.
func (r *Result) TopKeywords(limit int) []string {
	if limit > len(r.KeywordFrequency) {
		limit = len(r.KeywordFrequency)
	}
	words := make([]string, 0, limit)
	for _, kc := range r.KeywordFrequency[:limit] {
		words = append(words, kc.Word)
	}
	return words
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
