package store

import "context"

// TranscriptStore abstracts the external transcript and call record storage.
// GetTranscript returns (nil, nil) when no record exists; the two write
// methods are independent so callers can treat them as best-effort.
type TranscriptStore interface {
	GetTranscript(ctx context.Context, id string) (*Transcript, error)
	SaveAnalysis(ctx context.Context, id string, update AnalysisUpdate) error
	UpdateCallMetrics(ctx context.Context, callID string, metrics CallMetrics) error
}
