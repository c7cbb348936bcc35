package analysis

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Classifier assigns a sentiment label to a piece of text. It is a
// collaborator capability: the lexicon classifier below is the default, but
// an external model can be substituted.
type Classifier interface {
	Classify(text string) SentimentLabel
}

// LexiconClassifier labels text by scoring it against positive/negative word
// lexicons, with negators flipping and intensifiers amplifying nearby
// sentiment words.
type LexiconClassifier struct {
	positiveWords map[string]float64
	negativeWords map[string]float64
	intensifiers  map[string]float64
	negators      map[string]bool
}

// Per-turn classification thresholds on the averaged lexicon score. These are
// deliberately distinct from the aggregate-score thresholds below.
const (
	turnPositiveThreshold = 0.2
	turnNegativeThreshold = -0.2
)

// NewLexiconClassifier creates a classifier with the built-in English lexicons.
func NewLexiconClassifier() *LexiconClassifier {
	return &LexiconClassifier{
		positiveWords: map[string]float64{
			"good": 0.7, "great": 0.8, "excellent": 0.9, "amazing": 0.9, "wonderful": 0.8,
			"fantastic": 0.9, "awesome": 0.8, "perfect": 0.9, "love": 0.8, "like": 0.6,
			"enjoy": 0.7, "happy": 0.8, "pleased": 0.7, "satisfied": 0.7, "delighted": 0.8,
			"thrilled": 0.9, "excited": 0.8, "interested": 0.6, "helpful": 0.7, "thanks": 0.6,
			"thank": 0.6, "yes": 0.5, "success": 0.8, "works": 0.6, "solved": 0.8,
			"resolved": 0.8, "easy": 0.6, "impressive": 0.8, "valuable": 0.7,
		},
		negativeWords: map[string]float64{
			"bad": -0.7, "terrible": -0.8, "awful": -0.9, "horrible": -0.9, "hate": -0.8,
			"dislike": -0.6, "angry": -0.8, "mad": -0.7, "furious": -0.9, "sad": -0.7,
			"disappointed": -0.7, "upset": -0.7, "frustrated": -0.7, "confused": -0.5,
			"failure": -0.8, "wrong": -0.6, "problem": -0.6, "issue": -0.5, "broken": -0.7,
			"cancel": -0.6, "expensive": -0.5, "slow": -0.5, "difficult": -0.5,
			"worried": -0.6, "concerned": -0.5, "unacceptable": -0.9,
		},
		intensifiers: map[string]float64{
			"very": 1.3, "extremely": 1.5, "really": 1.2, "quite": 1.1, "rather": 1.1,
			"absolutely": 1.4, "completely": 1.4, "totally": 1.4, "incredibly": 1.5,
		},
		negators: map[string]bool{
			"not": true, "no": true, "never": true, "nothing": true, "neither": true,
			"nor": true, "without": true, "hardly": true, "barely": true,
		},
	}
}

// Classify implements Classifier.
func (c *LexiconClassifier) Classify(text string) SentimentLabel {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return SentimentNeutral
	}

	score := 0.0
	hits := 0
	modifier := 1.0

	for i, word := range words {
		word = strings.Trim(word, ".,!?;:'\"()")

		if c.negators[word] {
			modifier = -1.0
			continue
		}
		if boost, ok := c.intensifiers[word]; ok {
			modifier *= boost
			continue
		}

		if val, ok := c.positiveWords[word]; ok {
			score += val * modifier
			hits++
		} else if val, ok := c.negativeWords[word]; ok {
			score += val * modifier
			hits++
		}

		// Modifiers (negation, intensity) only reach nearby words.
		if i > 0 && i%3 == 0 {
			modifier = 1.0
		}
	}

	if hits == 0 {
		return SentimentNeutral
	}

	avg := score / float64(hits)
	switch {
	case avg > turnPositiveThreshold:
		return SentimentPositive
	case avg < turnNegativeThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Aggregate scoring constants. Section weights bias the overall score toward
// the end of the conversation; the clamp keeps scores away from 0 and 1 so
// calls remain comparable. Thresholds here are independent of the per-turn
// classifier thresholds.
const (
	scoreFloor   = 0.1
	scoreCeiling = 0.9

	firstSectionWeight  = 0.2
	middleSectionWeight = 0.3
	lastSectionWeight   = 0.5

	lastSectionNegativePenalty  = 0.2
	otherSectionNegativePenalty = 0.1

	customerBiasWeight = 0.1

	aggregatePositiveThreshold = 0.65
	aggregateNegativeThreshold = 0.35
)

// Scorer labels each turn via the classifier and computes a position-weighted
// aggregate sentiment score for the call.
type Scorer struct {
	logger     *logrus.Entry
	classifier Classifier
}

// NewScorer creates a sentiment scorer.
func NewScorer(logger *logrus.Logger, classifier Classifier) *Scorer {
	if classifier == nil {
		classifier = NewLexiconClassifier()
	}
	return &Scorer{
		logger:     logger.WithField("component", "sentiment_scorer"),
		classifier: classifier,
	}
}

// Score assigns a sentiment label to every turn in place and returns the
// aggregate summary. An empty turn sequence yields a neutral 0.5 score with
// zero confidence.
func (s *Scorer) Score(turns []SpeakerTurn) SentimentSummary {
	if len(turns) == 0 {
		return SentimentSummary{Score: 0.5, Label: SentimentNeutral, Confidence: 0}
	}

	for i := range turns {
		turns[i].Sentiment = s.classifier.Classify(turns[i].Text)
	}

	// Partition into thirds by index; remainder turns land in the last third.
	third := len(turns) / 3
	first := turns[:third]
	middle := turns[third : 2*third]
	last := turns[2*third:]

	firstScore := sectionScore(first, false)
	middleScore := sectionScore(middle, false)
	lastScore := sectionScore(last, true)

	weighted := (firstScore*firstSectionWeight + middleScore*middleSectionWeight + lastScore*lastSectionWeight) /
		(firstSectionWeight + middleSectionWeight + lastSectionWeight)

	weighted += customerBias(turns)

	summary := SentimentSummary{
		Score:      clamp(weighted, scoreFloor, scoreCeiling),
		Confidence: clamp(float64(len(turns))/10.0, 0, 1),
	}
	summary.Label = LabelForScore(summary.Score)

	s.logger.WithFields(logrus.Fields{
		"turns": len(turns),
		"score": summary.Score,
		"label": summary.Label,
	}).Debug("Computed aggregate sentiment")

	return summary
}

// sectionScore computes (positive + 0.5*neutral)/size minus a negative-ratio
// penalty, clamped to [0.1, 0.9]. Empty sections default to 0.5.
func sectionScore(section []SpeakerTurn, isLast bool) float64 {
	if len(section) == 0 {
		return 0.5
	}

	var positive, neutral, negative int
	for _, turn := range section {
		switch turn.Sentiment {
		case SentimentPositive:
			positive++
		case SentimentNegative:
			negative++
		default:
			neutral++
		}
	}

	size := float64(len(section))
	score := (float64(positive) + 0.5*float64(neutral)) / size

	penalty := otherSectionNegativePenalty
	if isLast {
		penalty = lastSectionNegativePenalty
	}
	score -= (float64(negative) / size) * penalty

	return clamp(score, scoreFloor, scoreCeiling)
}

// customerBias is the customer-satisfaction adjustment: the difference
// between the customer's positive and negative turn ratios, scaled down.
func customerBias(turns []SpeakerTurn) float64 {
	var total, positive, negative int
	for _, turn := range turns {
		if turn.Speaker != SpeakerCustomer {
			continue
		}
		total++
		switch turn.Sentiment {
		case SentimentPositive:
			positive++
		case SentimentNegative:
			negative++
		}
	}
	if total == 0 {
		return 0
	}
	return (float64(positive)/float64(total) - float64(negative)/float64(total)) * customerBiasWeight
}

// LabelForScore maps an aggregate score to the stored sentiment label.
func LabelForScore(score float64) SentimentLabel {
	switch {
	case score > aggregatePositiveThreshold:
		return SentimentPositive
	case score < aggregateNegativeThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
