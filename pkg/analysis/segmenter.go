package analysis

import (
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Pace estimates speech timing from word counts. Implementations may be
// random; tests substitute a deterministic stub.
type Pace interface {
	// TurnDuration returns the estimated seconds needed to speak wordCount words.
	TurnDuration(wordCount int) float64
	// TurnGap returns the pause in seconds between two consecutive turns.
	TurnGap() float64
}

// speechPace estimates timing at a fixed reading speed with a random
// inter-turn pause.
type speechPace struct {
	secondsPerWord float64
	minGap         float64
	maxGap         float64
}

// NewSpeechPace creates a Pace that assumes the given reading speed and a
// uniformly random pause between minGap and maxGap seconds.
func NewSpeechPace(wordsPerMinute int, minGap, maxGap float64) Pace {
	if wordsPerMinute <= 0 {
		wordsPerMinute = 150
	}
	if maxGap < minGap {
		maxGap = minGap
	}
	return &speechPace{
		secondsPerWord: 60.0 / float64(wordsPerMinute),
		minGap:         minGap,
		maxGap:         maxGap,
	}
}

func (p *speechPace) TurnDuration(wordCount int) float64 {
	if wordCount < 1 {
		wordCount = 1
	}
	return float64(wordCount) * p.secondsPerWord
}

// TurnGap uses the locked top-level rand source: one Pace is shared by
// every request going through an Analyzer.
func (p *speechPace) TurnGap() float64 {
	return p.minGap + rand.Float64()*(p.maxGap-p.minGap)
}

// SpeakerAttributor assigns a speaker role to each utterance of a raw
// transcript. The heuristic Segmenter is the default implementation; a real
// diarization backend can be substituted without touching the rest of the
// pipeline.
type SpeakerAttributor interface {
	Attribute(text string) []SpeakerTurn
}

// Segmenter converts raw transcript text or upstream timed segments into an
// ordered sequence of speaker turns. Attribution is heuristic: there is no
// ground truth for speaker identity without real diarization input, so the
// goal is plausibility rather than correctness.
type Segmenter struct {
	logger *logrus.Entry
	pace   Pace

	labelPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
}

// NewSegmenter creates a segmenter using the given pace estimator.
func NewSegmenter(logger *logrus.Logger, pace Pace) *Segmenter {
	if pace == nil {
		pace = NewSpeechPace(150, 0.5, 1.5)
	}
	return &Segmenter{
		logger: logger.WithField("component", "segmenter"),
		pace:   pace,

		// One or two words followed by a colon, e.g. "Agent:", "Speaker A:".
		labelPattern:    regexp.MustCompile(`([A-Za-z][A-Za-z]*(?: [A-Za-z][A-Za-z]*)?):\s`),
		sentencePattern: regexp.MustCompile(`[^.!?]+[.!?]*`),
	}
}

// MapSegments maps upstream transcription segments directly to speaker turns.
// Segments without a usable speaker label alternate agent/customer by index.
func (s *Segmenter) MapSegments(segments []TimedSegment) []SpeakerTurn {
	base := time.Now()
	turns := make([]SpeakerTurn, 0, len(segments))
	for i, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		turn := SpeakerTurn{
			Speaker:   speakerForLabel(seg.Speaker, i),
			Text:      text,
			Timestamp: base,
			Start:     seg.Start,
			End:       seg.End,
		}
		if seg.Start != nil {
			turn.Timestamp = base.Add(time.Duration(*seg.Start * float64(time.Second)))
		}
		turns = append(turns, turn)
	}

	// Upstream ordering is not guaranteed; turns must come out in
	// non-decreasing start order. Untimed turns keep their input position.
	sort.SliceStable(turns, func(i, j int) bool {
		if turns[i].Start == nil || turns[j].Start == nil {
			return false
		}
		return *turns[i].Start < *turns[j].Start
	})
	return turns
}

// Attribute implements SpeakerAttributor. It prefers explicit speaker-label
// markers in the text and falls back to sentence-level alternation.
func (s *Segmenter) Attribute(text string) []SpeakerTurn {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if turns := s.segmentLabeled(text); len(turns) >= 2 {
		s.logger.WithField("turns", len(turns)).Debug("Segmented transcript from speaker labels")
		return turns
	}

	turns := s.segmentAlternating(text)
	s.logger.WithField("turns", len(turns)).Debug("Segmented transcript by sentence alternation")
	return turns
}

// segmentLabeled splits the text on explicit "Label:" markers. It returns nil
// unless at least two labeled blocks are found.
func (s *Segmenter) segmentLabeled(text string) []SpeakerTurn {
	matches := s.labelPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) < 2 {
		return nil
	}

	turns := make([]SpeakerTurn, 0, len(matches))
	for i, m := range matches {
		label := text[m[2]:m[3]]
		blockEnd := len(text)
		if i+1 < len(matches) {
			blockEnd = matches[i+1][0]
		}
		block := strings.TrimSpace(text[m[1]:blockEnd])
		if block == "" {
			continue
		}
		turns = append(turns, SpeakerTurn{
			Speaker: speakerForLabel(label, len(turns)),
			Text:    block,
		})
	}
	if len(turns) < 2 {
		return nil
	}

	s.synthesizeTiming(turns)
	return turns
}

// segmentAlternating splits the text into sentences and alternates the
// speaker heuristically: a flip happens after a question is answered, or when
// a pseudo-periodic counter (2-4 sentences) rolls over. Consecutive
// same-speaker sentences merge into one turn.
func (s *Segmenter) segmentAlternating(text string) []SpeakerTurn {
	sentences := s.splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	current := SpeakerAgent
	period := 2 + rand.Intn(3)
	count := 0

	var turns []SpeakerTurn
	for i, sentence := range sentences {
		if i > 0 {
			flip := false
			if strings.HasSuffix(sentences[i-1], "?") && !strings.HasSuffix(sentence, "?") {
				flip = true
			}
			count++
			if count >= period {
				flip = true
				count = 0
				period = 2 + rand.Intn(3)
			}
			if flip {
				if current == SpeakerAgent {
					current = SpeakerCustomer
				} else {
					current = SpeakerAgent
				}
			}
		}

		if n := len(turns); n > 0 && turns[n-1].Speaker == current {
			turns[n-1].Text += " " + sentence
			continue
		}
		turns = append(turns, SpeakerTurn{Speaker: current, Text: sentence})
	}

	s.synthesizeTiming(turns)
	return turns
}

// synthesizeTiming assigns estimated start/end offsets and timestamps by
// accumulating reading-speed durations and inter-turn pauses.
func (s *Segmenter) synthesizeTiming(turns []SpeakerTurn) {
	base := time.Now()
	cursor := 0.0
	for i := range turns {
		start := cursor
		end := start + s.pace.TurnDuration(len(strings.Fields(turns[i].Text)))
		turns[i].Start = &start
		turns[i].End = &end
		turns[i].Timestamp = base.Add(time.Duration(start * float64(time.Second)))
		cursor = end + s.pace.TurnGap()
	}
}

func (s *Segmenter) splitSentences(text string) []string {
	raw := s.sentencePattern.FindAllString(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, sentence := range raw {
		sentence = strings.TrimSpace(sentence)
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}

// speakerForLabel derives a speaker role from a label keyword, falling back
// to even/odd index alternation.
func speakerForLabel(label string, index int) Speaker {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "agent"), strings.Contains(l, "rep"), l == "speaker a":
		return SpeakerAgent
	case strings.Contains(l, "customer"), strings.Contains(l, "client"), l == "speaker b":
		return SpeakerCustomer
	}
	if index%2 == 0 {
		return SpeakerAgent
	}
	return SpeakerCustomer
}
