package analysis

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const maxTopics = 8

// domainTopics maps domain vocabulary patterns to topic labels for sales and
// support calls.
var domainTopics = []struct {
	pattern *regexp.Regexp
	topic   string
}{
	{regexp.MustCompile(`\b(price|pricing|cost|costs|budget|discount|quote)\b`), "pricing discussion"},
	{regexp.MustCompile(`\b(demo|demonstration|walkthrough|show you)\b`), "product demonstration"},
	{regexp.MustCompile(`\b(feature|features|functionality|capability|capabilities)\b`), "feature requirements"},
	{regexp.MustCompile(`\b(implement|implementation|deploy|deployment|integration|integrate)\b`), "implementation planning"},
	{regexp.MustCompile(`\b(support|assistance|training|helpdesk)\b`), "customer support"},
	{regexp.MustCompile(`\b(contract|agreement|terms|renewal|signing)\b`), "contract terms"},
	{regexp.MustCompile(`\b(roi|return on investment|savings|payback)\b`), "roi analysis"},
	{regexp.MustCompile(`\b(onboarding|onboard|setup|getting started)\b`), "onboarding process"},
	{regexp.MustCompile(`\b(security|compliance|privacy|encryption|gdpr)\b`), "security concerns"},
	{regexp.MustCompile(`\b(troubleshoot|troubleshooting|bug|error|not working)\b`), "troubleshooting"},
}

// Summarizer derives time-based speaker ratios, the call duration, and a
// topic list from the other pipeline outputs.
type Summarizer struct {
	logger *logrus.Entry
}

// NewSummarizer creates a summarizer.
func NewSummarizer(logger *logrus.Logger) *Summarizer {
	return &Summarizer{logger: logger.WithField("component", "summarizer")}
}

// sweepEvent is one interval boundary in the speaker timeline.
type sweepEvent struct {
	at      float64
	speaker Speaker
	start   bool
}

// SpeakerRatio computes the agent/customer/silence/overlap percentage split
// of call time via a chronological sweep over turn intervals. Turns without
// both start and end are ignored; with no usable interval, or a degenerate
// timeline, the 50/50/0/0 default applies.
func (s *Summarizer) SpeakerRatio(turns []SpeakerTurn) SpeakerRatio {
	defaultRatio := SpeakerRatio{Agent: 50, Customer: 50, Silence: 0, Overlap: 0}

	events := make([]sweepEvent, 0, len(turns)*2)
	for _, turn := range turns {
		if turn.Start == nil || turn.End == nil || *turn.End <= *turn.Start {
			continue
		}
		events = append(events,
			sweepEvent{at: *turn.Start, speaker: turn.Speaker, start: true},
			sweepEvent{at: *turn.End, speaker: turn.Speaker, start: false},
		)
	}
	if len(events) == 0 {
		return defaultRatio
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].at < events[j].at })

	var agentDur, customerDur, overlapDur, silenceDur float64
	var agentSpeaking, customerSpeaking int
	last := events[0].at

	for _, ev := range events {
		if delta := ev.at - last; delta > 0 {
			switch {
			case agentSpeaking > 0 && customerSpeaking > 0:
				overlapDur += delta
			case agentSpeaking > 0:
				agentDur += delta
			case customerSpeaking > 0:
				customerDur += delta
			default:
				silenceDur += delta
			}
			last = ev.at
		}

		step := 1
		if !ev.start {
			step = -1
		}
		if ev.speaker == SpeakerAgent {
			agentSpeaking += step
		} else {
			customerSpeaking += step
		}
	}

	total := agentDur + customerDur + overlapDur + silenceDur
	if total <= 0 || agentDur+customerDur+overlapDur <= 0 {
		return defaultRatio
	}

	ratio := SpeakerRatio{
		Agent:    roundPercent(agentDur / total),
		Customer: roundPercent(customerDur / total),
		Silence:  roundPercent(silenceDur / total),
		Overlap:  roundPercent(overlapDur / total),
	}
	return normalizeRatio(ratio)
}

// CallDuration derives the call length in seconds, preferring supplied
// metadata over the turn span.
func (s *Summarizer) CallDuration(turns []SpeakerTurn, storedDuration *float64) float64 {
	if storedDuration != nil && *storedDuration > 0 {
		return *storedDuration
	}

	var first, last float64
	seen := false
	for _, turn := range turns {
		if turn.Start == nil || turn.End == nil {
			continue
		}
		if !seen || *turn.Start < first {
			first = *turn.Start
		}
		if !seen || *turn.End > last {
			last = *turn.End
		}
		seen = true
	}
	if !seen || last <= first {
		return 0
	}
	return last - first
}

// Topics derives up to 8 topics: key phrases first, then top keywords not
// already covered, then domain pattern matches against the full text. Where
// two candidates overlap by substring containment, the longer one survives.
func (s *Summarizer) Topics(keyPhrases []string, keywords []KeywordCount, text string) []string {
	var topics []string

	for _, phrase := range keyPhrases {
		topics = addTopic(topics, strings.ToLower(phrase))
	}

	added := 0
	for _, kc := range keywords {
		if added >= 10 {
			break
		}
		word := strings.ToLower(kc.Word)
		covered := false
		for _, topic := range topics {
			if strings.Contains(topic, word) {
				covered = true
				break
			}
		}
		if !covered {
			topics = addTopic(topics, word)
		}
		added++
	}

	lowerText := strings.ToLower(text)
	for _, dt := range domainTopics {
		if dt.pattern.MatchString(lowerText) {
			topics = addTopic(topics, dt.topic)
		}
	}

	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	for i := range topics {
		topics[i] = capitalize(topics[i])
	}
	return topics
}

// addTopic inserts candidate keeping the list free of substring duplicates:
// a candidate contained in an existing topic is dropped, and an existing
// topic contained in the candidate is replaced by it.
func addTopic(topics []string, candidate string) []string {
	if candidate == "" {
		return topics
	}
	for _, existing := range topics {
		if strings.Contains(existing, candidate) {
			return topics
		}
	}
	kept := topics[:0]
	for _, existing := range topics {
		if !strings.Contains(candidate, existing) {
			kept = append(kept, existing)
		}
	}
	return append(kept, candidate)
}

// roundPercent converts a fraction to a rounded integer percentage.
func roundPercent(fraction float64) int {
	return int(math.Round(fraction * 100))
}

// normalizeRatio rescales the four rounded percentages so they sum to exactly
// 100; any residual after rescaling lands on the largest component.
func normalizeRatio(r SpeakerRatio) SpeakerRatio {
	sum := r.Agent + r.Customer + r.Silence + r.Overlap
	if sum == 100 {
		return r
	}
	if sum <= 0 {
		return SpeakerRatio{Agent: 50, Customer: 50, Silence: 0, Overlap: 0}
	}

	factor := 100.0 / float64(sum)
	parts := []int{
		int(math.Round(float64(r.Agent) * factor)),
		int(math.Round(float64(r.Customer) * factor)),
		int(math.Round(float64(r.Silence) * factor)),
		int(math.Round(float64(r.Overlap) * factor)),
	}

	residual := 100
	largest := 0
	for i, p := range parts {
		residual -= p
		if p > parts[largest] {
			largest = i
		}
	}
	parts[largest] += residual

	return SpeakerRatio{Agent: parts[0], Customer: parts[1], Silence: parts[2], Overlap: parts[3]}
}
