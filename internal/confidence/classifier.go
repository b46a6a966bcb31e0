// Package confidence turns a similarity score into a decision tier and the
// reply shown to the sender.
package confidence

import (
	"fmt"
	"math"
	"strings"

	"github.com/liteapi-travel/label-matcher-async/internal/reference"
)

// DefaultThreshold is the score from which a match is accepted outright.
const DefaultThreshold = 0.75

// ReviewFloor is the lowest score still accepted, flagged for review.
const ReviewFloor = 0.5

// Tier is the outcome of classifying a score.
type Tier int

const (
	NoReference Tier = iota
	Matched
	LowConfidence
	NoMatch
)

func (t Tier) String() string {
	switch t {
	case NoReference:
		return "no_reference"
	case Matched:
		return "matched"
	case LowConfidence:
		return "low_confidence"
	case NoMatch:
		return "no_match"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Accept reports whether results of this tier are kept for export.
func (t Tier) Accept() bool {
	return t == Matched || t == LowConfidence
}

// Indicators shown next to the confidence figure.
const (
	indicatorHigh   = "🟢"
	indicatorMedium = "🟡"
	indicatorLow    = "🔴"
)

// Evidence is everything a reply may quote.
type Evidence struct {
	Row        reference.Row
	Score      float64
	Normalized string
	Raw        string
	Caption    string
}

// Outcome is a classified result.
type Outcome struct {
	Tier    Tier
	Accept  bool
	Message string
}

// Classifier holds the acceptance threshold.
type Classifier struct {
	threshold float64
}

// New returns a classifier for threshold, which must lie in [0,1].
func New(threshold float64) (Classifier, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return Classifier{}, fmt.Errorf("threshold %v outside [0,1]", threshold)
	}
	return Classifier{threshold: threshold}, nil
}

// Threshold returns the acceptance threshold.
func (c Classifier) Threshold() float64 { return c.threshold }

// Classify maps a score to a tier. Both boundaries are inclusive of the
// higher tier.
func (c Classifier) Classify(score float64, referenceAvailable bool) Tier {
	switch {
	case score == 0 && !referenceAvailable:
		return NoReference
	case score >= c.threshold:
		return Matched
	case score >= ReviewFloor:
		return LowConfidence
	default:
		return NoMatch
	}
}

// Decide classifies ev and renders the reply.
func (c Classifier) Decide(ev Evidence, referenceAvailable bool) Outcome {
	tier := c.Classify(ev.Score, referenceAvailable)

	var b strings.Builder
	switch tier {
	case NoReference:
		fmt.Fprintf(&b, "📄 Read: %s\nNo reference loaded (0%% confidence)", ev.Normalized)
	case Matched:
		fmt.Fprintf(&b, "%s Match: %s\nConfidence: %s (high)", indicatorHigh, RenderRow(ev.Row), percent(ev.Score))
	case LowConfidence:
		fmt.Fprintf(&b, "%s Match (review needed): %s\nConfidence: %s (medium)\nOCR text: %s",
			indicatorMedium, RenderRow(ev.Row), percent(ev.Score), ev.Normalized)
	case NoMatch:
		fmt.Fprintf(&b, "%s No matching row found (%s)\nRecognized text:\n%s", indicatorLow, percent(ev.Score), ev.Raw)
	}
	if ev.Caption != "" {
		fmt.Fprintf(&b, "\nCaption: %s", ev.Caption)
	}

	return Outcome{Tier: tier, Accept: tier.Accept(), Message: b.String()}
}

// RenderRow joins a row's values for display. Surrounding asterisks are
// stripped and the first remaining one reads as a multiplication sign, so
// "3*2" shows as "3x2".
func RenderRow(row reference.Row) string {
	joined := strings.Trim(strings.Join(row.Values(), ", "), "*")
	return strings.Replace(joined, "*", "x", 1)
}

func percent(score float64) string {
	return fmt.Sprintf("%.2f%%", score*100)
}
