// Package scoring estimates how factually reliable a post's text is and
// maps the estimate onto a trust label.
package scoring

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"veritas/internal/models"
)

// Label thresholds, inclusive lower bounds.
const (
	VerifiedThreshold = 70
	MixedThreshold    = 40
)

// Result is the outcome of one classification. Score is nil when no usable
// score was obtained, in which case Label is always unverified.
type Result struct {
	Score     *int         `json:"score"`
	Label     models.Label `json:"label"`
	Rationale string       `json:"rationale,omitempty"`
}

// Unverified is the fallback result.
func Unverified() Result {
	return Result{Label: models.LabelUnverified}
}

// Classifier scores text. Implementations must never fail: every error is
// absorbed into the unverified result.
type Classifier interface {
	Classify(ctx context.Context, text string) Result
}

// NoopClassifier labels everything unverified. It is used when no oracle is
// configured.
type NoopClassifier struct{}

// Classify implements Classifier.
func (NoopClassifier) Classify(context.Context, string) Result {
	return Unverified()
}

// LabelFor maps an already clamped score onto a label.
func LabelFor(score int) models.Label {
	switch {
	case score >= VerifiedThreshold:
		return models.LabelVerified
	case score >= MixedThreshold:
		return models.LabelMixed
	default:
		return models.LabelSuspect
	}
}

// Normalize clamps raw into [0,100] and rounds half away from zero.
func Normalize(raw float64) int {
	return int(math.Round(math.Max(0, math.Min(100, raw))))
}

type verdict struct {
	Score     *float64 `json:"score"`
	Rationale string   `json:"rationale"`
}

// Interpret extracts a score from oracle output. The whole payload is tried
// as JSON first, then the span from the first '{' to the last '}'. A score
// that is not a JSON number is treated as absent. ok is false when nothing
// usable was found.
func Interpret(raw string) (Result, bool) {
	v, ok := decodeVerdict(raw)
	if !ok {
		start := strings.IndexByte(raw, '{')
		end := strings.LastIndexByte(raw, '}')
		if start < 0 || end <= start {
			return Unverified(), false
		}
		if v, ok = decodeVerdict(raw[start : end+1]); !ok {
			return Unverified(), false
		}
	}
	if v.Score == nil || math.IsNaN(*v.Score) || math.IsInf(*v.Score, 0) {
		return Unverified(), false
	}

	score := Normalize(*v.Score)
	return Result{Score: &score, Label: LabelFor(score), Rationale: v.Rationale}, true
}

func decodeVerdict(s string) (verdict, bool) {
	var v verdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v); err != nil {
		return verdict{}, false
	}
	return v, true
}
