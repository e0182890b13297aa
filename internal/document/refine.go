package document

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Edit is a tracked region of source text identified by a stable id.
type Edit struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Refinement is a proposed rewrite of one edit, as returned by the
// completion service. Original echoes what the service believed the edit
// contained; it is advisory and re-checked against the real edit.
type Refinement struct {
	EditID   string `json:"edit_id"`
	Original string `json:"original"`
	Refined  string `json:"refined"`
}

// GateConfig holds the refinement quality-gate thresholds. The values are
// heuristics, kept configurable rather than hard-coded.
type GateConfig struct {
	MinSimilarity  float64
	MinLengthRatio float64
	MaxLengthRatio float64
}

// DefaultGateConfig returns the stock thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{MinSimilarity: 0.4, MinLengthRatio: 0.3, MaxLengthRatio: 3.0}
}

// RefineResult carries the final text and any per-refinement problems.
// Errors are informational: a failed refinement falls back to the edit's
// unrefined content, never to dropped text.
type RefineResult struct {
	Text   string
	Errors []string
}

// ApplyRefinements substitutes each edit's content in originalText with its
// validated refinement, in edit order. Refinements whose claimed original
// disagrees with the real edit, or that fail the quality gate, fall back to
// the edit's own content and record an error.
func ApplyRefinements(originalText string, refinements []Refinement, edits []Edit, gate GateConfig) RefineResult {
	byEdit := make(map[string]Refinement, len(refinements))
	for _, r := range refinements {
		byEdit[r.EditID] = r
	}

	result := RefineResult{Text: originalText}
	for _, e := range edits {
		r, ok := byEdit[e.ID]
		if !ok || e.Content == "" {
			continue
		}

		source := e.Content
		if r.Original != e.Content {
			// The service saw stale content; the edit is authoritative.
			result.Errors = append(result.Errors,
				fmt.Sprintf("edit %s: claimed original differs from actual content", e.ID))
		}

		replacement := r.Refined
		if reason := checkGate(source, r.Refined, gate); reason != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("edit %s: %s", e.ID, reason))
			replacement = source
		}

		result.Text = strings.Replace(result.Text, e.Content, replacement, 1)
	}
	return result
}

// checkGate returns a rejection reason, or "" when the refinement passes.
func checkGate(original, refined string, gate GateConfig) string {
	if strings.TrimSpace(refined) == "" {
		return "refined content is empty"
	}
	origLen := utf8.RuneCountInString(original)
	refLen := utf8.RuneCountInString(refined)
	if origLen > 0 {
		ratio := float64(refLen) / float64(origLen)
		if ratio < gate.MinLengthRatio || ratio > gate.MaxLengthRatio {
			return fmt.Sprintf("length ratio %.2f outside [%.2f, %.2f]", ratio, gate.MinLengthRatio, gate.MaxLengthRatio)
		}
	}
	if sim := TokenSimilarity(original, refined); sim < gate.MinSimilarity {
		return fmt.Sprintf("similarity %.2f below %.2f", sim, gate.MinSimilarity)
	}
	return ""
}

// TokenSimilarity returns shared-token overlap: |shared| / max(|a|, |b|),
// where tokens are lower-cased whitespace-delimited words.
func TokenSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared++
		}
	}
	maxLen := len(ta)
	if len(tb) > maxLen {
		maxLen = len(tb)
	}
	return float64(shared) / float64(maxLen)
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if f != "" {
			out[f] = struct{}{}
		}
	}
	return out
}
