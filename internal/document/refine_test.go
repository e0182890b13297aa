package document

import (
	"strings"
	"testing"
)

func TestApplyRefinementsReplacesInOrder(t *testing.T) {
	edits := []Edit{
		{ID: "e1", Content: "buy milk today"},
		{ID: "e2", Content: "call bob tomorrow"},
	}
	refs := []Refinement{
		{EditID: "e2", Original: "call bob tomorrow", Refined: "Call Bob tomorrow."},
		{EditID: "e1", Original: "buy milk today", Refined: "Buy milk today."},
	}
	text := "buy milk today\n\ncall bob tomorrow"

	result := ApplyRefinements(text, refs, edits, DefaultGateConfig())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	want := "Buy milk today.\n\nCall Bob tomorrow."
	if result.Text != want {
		t.Errorf("expected %q, got %q", want, result.Text)
	}
}

func TestApplyRefinementsMismatchedOriginal(t *testing.T) {
	edits := []Edit{{ID: "e1", Content: "buy milk today"}}
	refs := []Refinement{{EditID: "e1", Original: "something stale", Refined: "Buy milk today."}}

	result := ApplyRefinements("buy milk today", refs, edits, DefaultGateConfig())
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
	if !strings.Contains(result.Errors[0], "differs from actual") {
		t.Errorf("unexpected error: %q", result.Errors[0])
	}
	// The real edit content is still what gets replaced.
	if result.Text != "Buy milk today." {
		t.Errorf("expected replacement despite mismatch, got %q", result.Text)
	}
}

func TestQualityGateRejectsUnrelatedRewrite(t *testing.T) {
	edits := []Edit{{ID: "e1", Content: "Buy milk and eggs today"}}
	refs := []Refinement{{EditID: "e1", Original: "Buy milk and eggs today", Refined: "Completely unrelated sentence about weather patterns"}}

	result := ApplyRefinements("Buy milk and eggs today", refs, edits, DefaultGateConfig())
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
	if result.Text != "Buy milk and eggs today" {
		t.Errorf("rejected refinement must fall back to source, got %q", result.Text)
	}
}

func TestQualityGateRejectsLengthCollapse(t *testing.T) {
	edits := []Edit{{ID: "e1", Content: "Buy milk and eggs today"}}
	refs := []Refinement{{EditID: "e1", Original: "Buy milk and eggs today", Refined: "x"}}

	result := ApplyRefinements("Buy milk and eggs today", refs, edits, DefaultGateConfig())
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
	if !strings.Contains(result.Errors[0], "length ratio") {
		t.Errorf("expected length ratio rejection, got %q", result.Errors[0])
	}
	if result.Text != "Buy milk and eggs today" {
		t.Errorf("expected fallback to source, got %q", result.Text)
	}
}

func TestQualityGateRejectsEmpty(t *testing.T) {
	edits := []Edit{{ID: "e1", Content: "keep this"}}
	refs := []Refinement{{EditID: "e1", Original: "keep this", Refined: "   "}}

	result := ApplyRefinements("keep this", refs, edits, DefaultGateConfig())
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "empty") {
		t.Fatalf("expected empty rejection, got %v", result.Errors)
	}
	if result.Text != "keep this" {
		t.Errorf("expected fallback to source, got %q", result.Text)
	}
}

func TestTokenSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"buy milk today", "buy milk today", 1.0},
		{"buy milk today", "Buy milk, today!", 1.0},
		{"buy milk", "sell stocks", 0.0},
		{"", "anything", 0.0},
	}
	for _, tt := range tests {
		if got := TokenSimilarity(tt.a, tt.b); got != tt.want {
			t.Errorf("TokenSimilarity(%q, %q) = %.2f, want %.2f", tt.a, tt.b, got, tt.want)
		}
	}
}
