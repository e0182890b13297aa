// Package merge integrates newly routed content into a destination document
// without disturbing untouched history.
package merge

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/raido/internal/completion"
	"github.com/starford/raido/internal/document"
)

// Engine merges new content into a destination through the completion
// service, with a naive-append fallback that never drops content.
type Engine struct {
	client     completion.Client
	models     []string
	maxContext int
	logger     *slog.Logger
}

// NewEngine creates a merge engine. maxContext bounds how many of today's
// nodes are sent to the model on large documents.
func NewEngine(client completion.Client, models []string, maxContext int, logger *slog.Logger) *Engine {
	if maxContext <= 0 {
		maxContext = 30
	}
	return &Engine{client: client, models: models, maxContext: maxContext, logger: logger}
}

// SplitToday partitions a document at the today boundary: the contiguous
// prefix of nodes whose LastUpdated falls on ref's local calendar date, and
// the untouched remainder. The scan stops at the first non-today node even if
// later nodes are today-dated.
func SplitToday(doc document.Document, ref time.Time) (today, remainder document.Document) {
	y, m, d := ref.Date()
	cut := len(doc)
	for i, n := range doc {
		if n.Meta == nil {
			cut = i
			break
		}
		ny, nm, nd := n.Meta.LastUpdated.Local().Date()
		if ny != y || nm != m || nd != d {
			cut = i
			break
		}
	}
	return doc[:cut], doc[cut:]
}

// Merge integrates newContent into existing and returns the resulting
// document. Only today's batch is rewritten by the model; everything after
// the boundary is carried over verbatim. On any model failure the new content
// is appended after the existing document instead.
func (e *Engine) Merge(ctx context.Context, existing document.Document, newContent, title, rules, ownerID string) document.Document {
	today, remainder := SplitToday(existing, time.Now())

	// Bound the prompt on large documents: only the tail of today's batch is
	// rewritten, earlier today nodes stay in place.
	kept := document.Document{}
	window := today
	if len(today) > e.maxContext {
		kept = today[:len(today)-e.maxContext]
		window = today[len(today)-e.maxContext:]
	}

	prompt := buildMergePrompt(document.ToText(window), newContent, title, rules)

	merged, ok := e.callModel(ctx, prompt)
	if !ok {
		return naiveAppend(existing, newContent, ownerID)
	}

	mergedNodes := document.MarkOrganized(document.FromText(merged), ownerID)
	if !hasContent(mergedNodes) {
		e.logger.Warn("merge: model returned empty document, appending instead")
		return naiveAppend(existing, newContent, ownerID)
	}

	out := make(document.Document, 0, len(kept)+len(mergedNodes)+1+len(remainder))
	out = append(out, kept...)
	out = append(out, mergedNodes...)
	out = append(out, spacingNode(ownerID))
	out = append(out, remainder...)
	return out
}

// callModel tries each model profile in order and returns the first merged
// text, or ok=false when every profile fails.
func (e *Engine) callModel(ctx context.Context, prompt string) (string, bool) {
	for _, model := range e.models {
		raw, err := e.client.Complete(ctx, prompt, model)
		if err != nil {
			e.logger.Warn("merge: completion failed",
				slog.String("model", model), slog.String("error", err.Error()))
			continue
		}
		text := completion.StripFences(raw)
		if strings.TrimSpace(text) == "" {
			e.logger.Warn("merge: empty response", slog.String("model", model))
			continue
		}
		return text, true
	}
	return "", false
}

func hasContent(doc document.Document) bool {
	for _, n := range doc {
		if !n.Empty() {
			return true
		}
	}
	return false
}

// naiveAppend converts newContent to nodes and appends them after all
// existing content.
func naiveAppend(existing document.Document, newContent, ownerID string) document.Document {
	newNodes := document.MarkOrganized(document.FromText(newContent), ownerID)
	out := make(document.Document, 0, len(existing)+len(newNodes))
	out = append(out, existing...)
	out = append(out, newNodes...)
	return out
}

// spacingNode is the empty paragraph separating merged content from the
// untouched remainder.
func spacingNode(ownerID string) document.Node {
	n := document.Node{Kind: document.KindParagraph}
	stamped := document.MarkOrganized(document.Document{n}, ownerID)
	return stamped[0]
}

func buildMergePrompt(existingText, newContent, title, rules string) string {
	var sb strings.Builder
	sb.WriteString("You merge new note content into an existing note section.\n\n")
	if title != "" {
		sb.WriteString("Destination note: " + title + "\n\n")
	}
	sb.WriteString("Existing section (written today):\n")
	if existingText == "" {
		sb.WriteString("(empty)\n")
	} else {
		sb.WriteString(existingText + "\n")
	}
	sb.WriteString("\nNew content:\n" + newContent + "\n")
	if rules != "" {
		sb.WriteString("\nUser organization rules:\n" + rules + "\n")
	}
	sb.WriteString(`
Rewrite the existing section with the new content integrated. Combine
duplicates, keep the result coherent, and preserve all information from both
inputs. If part of the new content is irrelevant to this note, drop that part
rather than forcing it in. Return only the merged markdown text.
`)
	return sb.String()
}
