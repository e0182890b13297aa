// Package routing maps freeform note content onto destination file paths by
// asking the completion service.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/completion"
)

// Chunk is one routed piece of content: where it goes and what goes there.
// The same content may legitimately appear in several chunks.
type Chunk struct {
	TargetPath string `json:"targetFilePath"`
	Content    string `json:"content"`
}

// Suggestion is a destination candidate in suggestion-only mode.
type Suggestion struct {
	TargetPath string  `json:"targetFilePath"`
	Relevance  float64 `json:"relevance"`
}

// Planner asks the completion service to classify content against the
// serialized file tree, falling through a list of model profiles on failure.
type Planner struct {
	client      completion.Client
	models      []string
	defaultPath string
	logger      *slog.Logger
}

// NewPlanner creates a planner. models is the profile fallback order;
// defaultPath, when non-empty, is the safe destination used when every
// profile fails (typically "/Inbox").
func NewPlanner(client completion.Client, models []string, defaultPath string, logger *slog.Logger) *Planner {
	return &Planner{client: client, models: models, defaultPath: defaultPath, logger: logger}
}

// Plan routes content into destination chunks. Each model profile is tried in
// order; an HTTP error or unparseable response moves on to the next. When all
// profiles fail, the configured default chunk is returned, or
// apperr.ErrRoutingFailure when no safe default exists.
func (p *Planner) Plan(ctx context.Context, title, content, tree, rules string) ([]Chunk, error) {
	prompt := buildRoutingPrompt(title, content, tree, rules)

	for _, model := range p.models {
		raw, err := p.client.Complete(ctx, prompt, model)
		if err != nil {
			p.logger.Warn("routing: completion failed",
				slog.String("model", model), slog.String("error", err.Error()))
			continue
		}
		chunks, err := parseChunks(raw)
		if err != nil {
			p.logger.Warn("routing: unparseable response",
				slog.String("model", model), slog.String("error", err.Error()))
			continue
		}
		return chunks, nil
	}

	if p.defaultPath != "" {
		p.logger.Warn("routing: all profiles failed, using default destination",
			slog.String("path", p.defaultPath))
		return []Chunk{{TargetPath: p.defaultPath, Content: content}}, nil
	}
	return nil, fmt.Errorf("routing: all %d model profiles exhausted: %w", len(p.models), apperr.ErrRoutingFailure)
}

// Suggest returns ranked destination candidates without routing content.
// There is no default fallback in suggestion mode.
func (p *Planner) Suggest(ctx context.Context, title, content, tree string) ([]Suggestion, error) {
	prompt := buildSuggestionPrompt(title, content, tree)

	for _, model := range p.models {
		raw, err := p.client.Complete(ctx, prompt, model)
		if err != nil {
			p.logger.Warn("routing: suggestion completion failed",
				slog.String("model", model), slog.String("error", err.Error()))
			continue
		}
		var out []Suggestion
		if err := json.Unmarshal([]byte(completion.StripFences(raw)), &out); err != nil {
			p.logger.Warn("routing: unparseable suggestions",
				slog.String("model", model), slog.String("error", err.Error()))
			continue
		}
		valid := out[:0]
		for _, s := range out {
			if s.TargetPath != "" {
				s.TargetPath = NormalizePath(s.TargetPath)
				valid = append(valid, s)
			}
		}
		return valid, nil
	}
	return nil, fmt.Errorf("routing: all %d model profiles exhausted: %w", len(p.models), apperr.ErrRoutingFailure)
}

// parseChunks decodes and validates a routing response. A response with no
// usable chunk counts as a parse failure so the caller tries the next profile.
func parseChunks(raw string) ([]Chunk, error) {
	var chunks []Chunk
	if err := json.Unmarshal([]byte(completion.StripFences(raw)), &chunks); err != nil {
		return nil, fmt.Errorf("decode chunk array: %w", err)
	}

	valid := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.TargetPath) == "" || strings.TrimSpace(c.Content) == "" {
			continue
		}
		c.TargetPath = NormalizePath(c.TargetPath)
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no usable chunks in response")
	}
	return valid, nil
}

// NormalizePath ensures a leading slash and no trailing slash.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func buildRoutingPrompt(title, content, tree, rules string) string {
	var sb strings.Builder
	sb.WriteString("You organize personal notes into an existing file tree.\n\n")
	sb.WriteString("File tree:\n")
	sb.WriteString(tree)
	sb.WriteString("\n")
	if title != "" {
		sb.WriteString("Note title: " + title + "\n")
	}
	if rules != "" {
		sb.WriteString("\nUser organization rules:\n" + rules + "\n")
	}
	sb.WriteString("\nContent to organize:\n" + content + "\n")
	sb.WriteString(`
Return a JSON array of destinations:
[{"targetFilePath": "/Folder/File", "content": "the content that belongs there"}]

Rules:
1. targetFilePath must always end in a file, never a folder.
2. Prefer existing files over inventing new ones.
3. Content relevant to several destinations may be duplicated into each.
4. Split unrelated topics into separate destinations.
5. Return only the JSON array, nothing else.
`)
	return sb.String()
}

func buildSuggestionPrompt(title, content, tree string) string {
	var sb strings.Builder
	sb.WriteString("You suggest destinations for a personal note within an existing file tree.\n\n")
	sb.WriteString("File tree:\n")
	sb.WriteString(tree)
	sb.WriteString("\n")
	if title != "" {
		sb.WriteString("Note title: " + title + "\n")
	}
	sb.WriteString("\nContent:\n" + content + "\n")
	sb.WriteString(`
Return a JSON array of candidate destinations ranked by relevance:
[{"targetFilePath": "/Folder/File", "relevance": 0.9}]

Rules:
1. targetFilePath must always end in a file, never a folder.
2. Only suggest existing files.
3. Relevance is 0.0-1.0; omit candidates below 0.3.
4. Return only the JSON array, nothing else.
`)
	return sb.String()
}
