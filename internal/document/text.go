package document

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	headingRe = regexp.MustCompile(`^(#{1,3})\s+(.*)$`)
	bulletRe  = regexp.MustCompile(`^[-*]\s+(.*)$`)
	orderedRe = regexp.MustCompile(`^\d+\.\s+(.*)$`)
	boldRe    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe  = regexp.MustCompile(`\*([^*]+)\*`)
)

// FromText segments markdown-like text into block nodes. Blank-line-delimited
// runs become paragraphs; #/##/### lines become headings; -/* runs become
// bullet lists; numbered runs become ordered lists; > runs become blockquotes;
// fenced runs become code blocks. Deterministic for identical input.
func FromText(text string) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var doc Document
	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			i++

		case strings.HasPrefix(trimmed, "```"):
			// Code fence: collect verbatim until the closing fence.
			var code []string
			i++
			for i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
				code = append(code, lines[i])
				i++
			}
			if i < len(lines) {
				i++ // skip closing fence
			}
			doc = append(doc, Node{Kind: KindCodeBlock, Code: strings.Join(code, "\n")})

		case headingRe.MatchString(trimmed):
			m := headingRe.FindStringSubmatch(trimmed)
			doc = append(doc, Node{Kind: KindHeading, Level: len(m[1]), Spans: ParseSpans(m[2])})
			i++

		case bulletRe.MatchString(trimmed):
			var items [][]Span
			for i < len(lines) {
				m := bulletRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
				if m == nil {
					break
				}
				items = append(items, ParseSpans(m[1]))
				i++
			}
			doc = append(doc, Node{Kind: KindBulletList, Items: items})

		case orderedRe.MatchString(trimmed):
			var items [][]Span
			for i < len(lines) {
				m := orderedRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
				if m == nil {
					break
				}
				items = append(items, ParseSpans(m[1]))
				i++
			}
			doc = append(doc, Node{Kind: KindOrderedList, Items: items})

		case strings.HasPrefix(trimmed, ">"):
			var quoted []string
			for i < len(lines) {
				t := strings.TrimSpace(lines[i])
				if !strings.HasPrefix(t, ">") {
					break
				}
				quoted = append(quoted, strings.TrimSpace(strings.TrimPrefix(t, ">")))
				i++
			}
			doc = append(doc, Node{Kind: KindBlockquote, Spans: ParseSpans(strings.Join(quoted, "\n"))})

		default:
			// Paragraph: consecutive plain lines until a blank line or a
			// line that opens another block kind.
			var para []string
			for i < len(lines) {
				t := strings.TrimSpace(lines[i])
				if t == "" || strings.HasPrefix(t, "```") || headingRe.MatchString(t) ||
					bulletRe.MatchString(t) || orderedRe.MatchString(t) || strings.HasPrefix(t, ">") {
					break
				}
				para = append(para, t)
				i++
			}
			doc = append(doc, Node{Kind: KindParagraph, Spans: ParseSpans(strings.Join(para, "\n"))})
		}
	}
	return doc
}

// ToText renders a document back to markdown-like text, joining blocks with
// a blank line. Inverse of FromText for content produced by FromText.
func ToText(doc Document) string {
	blocks := make([]string, 0, len(doc))
	for _, n := range doc {
		if s := nodeToText(n); s != "" {
			blocks = append(blocks, s)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func nodeToText(n Node) string {
	switch n.Kind {
	case KindHeading:
		level := n.Level
		if level < 1 || level > 3 {
			level = 1
		}
		return strings.Repeat("#", level) + " " + RenderSpans(n.Spans)
	case KindBulletList:
		lines := make([]string, 0, len(n.Items))
		for _, item := range n.Items {
			lines = append(lines, "- "+RenderSpans(item))
		}
		return strings.Join(lines, "\n")
	case KindOrderedList:
		lines := make([]string, 0, len(n.Items))
		for i, item := range n.Items {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, RenderSpans(item)))
		}
		return strings.Join(lines, "\n")
	case KindBlockquote:
		raw := RenderSpans(n.Spans)
		lines := strings.Split(raw, "\n")
		for i, l := range lines {
			lines[i] = "> " + l
		}
		return strings.Join(lines, "\n")
	case KindCodeBlock:
		return "```\n" + n.Code + "\n```"
	default:
		return RenderSpans(n.Spans)
	}
}

// ParseSpans splits inline text into spans, recognising **bold** and
// *italic* marks.
func ParseSpans(text string) []Span {
	if text == "" {
		return nil
	}
	var out []Span
	for _, piece := range splitByMark(text, boldRe) {
		if piece.marked {
			out = append(out, Span{Text: piece.text, Bold: true})
			continue
		}
		for _, inner := range splitByMark(piece.text, italicRe) {
			out = append(out, Span{Text: inner.text, Italic: inner.marked})
		}
	}
	return out
}

type markPiece struct {
	text   string
	marked bool
}

func splitByMark(text string, re *regexp.Regexp) []markPiece {
	var out []markPiece
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			out = append(out, markPiece{text: text[last:loc[0]]})
		}
		out = append(out, markPiece{text: text[loc[2]:loc[3]], marked: true})
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, markPiece{text: text[last:]})
	}
	return out
}

// RenderSpans is the inverse of ParseSpans.
func RenderSpans(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		switch {
		case s.Bold:
			sb.WriteString("**" + s.Text + "**")
		case s.Italic:
			sb.WriteString("*" + s.Text + "*")
		default:
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}
