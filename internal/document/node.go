// Package document defines the block-tree content model and converts it
// to and from markdown-like text.
package document

import "time"

// Kind identifies a block node type. The set is closed: persisted content
// only ever contains these kinds.
type Kind string

const (
	KindParagraph   Kind = "paragraph"
	KindHeading     Kind = "heading"
	KindBulletList  Kind = "bullet_list"
	KindOrderedList Kind = "ordered_list"
	KindBlockquote  Kind = "blockquote"
	KindCodeBlock   Kind = "code_block"
)

// Organization status values carried in block metadata.
const (
	StatusNotOrganized = "no"
	StatusOrganized    = "yes"
)

// Span is a run of inline text with optional marks.
type Span struct {
	Text   string `json:"text"`
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
}

// Meta is the per-block provenance metadata. IDs are stable: once stamped,
// a block keeps its id across edits and re-stamps.
type Meta struct {
	ID          string    `json:"id"`
	Organized   bool      `json:"organized"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
}

// Node is one block in a document. Which fields are populated depends on
// Kind: Spans for paragraph/heading/blockquote, Items for lists, Code for
// code blocks. Level is the heading level (1..3).
type Node struct {
	Kind  Kind     `json:"kind"`
	Level int      `json:"level,omitempty"`
	Spans []Span   `json:"spans,omitempty"`
	Items [][]Span `json:"items,omitempty"`
	Code  string   `json:"code,omitempty"`
	Meta  *Meta    `json:"meta,omitempty"`
}

// Document is an ordered sequence of block nodes.
type Document []Node

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for i, n := range d {
		out[i] = n.clone()
	}
	return out
}

func (n Node) clone() Node {
	c := n
	if n.Spans != nil {
		c.Spans = append([]Span(nil), n.Spans...)
	}
	if n.Items != nil {
		c.Items = make([][]Span, len(n.Items))
		for i, item := range n.Items {
			c.Items[i] = append([]Span(nil), item...)
		}
	}
	if n.Meta != nil {
		m := *n.Meta
		c.Meta = &m
	}
	return c
}

// Empty reports whether the node carries no visible content.
func (n Node) Empty() bool {
	if n.Code != "" {
		return false
	}
	for _, s := range n.Spans {
		if s.Text != "" {
			return false
		}
	}
	for _, item := range n.Items {
		for _, s := range item {
			if s.Text != "" {
				return false
			}
		}
	}
	return true
}
