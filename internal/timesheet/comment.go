package timesheet

import "strings"

// Node is an Atlassian Document Format node.
type Node struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// Comment holds either a flat string body or a structured document.
// Doc takes precedence when set.
type Comment struct {
	ID     string
	Author string
	Body   string
	Doc    *Node
}

// PlainText returns the comment text used for keyword matching.
//
// Flat bodies are wiki markup or plain text and are returned unchanged. For
// documents, every paragraph node at any depth (list items, panels and
// quotes included) contributes its direct text leaves, paragraphs joined
// by a single space in document order.
func (c Comment) PlainText() string {
	if c.Doc == nil {
		return c.Body
	}

	var paragraphs []string
	collectParagraphs(*c.Doc, &paragraphs)
	return strings.Join(paragraphs, " ")
}

func collectParagraphs(n Node, out *[]string) {
	if n.Type != "paragraph" {
		for _, child := range n.Content {
			collectParagraphs(child, out)
		}
		return
	}

	var b strings.Builder
	for _, leaf := range n.Content {
		if leaf.Type == "text" {
			b.WriteString(leaf.Text)
		}
	}
	if b.Len() > 0 {
		*out = append(*out, b.String())
	}
}
