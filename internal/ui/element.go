// Package ui defines the presentable elements tools hand to a rendering sink.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Element kinds.
const (
	KindText  = "text"
	KindCard  = "card"
	KindTable = "table"
	KindList  = "list"
)

// Element is an opaque presentable value produced by a tool.
type Element interface {
	Kind() string
}

// Text is a plain block of text.
type Text struct {
	Body string `json:"body"`
}

func (Text) Kind() string { return KindText }

// Field is a labelled value shown on a Card.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Card is a titled summary with optional key/value fields.
type Card struct {
	Title  string  `json:"title"`
	Body   string  `json:"body,omitempty"`
	Fields []Field `json:"fields,omitempty"`
}

func (Card) Kind() string { return KindCard }

// Table is a grid of string cells.
type Table struct {
	Title   string     `json:"title,omitempty"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func (Table) Kind() string { return KindTable }

// List is a titled bullet list.
type List struct {
	Title string   `json:"title,omitempty"`
	Items []string `json:"items"`
}

func (List) Kind() string { return KindList }

type envelope struct {
	Kind string  `json:"kind"`
	Data Element `json:"data"`
}

// Marshal encodes an element as {"kind": ..., "data": ...}.
func Marshal(el Element) ([]byte, error) {
	if el == nil {
		return nil, fmt.Errorf("nil element")
	}
	return json.Marshal(envelope{Kind: el.Kind(), Data: el})
}

// Plain renders an element as human-readable text.
func Plain(el Element) string {
	var b strings.Builder
	switch e := el.(type) {
	case Text:
		b.WriteString(e.Body)
	case Card:
		b.WriteString("== " + e.Title + " ==")
		if e.Body != "" {
			b.WriteString("\n" + e.Body)
		}
		for _, f := range e.Fields {
			fmt.Fprintf(&b, "\n%s: %s", f.Label, f.Value)
		}
	case Table:
		if e.Title != "" {
			b.WriteString(e.Title + "\n")
		}
		b.WriteString(strings.Join(e.Columns, " | "))
		for _, row := range e.Rows {
			b.WriteString("\n" + strings.Join(row, " | "))
		}
	case List:
		if e.Title != "" {
			b.WriteString(e.Title)
		}
		for i, item := range e.Items {
			if i > 0 || e.Title != "" {
				b.WriteString("\n")
			}
			b.WriteString("- " + item)
		}
	case nil:
	default:
		fmt.Fprintf(&b, "[%s]", el.Kind())
	}
	return b.String()
}

// TextRenderer writes elements as plain text, one block per element.
type TextRenderer struct {
	W io.Writer
}

// Render writes the element followed by a blank line.
func (r *TextRenderer) Render(el Element) error {
	_, err := fmt.Fprintf(r.W, "%s\n\n", Plain(el))
	return err
}
