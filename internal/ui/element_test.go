package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	data, err := Marshal(Card{Title: "Storage", Fields: []Field{{Label: "Used", Value: "1.5 KB"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"card","data":{"title":"Storage","fields":[{"label":"Used","value":"1.5 KB"}]}}`, string(data))

	_, err = Marshal(nil)
	assert.Error(t, err)
}

func TestPlain(t *testing.T) {
	tests := []struct {
		name string
		el   Element
		want string
	}{
		{"text", Text{Body: "hello"}, "hello"},
		{"card", Card{Title: "T", Body: "b", Fields: []Field{{"k", "v"}}}, "== T ==\nb\nk: v"},
		{"table", Table{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}, "a | b\n1 | 2"},
		{"list", List{Items: []string{"x", "y"}}, "- x\n- y"},
		{"titled list", List{Title: "L", Items: []string{"x"}}, "L\n- x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Plain(tt.el))
		})
	}
}

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := &TextRenderer{W: &buf}
	require.NoError(t, r.Render(Text{Body: "one"}))
	require.NoError(t, r.Render(List{Items: []string{"two"}}))
	assert.Equal(t, "one\n\n- two\n\n", buf.String())
}
