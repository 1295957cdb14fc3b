package display

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/record"
)

func sampleTable() *record.Table {
	return record.NewTable([]record.Record{
		{"name": "Ada", "age": 36, "tags": []any{"math"}},
		{"name": "Grace", "age": nil},
	})
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, FormatTable, sampleTable()))

	out := buf.String()
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "Grace")
	assert.Contains(t, out, `["math"]`)
}

func TestRenderEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, FormatTable, record.NewTable(nil)))
	assert.Equal(t, "(no rows)\n", buf.String())
}

func TestRenderDocumentFormats(t *testing.T) {
	var js, ym, tm bytes.Buffer
	require.NoError(t, RenderTable(&js, FormatJSON, sampleTable()))
	require.NoError(t, RenderTable(&ym, FormatYAML, sampleTable()))
	require.NoError(t, RenderTable(&tm, FormatTOML, sampleTable()))

	assert.Contains(t, js.String(), `"columns": [`)
	assert.Contains(t, js.String(), `"age": null`)
	assert.Contains(t, ym.String(), "name: Grace")
	assert.Contains(t, tm.String(), "[[rows]]")
	assert.NotContains(t, tm.String(), "null")
}

func TestRenderTOMLWrapsLists(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatTOML, []map[string]string{{"id": "a"}}))
	assert.Contains(t, buf.String(), "[[items]]")
}

func TestCell(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01T09:30:00Z", Cell(ts))
	assert.Equal(t, "42", Cell(int64(42)))
	assert.Equal(t, "true", Cell(true))
	assert.Equal(t, `{"dateTime":"x"}`, Cell(map[string]any{"dateTime": "x"}))
}
