package postaction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	doc := json.RawMessage(`{
		"a": {"b": {"c": 42}},
		"items": [{"name": "first"}, {"name": "second"}],
		"nil": null,
		"s": "text"
	}`)

	tests := []struct {
		name   string
		path   string
		exists bool
		want   string
	}{
		{"object key chain", "a.b.c", true, "42"},
		{"array index", "items.1.name", true, "second"},
		{"empty path returns root", "", true, ""},
		{"root keyword returns root", "root", true, ""},
		{"missing key", "a.x.y", false, ""},
		{"index into object", "a.0", false, ""},
		{"key into string", "s.length", false, ""},
		{"traverse through null", "nil.anything", false, ""},
		{"out of range index", "items.9", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolvePath(doc, tt.path)
			assert.Equal(t, tt.exists, got.Exists())
			if tt.want != "" {
				assert.Equal(t, tt.want, got.Raw)
			}
		})
	}
}

// The resolver runs on untrusted model output and must be total: no input
// combination may panic.
func TestResolvePathIsTotal(t *testing.T) {
	docs := []json.RawMessage{
		nil,
		json.RawMessage(``),
		json.RawMessage(`null`),
		json.RawMessage(`"just a string"`),
		json.RawMessage(`123`),
		json.RawMessage(`[1,2,3]`),
		json.RawMessage(`{"k":"v"}`),
		json.RawMessage(`{"broken":`),
		json.RawMessage(`{{{{`),
	}
	paths := []string{"", "a", "a.b.c", "0", "0.1.2", "....", "a..b", "#", "*", "root"}

	for _, doc := range docs {
		for _, path := range paths {
			require.NotPanics(t, func() {
				resolvePath(doc, path)
			}, "doc=%s path=%s", doc, path)
		}
	}
}

func TestJSONTypeName(t *testing.T) {
	doc := json.RawMessage(`{"a":[1],"o":{},"s":"x","n":5,"b":true,"z":null}`)

	assert.Equal(t, "array", jsonTypeName(resolvePath(doc, "a")))
	assert.Equal(t, "object", jsonTypeName(resolvePath(doc, "o")))
	assert.Equal(t, "string", jsonTypeName(resolvePath(doc, "s")))
	assert.Equal(t, "number", jsonTypeName(resolvePath(doc, "n")))
	assert.Equal(t, "boolean", jsonTypeName(resolvePath(doc, "b")))
	assert.Equal(t, "null", jsonTypeName(resolvePath(doc, "z")))
	assert.Equal(t, "missing", jsonTypeName(resolvePath(doc, "nope")))
}
