package postaction

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// rootPath addresses the whole response, used when the model returns a bare
// array instead of an object wrapper.
const rootPath = "root"

// resolvePath extracts the value at a dot-separated path from raw AI JSON.
// Segments index into objects by key, or into arrays by position when the
// segment is all digits. An empty path (or "root") returns the whole
// document. The input is untrusted model output, so this must be total: any
// shape mismatch yields a non-existent result, never a panic.
func resolvePath(doc json.RawMessage, path string) gjson.Result {
	root := gjson.ParseBytes(doc)
	path = strings.TrimSpace(path)
	if path == "" || path == rootPath {
		return root
	}
	return root.Get(path)
}

// jsonTypeName names a resolved value's JSON type for diagnostics.
func jsonTypeName(v gjson.Result) string {
	if !v.Exists() {
		return "missing"
	}
	switch {
	case v.IsArray():
		return "array"
	case v.IsObject():
		return "object"
	case v.Type == gjson.String:
		return "string"
	case v.Type == gjson.Number:
		return "number"
	case v.Type == gjson.True || v.Type == gjson.False:
		return "boolean"
	case v.Type == gjson.Null:
		return "null"
	}
	return "unknown"
}

// rawJSON returns the raw bytes of a resolved value, for storing the source
// item alongside a created node.
func rawJSON(v gjson.Result) json.RawMessage {
	if !v.Exists() {
		return nil
	}
	return json.RawMessage(v.Raw)
}
