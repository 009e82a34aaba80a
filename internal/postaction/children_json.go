package postaction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Name auto-detection priority when name_field is absent or misses. Order is
// load-bearing: runs on identical item shapes must produce identical names.
var nameFallbackKeys = []string{
	"prompt_name", "name", "title", "heading", "label",
	"section_name", "section_title", "topic", "subject", "key", "id",
}

// Content auto-detection priority when content_field is absent or misses.
var contentFallbackKeys = []string{
	"input_admin_prompt", "system_prompt", "content", "text", "body", "description",
}

const maxChildNameLen = 100

// PathError reports a json_path that did not resolve to an array. AI schema
// drift is the dominant real-world failure mode here, so the message carries
// everything needed to debug it: the found type, the top-level keys that are
// arrays, and a concrete suggestion.
type PathError struct {
	Path       string
	FoundType  string
	ArrayKeys  []string
	Suggestion string
}

func (e *PathError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "json_path %q did not resolve to an array (found: %s)", e.Path, e.FoundType)
	if e.FoundType == "string" {
		b.WriteString("; the value is a string, which usually means the model returned stringified JSON instead of a JSON array")
	}
	if len(e.ArrayKeys) > 0 {
		fmt.Fprintf(&b, "; top-level keys holding arrays: %s", strings.Join(e.ArrayKeys, ", "))
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, ". Suggestion: %s", e.Suggestion)
	}
	return b.String()
}

// ChildrenFromJSON creates one child per element of a path-addressed array in
// the AI response.
type ChildrenFromJSON struct{}

func (e *ChildrenFromJSON) Name() string { return ActionChildrenJSON }

func (e *ChildrenFromJSON) Execute(ctx context.Context, in Input) (*Result, error) {
	path := in.Config.PathStr("json_path", "")
	items := resolvePath(in.Response, path)
	if !items.IsArray() {
		return nil, newPathError(in.Response, path, items)
	}

	elements := items.Array()
	if len(elements) == 0 {
		return &Result{CreatedCount: 0, Message: fmt.Sprintf("array at %q is empty, nothing to create", path)}, nil
	}

	nameField := in.Config.Str("name_field", "")
	contentField := in.Config.Str("content_field", "")
	toUser := in.Config.Str("content_destination", "system") == "user"

	specs := make([]childSpec, 0, len(elements))
	for i, item := range elements {
		spec := childSpec{
			Name:      deriveChildName(item, nameField, i),
			Extracted: rawJSON(item),
		}
		content := deriveChildContent(item, contentField)
		if toUser {
			spec.UserPrompt = content
		} else {
			spec.AdminPrompt = content
		}
		specs = append(specs, spec)
	}

	parentID := resolveTargetParent(in)
	children, err := insertChildren(ctx, in, parentID, childNodeType(in.Config), specs)
	if err != nil {
		return &Result{CreatedCount: len(children), Children: children}, err
	}

	return &Result{
		CreatedCount: len(children),
		Children:     children,
		Message:      fmt.Sprintf("Created %d child prompt(s) from %d array item(s)", len(children), len(elements)),
	}, nil
}

// newPathError inspects the response for the diagnostic contract: which
// top-level keys do hold arrays, whether the value at path is stringified
// JSON, and what to try instead.
func newPathError(response json.RawMessage, path string, found gjson.Result) *PathError {
	e := &PathError{Path: path, FoundType: jsonTypeName(found)}

	root := gjson.ParseBytes(response)
	if root.IsArray() {
		e.Suggestion = `the whole response is an array; set json_path to "root"`
		return e
	}
	if root.IsObject() {
		root.ForEach(func(key, value gjson.Result) bool {
			if value.IsArray() {
				e.ArrayKeys = append(e.ArrayKeys, key.String())
			}
			return true
		})
	}
	if len(e.ArrayKeys) > 0 {
		e.Suggestion = fmt.Sprintf("set json_path to %q", e.ArrayKeys[0])
	}
	return e
}

// deriveChildName picks a name for one array item: a string item is used
// directly (truncated), an object item tries the configured name_field, then
// the fixed fallback key list, then its first short string-valued property.
func deriveChildName(item gjson.Result, nameField string, index int) string {
	if item.Type == gjson.String {
		return truncate(item.String(), maxChildNameLen)
	}
	if item.IsObject() {
		if nameField != "" {
			if v := item.Get(nameField); v.Exists() && v.Type == gjson.String && v.String() != "" {
				return truncate(v.String(), maxChildNameLen)
			}
		}
		for _, key := range nameFallbackKeys {
			if v := item.Get(key); v.Exists() && v.Type == gjson.String && v.String() != "" {
				return truncate(v.String(), maxChildNameLen)
			}
		}
		// Document order makes this deterministic across runs.
		name := ""
		item.ForEach(func(_, value gjson.Result) bool {
			if value.Type == gjson.String && value.String() != "" && len(value.String()) <= maxChildNameLen {
				name = value.String()
				return false
			}
			return true
		})
		if name != "" {
			return name
		}
	}
	return "Item " + strconv.Itoa(index+1)
}

// deriveChildContent picks the prompt content for one array item, falling
// back to a pretty-printed dump of the whole item so nothing the model
// produced is silently dropped.
func deriveChildContent(item gjson.Result, contentField string) string {
	if item.Type == gjson.String {
		return item.String()
	}
	if item.IsObject() {
		if contentField != "" {
			if v := item.Get(contentField); v.Exists() {
				return stringifyValue(v)
			}
		}
		for _, key := range contentFallbackKeys {
			if v := item.Get(key); v.Exists() {
				return stringifyValue(v)
			}
		}
	}
	return prettyJSON(item.Raw)
}

func stringifyValue(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	return prettyJSON(v.Raw)
}

func prettyJSON(raw string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
