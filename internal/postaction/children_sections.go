package postaction

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const defaultSectionPattern = `^section\s*\d+`

var firstNumberPattern = regexp.MustCompile(`\d+`)

// ChildrenFromSections creates one child per response key matching the
// "sections" pattern, pairing each matched key with an optional companion
// content key ("{key} {suffix}").
type ChildrenFromSections struct{}

func (e *ChildrenFromSections) Name() string { return ActionChildrenSections }

func (e *ChildrenFromSections) Execute(ctx context.Context, in Input) (*Result, error) {
	suffix := in.Config.Str("content_key_suffix", "system prompt")
	nameSource := in.Config.Str("name_source", "key_value")

	root := gjson.ParseBytes(in.Response)

	// Top-level keys in document order, plus a case-insensitive lookup for
	// companion content keys.
	var orderedKeys []string
	byLowerKey := make(map[string]gjson.Result)
	if root.IsObject() {
		root.ForEach(func(key, value gjson.Result) bool {
			orderedKeys = append(orderedKeys, key.String())
			byLowerKey[strings.ToLower(key.String())] = value
			return true
		})
	}

	matched, err := matchSectionKeys(in.Config, orderedKeys, suffix)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return &Result{CreatedCount: 0, Message: "no matching section keys in response, nothing to create"}, nil
	}

	// Natural sort by the first embedded integer so "section 2" precedes
	// "section 10"; keys without a number sort as 0.
	sort.SliceStable(matched, func(i, j int) bool {
		return embeddedNumber(matched[i]) < embeddedNumber(matched[j])
	})

	specs := make([]childSpec, 0, len(matched))
	for _, key := range matched {
		value := byLowerKey[strings.ToLower(key)]
		specs = append(specs, childSpec{
			Name:        sectionName(nameSource, key, value),
			AdminPrompt: sectionContent(byLowerKey, key, suffix),
			Extracted:   rawJSON(value),
		})
	}

	parentID := resolveTargetParent(in)
	children, err := insertChildren(ctx, in, parentID, childNodeType(in.Config), specs)
	if err != nil {
		return &Result{CreatedCount: len(children), Children: children}, err
	}

	return &Result{
		CreatedCount: len(children),
		Children:     children,
		Message:      fmt.Sprintf("Created %d child prompt(s) from matching section keys", len(children)),
	}, nil
}

// matchSectionKeys returns the section keys to materialize: the explicit
// target_keys filtered to those present, or every top-level key matching the
// (case-insensitive) section pattern, excluding companion content keys.
func matchSectionKeys(cfg Config, orderedKeys []string, suffix string) ([]string, error) {
	if targets := cfg.StrSlice("target_keys"); len(targets) > 0 {
		present := make(map[string]bool, len(orderedKeys))
		for _, k := range orderedKeys {
			present[strings.ToLower(k)] = true
		}
		var matched []string
		for _, t := range targets {
			if present[strings.ToLower(t)] {
				matched = append(matched, t)
			}
		}
		return matched, nil
	}

	patternSrc := cfg.Str("section_pattern", defaultSectionPattern)
	pattern, err := regexp.Compile("(?i)" + patternSrc)
	if err != nil {
		return nil, fmt.Errorf("invalid section_pattern %q: %w", patternSrc, err)
	}

	// Companion content keys come in two spellings; neither is a section.
	lowerSuffix := strings.ToLower(suffix)
	underscored := strings.ToLower(strings.ReplaceAll(suffix, " ", "_"))
	var matched []string
	for _, key := range orderedKeys {
		lower := strings.ToLower(key)
		if strings.HasSuffix(lower, lowerSuffix) || strings.HasSuffix(lower, underscored) {
			continue
		}
		if pattern.MatchString(key) {
			matched = append(matched, key)
		}
	}
	return matched, nil
}

func embeddedNumber(key string) int {
	m := firstNumberPattern.FindString(key)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func sectionName(nameSource, key string, value gjson.Result) string {
	switch nameSource {
	case "key_name":
		return truncate(key, maxChildNameLen)
	case "both":
		return truncate(key+": "+stringifyValue(value), maxChildNameLen)
	default: // key_value
		return truncate(stringifyValue(value), maxChildNameLen)
	}
}

// sectionContent looks up the companion content key: exact case-insensitive
// "{key} {suffix}", then the underscore-joined variant. Missing companion
// means empty content, not an error.
func sectionContent(byLowerKey map[string]gjson.Result, key, suffix string) string {
	if v, ok := byLowerKey[strings.ToLower(key+" "+suffix)]; ok {
		return stringifyValue(v)
	}
	underscored := strings.ReplaceAll(suffix, " ", "_")
	if v, ok := byLowerKey[strings.ToLower(key+"_"+underscored)]; ok {
		return stringifyValue(v)
	}
	return ""
}
