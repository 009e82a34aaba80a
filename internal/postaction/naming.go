package postaction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	counterPattern = regexp.MustCompile(`\{\{\s*n\s*\}\}`)
	datePattern    = regexp.MustCompile(`\{\{\s*date(?::([^}]+))?\s*\}\}`)
)

// expandName expands the naming-template codes a name_prefix may embed:
// {{n}} becomes the 1-based item number, {{date}} / {{date:FORMAT}} the
// current date. A prefix without codes gets " {n}" appended so repeated
// children stay distinguishable.
func expandName(prefix string, index int, now time.Time) string {
	if prefix == "" {
		return "Item " + strconv.Itoa(index+1)
	}

	hadCode := false
	name := counterPattern.ReplaceAllStringFunc(prefix, func(string) string {
		hadCode = true
		return strconv.Itoa(index + 1)
	})
	name = datePattern.ReplaceAllStringFunc(name, func(match string) string {
		hadCode = true
		sub := datePattern.FindStringSubmatch(match)
		return now.Format(dateLayout(sub[1]))
	})

	if hadCode {
		return name
	}
	return name + " " + strconv.Itoa(index+1)
}

// dateLayout converts the editor's date tokens (YYYY, MM, DD, HH, mm, ss)
// into a Go time layout.
func dateLayout(format string) string {
	if format == "" {
		return "2006-01-02"
	}
	r := strings.NewReplacer(
		"YYYY", "2006",
		"YY", "06",
		"MM", "01",
		"DD", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
	)
	return r.Replace(format)
}
