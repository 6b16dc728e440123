package usecase

import (
	"regexp"
	"strings"

	"lesson-pipeline/internal/domain/model"
)

// Matches {{ name }} first so the single-brace form never eats half of it.
var placeholderRE = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}\}|\{([A-Za-z_][A-Za-z0-9_.]*)\}`)

// FillTemplate replaces {{name}} and {name} placeholders with the stringified
// value from vars. Missing or nil values become the empty string.
func FillTemplate(tpl string, vars map[string]any) string {
	if tpl == "" || !strings.Contains(tpl, "{") {
		return tpl
	}
	return placeholderRE.ReplaceAllStringFunc(tpl, func(m string) string {
		sub := placeholderRE.FindStringSubmatch(m)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		v, ok := vars[name]
		if !ok {
			return ""
		}
		return model.StringFromAny(v)
	})
}
