package usecase

import (
	"fmt"
	"strings"
	"unicode"

	"lesson-pipeline/internal/domain/model"
)

// TemplateIDFor returns the job's explicit template id or derives a stable
// one from subject, year level, topic and subtopic.
func TemplateIDFor(job *model.GenerationJob) string {
	if id := strings.TrimSpace(job.TemplateID); id != "" {
		return id
	}
	id := fmt.Sprintf("tpl_%s_y%d_%s", slug(job.Subject), job.YearLevel, slug(job.Topic))
	if s := slug(job.Subtopic); s != "" {
		id += "_" + s
	}
	return id
}

// EditionIDFor is the localized edition of a template.
func EditionIDFor(templateID, locale string) string {
	l := slug(locale)
	if l == "" {
		l = "default"
	}
	return templateID + "__" + l
}

func slug(s string) string {
	var sb strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && sb.Len() > 0 {
			sb.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}
