package usecase

import (
	"strings"

	"lesson-pipeline/internal/domain/model"
)

const (
	defaultActivityType  = "learn"
	defaultActivityPhase = "instruction"

	phaseHook                = "hook"
	phaseInstruction         = "instruction"
	phaseGuidedPractice      = "guided_practice"
	phaseIndependentPractice = "independent_practice"
)

// ExtractActivities turns a validated wrapper into the ordered activity stream.
// An explicit activities list is mapped one to one; otherwise the legacy
// sections are expanded in fixed order.
func ExtractActivities(w model.LessonWrapper) []model.Activity {
	switch w.Kind {
	case model.WrapperActivityList:
		return fromActivityList(w.ActivityList)
	case model.WrapperLegacyFields:
		return fromLegacyFields(w.Legacy)
	default:
		return nil
	}
}

func fromActivityList(al *model.ActivityListWrapper) []model.Activity {
	out := make([]model.Activity, 0, len(al.Activities))
	for _, e := range al.Activities {
		a := model.Activity{
			Type:  normalizeToken(model.StringFromAny(e["type"])),
			Phase: normalizeToken(model.StringFromAny(e["phase"])),
			Title: optionalTitle(e["title"]),
		}
		if a.Type == "" {
			a.Type = defaultActivityType
		}
		if a.Phase == "" {
			a.Phase = defaultActivityPhase
		}
		if c, ok := e["content"].(map[string]any); ok {
			a.Content = c
		} else {
			a.Content = without(e, "type", "phase", "title")
		}
		out = append(out, a)
	}
	return out
}

func fromLegacyFields(l *model.LegacyFieldWrapper) []model.Activity {
	var out []model.Activity
	if l.RealWorldApplication != nil {
		out = append(out, sectionActivity("observation", phaseHook, l.RealWorldApplication))
	}
	if l.Explanation != nil {
		out = append(out, sectionActivity("learn", phaseInstruction, l.Explanation))
	}
	if l.WorkedExample != nil {
		out = append(out, sectionActivity("worked_example", phaseGuidedPractice, l.WorkedExample))
	}
	for _, sc := range l.Scenarios {
		out = append(out, model.Activity{
			Type:    "scenario",
			Phase:   phaseGuidedPractice,
			Title:   optionalTitle(sc["title"]),
			Content: without(sc, "title", "questions"),
		})
		for _, q := range scenarioQuestions(sc["questions"]) {
			out = append(out, model.Activity{
				Type:    "fill_blank",
				Phase:   phaseGuidedPractice,
				Content: q,
			})
		}
	}
	for _, q := range l.Quiz {
		out = append(out, model.Activity{
			Type:    "multiple_choice",
			Phase:   phaseIndependentPractice,
			Content: q,
		})
	}
	return out
}

// sectionActivity wraps a legacy section that may be plain text or an object.
func sectionActivity(typ, phase string, v any) model.Activity {
	a := model.Activity{Type: typ, Phase: phase}
	if m, ok := v.(map[string]any); ok {
		a.Title = optionalTitle(m["title"])
		a.Content = without(m, "title")
		return a
	}
	a.Content = map[string]any{"text": v}
	return a
}

func scenarioQuestions(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		switch q := it.(type) {
		case map[string]any:
			out = append(out, q)
		case string:
			if strings.TrimSpace(q) != "" {
				out = append(out, map[string]any{"prompt": q})
			}
		}
	}
	return out
}

func optionalTitle(v any) *string {
	s := strings.TrimSpace(model.StringFromAny(v))
	if s == "" {
		return nil
	}
	return &s
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// without returns a shallow copy of m minus keys.
func without(m map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
