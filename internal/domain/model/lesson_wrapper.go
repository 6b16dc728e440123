package model

import "strings"

// WrapperKind tells which representation a generated lesson uses.
type WrapperKind int

const (
	WrapperEmpty WrapperKind = iota
	WrapperActivityList
	WrapperLegacyFields
)

func (k WrapperKind) String() string {
	switch k {
	case WrapperActivityList:
		return "activity_list"
	case WrapperLegacyFields:
		return "legacy_fields"
	default:
		return "empty"
	}
}

// ActivityListWrapper is the current lesson shape: an explicit ordered list.
type ActivityListWrapper struct {
	Activities []map[string]any
}

// LegacyFieldWrapper is the older shape built from fixed named sections.
type LegacyFieldWrapper struct {
	RealWorldApplication any
	Explanation          any
	WorkedExample        any
	Scenarios            []map[string]any
	Quiz                 []map[string]any
}

// LessonWrapper is the parsed output of the generation step. Exactly one of
// ActivityList or Legacy is set unless Kind is WrapperEmpty.
type LessonWrapper struct {
	Kind       WrapperKind
	Title      string
	Summary    string
	Objectives []string
	AssetPlan  map[string]any

	ActivityList *ActivityListWrapper
	Legacy       *LegacyFieldWrapper

	Raw map[string]any
}

// WrapperFromMap classifies a decoded JSON object. A non-empty "activities"
// list always wins over the legacy sections.
func WrapperFromMap(m map[string]any) LessonWrapper {
	w := LessonWrapper{Raw: m}
	if m == nil {
		return w
	}
	w.Title = strings.TrimSpace(StringFromAny(m["title"]))
	w.Summary = strings.TrimSpace(StringFromAny(m["summary"]))
	w.Objectives = StringSliceFromAny(m["objectives"])
	if ap, ok := m["asset_plan"].(map[string]any); ok && len(ap) > 0 {
		w.AssetPlan = ap
	}

	if acts := objectsFromAny(m["activities"]); len(acts) > 0 {
		w.Kind = WrapperActivityList
		w.ActivityList = &ActivityListWrapper{Activities: acts}
		return w
	}

	legacy := &LegacyFieldWrapper{
		RealWorldApplication: present(m["real_world_application"]),
		Explanation:          present(m["explanation"]),
		WorkedExample:        present(m["worked_example"]),
		Scenarios:            objectsFromAny(m["scenarios"]),
		Quiz:                 objectsFromAny(m["quiz"]),
	}
	if legacy.RealWorldApplication != nil || legacy.Explanation != nil || legacy.WorkedExample != nil ||
		len(legacy.Scenarios) > 0 || len(legacy.Quiz) > 0 {
		w.Kind = WrapperLegacyFields
		w.Legacy = legacy
	}
	return w
}

// present drops nil, blank strings and empty containers.
func present(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
	case map[string]any:
		if len(x) == 0 {
			return nil
		}
	case []any:
		if len(x) == 0 {
			return nil
		}
	}
	return v
}

func objectsFromAny(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		if m, ok := it.(map[string]any); ok && m != nil {
			out = append(out, m)
		}
	}
	return out
}
