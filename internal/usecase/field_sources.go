package usecase

import (
	"encoding/json"
	"strings"

	"lesson-pipeline/internal/domain/model"
)

// Source keys per target field, highest priority first. Historical plan and
// spec payloads used several names for the same thing.
var (
	imageTypeSources = []string{"image_type", "type", "usage", "usage_tag", "kind"}
	usageTagSources  = []string{"usage_tag", "usage", "image_type", "type", "kind"}
	promptSources    = []string{"prompt", "positive_prompt", "image_prompt"}
	negativeSources  = []string{"negative_prompt", "negative", "neg_prompt"}
	widthSources     = []string{"width", "w"}
	heightSources    = []string{"height", "h"}
	stepsSources     = []string{"steps", "num_steps", "sampling_steps"}
	cfgSources       = []string{"cfg_scale", "cfg", "guidance_scale"}
	samplerSources   = []string{"sampler", "sampler_name"}
	seedSources      = []string{"seed"}
	workflowSources  = []string{"workflow", "comfyui_workflow"}
)

// resolveString returns the first non-blank string value among keys.
func resolveString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(model.StringFromAny(m[k])); s != "" {
			return s
		}
	}
	return ""
}

// resolveText is resolveString that also keeps object and list values as
// compact JSON, the shape ComfyUI workflow graphs arrive in.
func resolveText(m map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case map[string]any, []any:
			if b, err := json.Marshal(v); err == nil && string(b) != "{}" && string(b) != "[]" {
				return string(b)
			}
		default:
			if s := strings.TrimSpace(model.StringFromAny(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func resolveInt(m map[string]any, keys []string) (int, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if i, ok := model.IntFromAny(v); ok {
				return i, true
			}
		}
	}
	return 0, false
}

func resolveFloat(m map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if f, ok := model.FloatFromAny(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}
