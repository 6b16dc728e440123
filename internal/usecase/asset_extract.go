package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"lesson-pipeline/internal/domain/model"
)

const genericImagePromptTemplate = "{{subject}} {{topic}}"

var heroRE = regexp.MustCompile(`(?i)hook|cover|hero`)

// SpecLookup returns the image spec for an image type within the job's image
// pack, or nil when none is configured.
type SpecLookup func(imageType string) (*model.ImageSpec, error)

// AssetSource names the strategy that produced a set of asset requests.
type AssetSource string

const (
	AssetSourceNone         AssetSource = "none"
	AssetSourceExplicitPlan AssetSource = "explicit_plan"
	AssetSourceWrapperPlan  AssetSource = "wrapper_plan"
	AssetSourceTemplates    AssetSource = "templates"
)

// ExtractAssetRequests derives image requests for a job, trying the explicit
// job plan, then the plan declared by the generated lesson, then the job's
// image type templates. The first strategy that yields a request wins. Hero
// requests are linked to firstItemID.
func ExtractAssetRequests(job *model.GenerationJob, w model.LessonWrapper, lookup SpecLookup, firstItemID string) ([]model.AssetRequest, AssetSource, error) {
	reqs, src := fromExplicitPlan(job.AssetPlan), AssetSourceExplicitPlan
	if len(reqs) == 0 {
		reqs, src = fromWrapperPlan(w.AssetPlan), AssetSourceWrapperPlan
	}
	if len(reqs) == 0 {
		var err error
		reqs, err = fromTemplates(job, lookup)
		if err != nil {
			return nil, AssetSourceNone, err
		}
		src = AssetSourceTemplates
	}
	if len(reqs) == 0 {
		return nil, AssetSourceNone, nil
	}

	for i := range reqs {
		r := &reqs[i]
		if heroRE.MatchString(r.ImageType) || heroRE.MatchString(r.UsageTag) {
			r.Role = model.AssetRoleHero
			r.ContentItemID = firstItemID
		}
	}
	return reqs, src, nil
}

// fromExplicitPlan accepts either a JSON list or an object with an "items"
// list. Entries without a type/usage tag or a prompt are skipped.
func fromExplicitPlan(raw json.RawMessage) []model.AssetRequest {
	if len(raw) == 0 {
		return nil
	}
	var plan any
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil
	}
	var entries []any
	switch p := plan.(type) {
	case []any:
		entries = p
	case map[string]any:
		entries, _ = p["items"].([]any)
	}

	var out []model.AssetRequest
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if r, ok := requestFromEntry(m, ""); ok {
			out = append(out, r)
		}
	}
	return out
}

// fromWrapperPlan reads {usage_tag: prompt | {prompt, overrides...} | [...]}.
func fromWrapperPlan(plan map[string]any) []model.AssetRequest {
	if len(plan) == 0 {
		return nil
	}
	// map iteration order is random; keep output stable
	keys := make([]string, 0, len(plan))
	for k := range plan {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []model.AssetRequest
	for _, usage := range keys {
		values, ok := plan[usage].([]any)
		if !ok {
			values = []any{plan[usage]}
		}
		for _, v := range values {
			var entry map[string]any
			switch x := v.(type) {
			case string:
				entry = map[string]any{"prompt": x}
			case map[string]any:
				entry = x
			default:
				continue
			}
			if r, ok := requestFromEntry(entry, usage); ok {
				out = append(out, r)
			}
		}
	}
	return out
}

func fromTemplates(job *model.GenerationJob, lookup SpecLookup) ([]model.AssetRequest, error) {
	if !job.GenerateImages {
		return nil, nil
	}
	vars := job.Vars()
	var out []model.AssetRequest
	for _, typ := range job.ImageTypeList() {
		var spec *model.ImageSpec
		if lookup != nil {
			s, err := lookup(typ)
			if err != nil {
				return nil, fmt.Errorf("image spec %s/%s: %w", job.ImagePackID, typ, err)
			}
			spec = s
		}
		r := model.AssetRequest{ImageType: typ, UsageTag: typ}
		tpl := genericImagePromptTemplate
		if spec != nil {
			if strings.TrimSpace(spec.PromptTemplate) != "" {
				tpl = spec.PromptTemplate
			}
			r.NegativePrompt = FillTemplate(spec.NegativePrompt, vars)
			r.Sampler = spec.Sampler
			r.Workflow = spec.Workflow
			if spec.Width != nil {
				r.Width = *spec.Width
			}
			if spec.Height != nil {
				r.Height = *spec.Height
			}
			if spec.Steps != nil {
				r.Steps = *spec.Steps
			}
			if spec.CFGScale != nil {
				r.CFGScale = *spec.CFGScale
			}
		}
		r.Prompt = strings.TrimSpace(FillTemplate(tpl, vars))
		applyImageDefaults(&r)
		out = append(out, r)
	}
	return out, nil
}

// requestFromEntry maps one plan entry; fallbackUsage is the wrapper plan key.
func requestFromEntry(m map[string]any, fallbackUsage string) (model.AssetRequest, bool) {
	r := model.AssetRequest{
		ImageType:      resolveString(m, imageTypeSources),
		UsageTag:       resolveString(m, usageTagSources),
		Prompt:         resolveString(m, promptSources),
		NegativePrompt: resolveString(m, negativeSources),
		Sampler:        resolveString(m, samplerSources),
		Workflow:       resolveText(m, workflowSources),
	}
	if fallbackUsage != "" {
		r.UsageTag = fallbackUsage
		if r.ImageType == "" {
			r.ImageType = fallbackUsage
		}
	}
	if r.ImageType == "" {
		r.ImageType = r.UsageTag
	}
	if r.UsageTag == "" {
		r.UsageTag = r.ImageType
	}
	if r.ImageType == "" || r.Prompt == "" {
		return model.AssetRequest{}, false
	}

	if v, ok := resolveInt(m, widthSources); ok {
		r.Width = v
	}
	if v, ok := resolveInt(m, heightSources); ok {
		r.Height = v
	}
	if v, ok := resolveInt(m, stepsSources); ok {
		r.Steps = v
	}
	if v, ok := resolveFloat(m, cfgSources); ok {
		r.CFGScale = v
	}
	if v, ok := resolveInt(m, seedSources); ok {
		seed := int64(v)
		r.Seed = &seed
	}
	applyImageDefaults(&r)
	return r, true
}

func applyImageDefaults(r *model.AssetRequest) {
	if r.Width <= 0 {
		r.Width = model.DefaultImageWidth
	}
	if r.Height <= 0 {
		r.Height = model.DefaultImageHeight
	}
	if r.Steps <= 0 {
		r.Steps = model.DefaultImageSteps
	}
	if r.CFGScale <= 0 {
		r.CFGScale = model.DefaultCFGScale
	}
}
