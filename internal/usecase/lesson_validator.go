package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"lesson-pipeline/internal/domain"
)

// ValidationResult is the outcome of checking one parsed lesson.
type ValidationResult struct {
	OK     bool
	Errors []domain.ErrorDetail
}

// LessonValidator checks a parsed lesson object against the content schema.
type LessonValidator interface {
	Validate(obj map[string]any) ValidationResult
	FormatErrors(errs []domain.ErrorDetail) string
}

var _ LessonValidator = (*schemaValidator)(nil)

// The documents below are the lesson content schema. They are only used for
// validation; normalisation works on the loose map form.
type lessonDoc struct {
	Title                string         `json:"title" validate:"max=200"`
	Summary              string         `json:"summary" validate:"max=2000"`
	Objectives           []string       `json:"objectives"`
	Activities           []activityDoc  `json:"activities" validate:"dive"`
	Explanation          any            `json:"explanation"`
	WorkedExample        any            `json:"worked_example"`
	RealWorldApplication any            `json:"real_world_application"`
	Scenarios            []scenarioDoc  `json:"scenarios" validate:"dive"`
	Quiz                 []quizDoc      `json:"quiz" validate:"dive"`
	AssetPlan            map[string]any `json:"asset_plan"`
}

type activityDoc struct {
	Type  string `json:"type" validate:"omitempty,max=64,token"`
	Phase string `json:"phase" validate:"omitempty,max=64,token"`
	Title string `json:"title" validate:"max=200"`
}

type scenarioDoc struct {
	Title       string                `json:"title"`
	Context     string                `json:"context"`
	Description string                `json:"description"`
	Questions   []scenarioQuestionDoc `json:"questions" validate:"dive"`
}

type scenarioQuestionDoc struct {
	Prompt   string `json:"prompt"`
	Question string `json:"question"`
	Answer   any    `json:"answer"`
}

type quizDoc struct {
	Question string `json:"question" validate:"required"`
	Options  []any  `json:"options" validate:"min=2"`
	Answer   any    `json:"answer"`
}

var tokenRE = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

type schemaValidator struct {
	v *validator.Validate
}

func NewLessonValidator() *schemaValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("token", func(fl validator.FieldLevel) bool {
		return tokenRE.MatchString(fl.Field().String())
	})
	v.RegisterStructValidation(validateLessonBody, lessonDoc{})
	v.RegisterStructValidation(validateScenario, scenarioDoc{})
	v.RegisterStructValidation(validateScenarioQuestion, scenarioQuestionDoc{})
	v.RegisterStructValidation(validateQuizAnswer, quizDoc{})
	return &schemaValidator{v: v}
}

func (s *schemaValidator) Validate(obj map[string]any) ValidationResult {
	if obj == nil {
		return ValidationResult{Errors: []domain.ErrorDetail{{Path: "$", Message: "output is not a JSON object"}}}
	}

	var errs []domain.ErrorDetail
	var doc lessonDoc
	b, err := json.Marshal(obj)
	if err != nil {
		return ValidationResult{Errors: []domain.ErrorDetail{{Path: "$", Message: err.Error()}}}
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		errs = append(errs, decodeErrorDetail(err))
	}

	if err := s.v.Struct(doc); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, domain.ErrorDetail{Path: fieldPath(fe), Message: fieldMessage(fe)})
			}
		} else {
			errs = append(errs, domain.ErrorDetail{Path: "$", Message: err.Error()})
		}
	}
	return ValidationResult{OK: len(errs) == 0, Errors: errs}
}

// FormatErrors renders details as one "- path: message" line each, the form
// embedded into the repair prompt.
func (s *schemaValidator) FormatErrors(errs []domain.ErrorDetail) string {
	var sb strings.Builder
	for i, e := range errs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(e.Path)
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}

func validateLessonBody(sl validator.StructLevel) {
	doc := sl.Current().Interface().(lessonDoc)
	if len(doc.Activities) > 0 || len(doc.Scenarios) > 0 || len(doc.Quiz) > 0 {
		return
	}
	for _, v := range []any{doc.Explanation, doc.WorkedExample, doc.RealWorldApplication} {
		if !blank(v) {
			return
		}
	}
	sl.ReportError(doc.Activities, "activities", "Activities", "body", "")
}

func validateScenario(sl validator.StructLevel) {
	sc := sl.Current().Interface().(scenarioDoc)
	if strings.TrimSpace(sc.Context) == "" && strings.TrimSpace(sc.Description) == "" {
		sl.ReportError(sc.Context, "context", "Context", "scenario_context", "")
	}
}

func validateScenarioQuestion(sl validator.StructLevel) {
	q := sl.Current().Interface().(scenarioQuestionDoc)
	if strings.TrimSpace(q.Prompt) == "" && strings.TrimSpace(q.Question) == "" {
		sl.ReportError(q.Prompt, "prompt", "Prompt", "question_prompt", "")
	}
	if blank(q.Answer) {
		sl.ReportError(q.Answer, "answer", "Answer", "answer", "")
	}
}

func validateQuizAnswer(sl validator.StructLevel) {
	q := sl.Current().Interface().(quizDoc)
	if blank(q.Answer) {
		sl.ReportError(q.Answer, "answer", "Answer", "answer", "")
	}
}

func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	// drop the root struct name ("lessonDoc.")
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		return "$"
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "token":
		return "must be a lower_snake token such as multiple_choice"
	case "body":
		return "lesson needs a non-empty activities list or at least one of explanation, worked_example, real_world_application, scenarios, quiz"
	case "scenario_context":
		return "scenario needs a context or description"
	case "question_prompt":
		return "question needs a prompt"
	case "answer":
		return "answer is required"
	}
	return "failed " + fe.Tag() + " check"
}

func decodeErrorDetail(err error) domain.ErrorDetail {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		path := typeErr.Field
		if path == "" {
			path = "$"
		}
		return domain.ErrorDetail{
			Path:    path,
			Message: fmt.Sprintf("expected %s, got %s", jsonKind(typeErr.Type), typeErr.Value),
		}
	}
	return domain.ErrorDetail{Path: "$", Message: err.Error()}
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int64, reflect.Float64:
		return "number"
	}
	return t.String()
}
