package model

import (
	"encoding/json"
	"strings"
	"time"

	"lesson-pipeline/internal/domain"
)

type GenerationJobStatus string

const (
	GenerationJobQueued    GenerationJobStatus = "queued"
	GenerationJobRunning   GenerationJobStatus = "running"
	GenerationJobCompleted GenerationJobStatus = "completed"
	GenerationJobFailed    GenerationJobStatus = "failed"
)

// ImageStatus reports whether a completed job queued any asset jobs.
type ImageStatus string

const (
	ImageStatusNone   ImageStatus = "none"
	ImageStatusQueued ImageStatus = "queued"
)

// FailureKind classifies why a job ended up failed. It is informational only;
// every claim counts as one attempt regardless of kind.
type FailureKind string

const (
	FailureTransport   FailureKind = "transport"
	FailureValidation  FailureKind = "validation"
	FailureResolution  FailureKind = "resolution"
	FailurePersistence FailureKind = "persistence"
	FailureTimeout     FailureKind = "timeout"
	FailureInternal    FailureKind = "internal"
)

// GenerationJob is one queued request to generate a lesson.
type GenerationJob struct {
	ID              string
	Subject         string
	YearLevel       int
	Topic           string
	Subtopic        string
	Locale          string
	PromptProfileID string
	TemplateID      string // optional explicit template identity

	// AssetPlan is the raw explicit asset plan, either a JSON list or an
	// object with an "items" list. Empty when the job carries no plan.
	AssetPlan      json.RawMessage
	ImagePackID    string
	GenerateImages bool
	ImageTypes     string // comma separated

	Status           GenerationJobStatus
	Attempts         int
	LastError        string
	ErrorMessage     string
	FailureKind      FailureKind
	ValidationErrors []domain.ErrorDetail
	EditionID        string
	ImageStatus      ImageStatus

	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// NewGenerationJob validates and constructs a queued job.
func NewGenerationJob(id, subject string, yearLevel int, topic, locale, profileID string) (*GenerationJob, error) {
	if id == "" || strings.TrimSpace(subject) == "" || strings.TrimSpace(topic) == "" || profileID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if locale == "" {
		locale = "en"
	}
	now := time.Now()
	return &GenerationJob{
		ID:              id,
		Subject:         subject,
		YearLevel:       yearLevel,
		Topic:           topic,
		Locale:          locale,
		PromptProfileID: profileID,
		Status:          GenerationJobQueued,
		ImageStatus:     ImageStatusNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Vars returns the flat variable mapping used for prompt and image templates.
func (j *GenerationJob) Vars() map[string]any {
	return map[string]any{
		"job_id":     j.ID,
		"subject":    j.Subject,
		"year_level": j.YearLevel,
		"year":       j.YearLevel,
		"grade":      j.YearLevel,
		"topic":      j.Topic,
		"subtopic":   j.Subtopic,
		"locale":     j.Locale,
	}
}

// ImageTypeList splits ImageTypes on commas, dropping blanks.
func (j *GenerationJob) ImageTypeList() []string {
	var out []string
	for _, t := range strings.Split(j.ImageTypes, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// MarkCompleted records a successful run.
func (j *GenerationJob) MarkCompleted(editionID string, assetJobs int, at time.Time) {
	j.Status = GenerationJobCompleted
	j.EditionID = editionID
	j.ImageStatus = ImageStatusNone
	if assetJobs > 0 {
		j.ImageStatus = ImageStatusQueued
	}
	j.LastError = ""
	j.ErrorMessage = ""
	j.FailureKind = ""
	j.ValidationErrors = nil
	j.UpdatedAt = at
	j.FinishedAt = &at
}

// MarkFailed records a failed run. The message is stored under both error
// fields since older readers only know error_message.
func (j *GenerationJob) MarkFailed(kind FailureKind, msg string, details []domain.ErrorDetail, at time.Time) {
	j.Status = GenerationJobFailed
	j.LastError = msg
	j.ErrorMessage = msg
	j.FailureKind = kind
	j.ValidationErrors = details
	j.UpdatedAt = at
	j.FinishedAt = &at
}

func (j *GenerationJob) IsTerminal() bool {
	return j.Status == GenerationJobCompleted || j.Status == GenerationJobFailed
}
