package model

import "time"

const (
	DefaultImageWidth  = 1024
	DefaultImageHeight = 1024
	DefaultImageSteps  = 28
	DefaultCFGScale    = 5.5

	AssetRoleHero = "hero"
)

type AssetJobStatus string

const AssetJobQueued AssetJobStatus = "queued"

// AssetRequest describes one image to generate.
type AssetRequest struct {
	ImageType      string
	UsageTag       string
	Role           string
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	CFGScale       float64
	Sampler        string
	Seed           *int64
	Workflow       string
	ContentItemID  string
}

// AssetJob is a persisted AssetRequest waiting for the image worker.
// The linked content item is the embedded request's ContentItemID.
type AssetJob struct {
	ID          string
	EditionID   string
	SourceJobID string
	AssetRequest
	Status    AssetJobStatus
	Attempts  int
	CreatedAt time.Time
}

// ImageSpec holds per (image pack, image type) defaults for template-driven images.
type ImageSpec struct {
	ImagePackID    string   `yaml:"image_pack_id"`
	ImageType      string   `yaml:"image_type"`
	PromptTemplate string   `yaml:"prompt_template"`
	NegativePrompt string   `yaml:"negative_prompt"`
	Width          *int     `yaml:"width"`
	Height         *int     `yaml:"height"`
	Steps          *int     `yaml:"steps"`
	CFGScale       *float64 `yaml:"cfg_scale"`
	Sampler        string   `yaml:"sampler"`
	Workflow       string   `yaml:"workflow"`
}

// Curriculum groups editions by locale/country.
type Curriculum struct {
	ID          string `yaml:"id"`
	Locale      string `yaml:"locale"`
	CountryCode string `yaml:"country_code"`
	Name        string `yaml:"name"`
}
