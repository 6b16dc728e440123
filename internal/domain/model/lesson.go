package model

import (
	"fmt"
	"time"
)

// LessonTemplate is the canonical identity of a lesson, shared by its editions.
type LessonTemplate struct {
	ID        string
	Subject   string
	YearLevel int
	Topic     string
	Subtopic  string
	Title     string
	UpdatedAt time.Time
}

// LessonEdition is a localized instance of a template.
type LessonEdition struct {
	ID           string
	TemplateID   string
	Locale       string
	CurriculumID string
	Title        string
	Summary      string
	Objectives   []string
	SourceJobID  string
	UpdatedAt    time.Time
}

// Activity is one normalized unit of lesson body before it is bound to an edition.
type Activity struct {
	Type    string
	Phase   string
	Title   *string
	Content map[string]any
}

// ContentItem is an Activity placed at a fixed position within an edition.
type ContentItem struct {
	ID         string
	EditionID  string
	OrderIndex int
	Phase      string
	Type       string
	Title      *string
	Content    map[string]any
}

// ContentItemID derives the stable id of the item at index within an edition.
func ContentItemID(editionID string, index int) string {
	return fmt.Sprintf("%s_%03d", editionID, index)
}

// BindActivities assigns dense zero-based order indexes and derived ids.
func BindActivities(editionID string, acts []Activity) []ContentItem {
	items := make([]ContentItem, 0, len(acts))
	for i, a := range acts {
		items = append(items, ContentItem{
			ID:         ContentItemID(editionID, i),
			EditionID:  editionID,
			OrderIndex: i,
			Phase:      a.Phase,
			Type:       a.Type,
			Title:      a.Title,
			Content:    a.Content,
		})
	}
	return items
}
