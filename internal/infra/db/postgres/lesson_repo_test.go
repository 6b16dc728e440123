//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/usecase"
)

func volcanoesWrapper() model.LessonWrapper {
	return model.WrapperFromMap(map[string]any{
		"title":       "Volcanoes",
		"summary":     "How volcanoes form.",
		"objectives":  []any{"Describe magma", "Name a volcano"},
		"explanation": "Magma rises through the crust.",
		"quiz": []any{
			map[string]any{"question": "What is lava?", "options": []any{"Molten rock", "Ice"}, "answer": "Molten rock"},
			map[string]any{"question": "Where is Etna?", "options": []any{"Italy", "Peru"}, "answer": "Italy"},
		},
	})
}

func TestLessonWriter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	lessons := NewLessonRepo(testPool)
	writer := usecase.NewLessonWriter(lessons, NewAssetJobRepo(testPool), NewCurriculumRepo(testPool), NewTxManager(testPool), 2)

	job, _ := model.NewGenerationJob("job-1", "Science", 3, "Volcanoes", "en-AU", "science-v1")

	t.Run("re-running a job replaces content items", func(t *testing.T) {
		cleanup(t)
		seedCurriculum(t, &model.Curriculum{ID: "au-v9", CountryCode: "AU", Name: "Australian Curriculum"})

		w := volcanoesWrapper()
		acts := usecase.ExtractActivities(w)
		first, err := writer.PersistLesson(ctx, job, w, acts)
		if err != nil {
			t.Fatalf("first persist: %v", err)
		}
		if first.Edition.CurriculumID != "au-v9" {
			t.Errorf("expected country fallback to au-v9, got %q", first.Edition.CurriculumID)
		}
		if _, err := writer.PersistLesson(ctx, job, w, acts); err != nil {
			t.Fatalf("second persist: %v", err)
		}

		items, err := lessons.ListContentItems(ctx, nil, first.Edition.ID)
		if err != nil {
			t.Fatalf("list items: %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("expected 3 items after re-run, got %d", len(items))
		}
		for i, it := range items {
			if it.OrderIndex != i || it.ID != model.ContentItemID(first.Edition.ID, i) {
				t.Errorf("item %d: order=%d id=%s", i, it.OrderIndex, it.ID)
			}
		}
		if items[0].Type != "learn" || items[1].Type != "multiple_choice" || items[2].Phase != "independent_practice" {
			t.Errorf("unexpected item shapes: %+v", items)
		}
		if items[1].Content["answer"] != "Molten rock" {
			t.Errorf("content not round-tripped: %+v", items[1].Content)
		}

		var editions int
		if err := testPool.QueryRow(ctx, `SELECT count(*) FROM lesson_editions`).Scan(&editions); err != nil {
			t.Fatal(err)
		}
		if editions != 1 {
			t.Errorf("expected a single edition row, got %d", editions)
		}
	})

	t.Run("shrinking lesson leaves no stale items", func(t *testing.T) {
		cleanup(t)
		seedCurriculum(t, &model.Curriculum{ID: "au-v9", Locale: "en-AU", Name: "Australian Curriculum"})

		w := volcanoesWrapper()
		ed, err := writer.PersistLesson(ctx, job, w, usecase.ExtractActivities(w))
		if err != nil {
			t.Fatalf("persist: %v", err)
		}
		short := model.WrapperFromMap(map[string]any{"title": "Volcanoes", "explanation": "Short."})
		if _, err := writer.PersistLesson(ctx, job, short, usecase.ExtractActivities(short)); err != nil {
			t.Fatalf("persist short: %v", err)
		}
		items, err := lessons.ListContentItems(ctx, nil, ed.Edition.ID)
		if err != nil {
			t.Fatalf("list items: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(items))
		}
	})

	t.Run("unresolved curriculum writes nothing", func(t *testing.T) {
		cleanup(t)
		w := volcanoesWrapper()
		_, err := writer.PersistLesson(ctx, job, w, usecase.ExtractActivities(w))
		if !errors.Is(err, domain.ErrCurriculumNotResolved) {
			t.Fatalf("expected ErrCurriculumNotResolved, got %v", err)
		}
		var templates int
		if err := testPool.QueryRow(ctx, `SELECT count(*) FROM lesson_templates`).Scan(&templates); err != nil {
			t.Fatal(err)
		}
		if templates != 0 {
			t.Errorf("expected no template rows, got %d", templates)
		}
	})

	t.Run("asset jobs accumulate across runs", func(t *testing.T) {
		cleanup(t)
		seedCurriculum(t, &model.Curriculum{ID: "au-v9", Locale: "en-AU"})
		w := volcanoesWrapper()
		p, err := writer.PersistLesson(ctx, job, w, usecase.ExtractActivities(w))
		if err != nil {
			t.Fatalf("persist: %v", err)
		}
		seed := int64(42)
		reqs := []model.AssetRequest{
			{ImageType: "hero", UsageTag: "hero", Role: model.AssetRoleHero, Prompt: "A volcano", Width: 1024, Height: 1024, Steps: 28, CFGScale: 5.5, Seed: &seed, ContentItemID: p.Items[0].ID},
			{ImageType: "quiz_bg", UsageTag: "quiz_bg", Prompt: "Lava", Width: 1024, Height: 1024, Steps: 28, CFGScale: 5.5},
		}
		for run := 0; run < 2; run++ {
			n, err := writer.InsertAssetJobs(ctx, job, p.Edition.ID, reqs)
			if err != nil || n != 2 {
				t.Fatalf("run %d: inserted %d, err %v", run, n, err)
			}
		}

		got, err := NewAssetJobRepo(testPool).ListByEdition(ctx, nil, p.Edition.ID)
		if err != nil {
			t.Fatalf("list asset jobs: %v", err)
		}
		if len(got) != 4 {
			t.Fatalf("expected 4 asset jobs, got %d", len(got))
		}
		hero := got[0]
		if hero.Status != model.AssetJobQueued || hero.Attempts != 0 || hero.SourceJobID != job.ID {
			t.Errorf("unexpected asset job: %+v", hero)
		}
		if hero.Seed == nil || *hero.Seed != 42 || hero.ContentItemID != p.Items[0].ID {
			t.Errorf("seed or item link lost: %+v", hero)
		}
	})
}

func TestLessonRepo_InsertContentItemsSingleStatement_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	cleanup(t)
	seedCurriculum(t, &model.Curriculum{ID: "au-v9", Locale: "en-AU"})

	repo := NewLessonRepo(testPool)
	if err := repo.UpsertTemplate(ctx, nil, &model.LessonTemplate{ID: "tpl", Subject: "Science", YearLevel: 3, Topic: "Volcanoes"}); err != nil {
		t.Fatalf("upsert template: %v", err)
	}
	if err := repo.UpsertEdition(ctx, nil, &model.LessonEdition{ID: "ed", TemplateID: "tpl", Locale: "en-AU", CurriculumID: "au-v9"}); err != nil {
		t.Fatalf("upsert edition: %v", err)
	}

	acts := make([]model.Activity, 120)
	for i := range acts {
		acts[i] = model.Activity{Type: "learn", Phase: "instruction", Content: map[string]any{"n": fmt.Sprint(i)}}
	}
	if err := repo.InsertContentItems(ctx, nil, model.BindActivities("ed", acts)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	items, err := repo.ListContentItems(ctx, nil, "ed")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 120 || items[119].OrderIndex != 119 || items[119].Content["n"] != "119" {
		t.Fatalf("unexpected items: len=%d", len(items))
	}
}
