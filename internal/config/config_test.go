package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := Parse([]byte("database:\n  url: postgres://localhost/lessons\n"), false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Worker.BatchSize != 10 || cfg.Worker.MaxBatchSize != 50 || cfg.Worker.Concurrency != 1 {
		t.Fatalf("unexpected worker defaults: %+v", cfg.Worker)
	}
	if cfg.Worker.JobTimeout != 5*time.Minute || cfg.Worker.ContentChunkSize != 50 {
		t.Fatalf("unexpected worker defaults: %+v", cfg.Worker)
	}
	if cfg.AI.DefaultModel != "gpt-4o-mini" || cfg.Log.Level != "info" || cfg.API.Port != 8080 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/lessons")
	cfg, err := Parse([]byte("database:\n  url: postgres://file/lessons\nworker:\n  job_timeout: 90s\n"), true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Database.URL != "postgres://env/lessons" {
		t.Fatalf("env should override file: %s", cfg.Database.URL)
	}
	if cfg.Worker.JobTimeout != 90*time.Second || !cfg.Runtime.Dev {
		t.Fatalf("unexpected values: %+v %+v", cfg.Worker, cfg.Runtime)
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"missing database url", "log:\n  level: debug\n", "Database.URL"},
		{"batch larger than max", "database:\n  url: x\nworker:\n  batch_size: 80\n  max_batch_size: 20\n", "MaxBatchSize"},
		{"concurrency too high", "database:\n  url: x\nworker:\n  concurrency: 500\n", "Concurrency"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), false)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}
