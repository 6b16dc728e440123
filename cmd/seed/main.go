package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"lesson-pipeline/internal/config"
	"lesson-pipeline/internal/domain/model"
	pg "lesson-pipeline/internal/infra/db/postgres"
)

// seedFile is the YAML layout read by this command.
type seedFile struct {
	PromptProfiles []model.PromptProfile `yaml:"prompt_profiles"`
	ImageSpecs     []model.ImageSpec     `yaml:"image_specs"`
	Curricula      []model.Curriculum    `yaml:"curricula"`
	Jobs           []seedJob             `yaml:"jobs"`
}

type seedJob struct {
	Subject        string `yaml:"subject"`
	YearLevel      int    `yaml:"year_level"`
	Topic          string `yaml:"topic"`
	Subtopic       string `yaml:"subtopic"`
	Locale         string `yaml:"locale"`
	Profile        string `yaml:"prompt_profile_id"`
	ImagePackID    string `yaml:"image_pack_id"`
	GenerateImages bool   `yaml:"generate_images"`
	ImageTypes     string `yaml:"image_types"`
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	seedPath := flag.String("file", "deploy/seed.yaml", "path to YAML seed file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	raw, err := os.ReadFile(*seedPath)
	if err != nil {
		log.Fatalf("read seed: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		log.Fatalf("parse seed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	profiles := pg.NewPromptProfileRepo(pool)
	for i := range seed.PromptProfiles {
		p := &seed.PromptProfiles[i]
		if err := profiles.Save(ctx, nil, p); err != nil {
			log.Fatalf("save prompt profile %s: %v", p.ID, err)
		}
		fmt.Printf("  - prompt profile %s (%s)\n", p.ID, p.Name)
	}

	specs := pg.NewImageSpecRepo(pool)
	for i := range seed.ImageSpecs {
		s := &seed.ImageSpecs[i]
		if err := specs.Save(ctx, nil, s); err != nil {
			log.Fatalf("save image spec %s/%s: %v", s.ImagePackID, s.ImageType, err)
		}
		fmt.Printf("  - image spec %s/%s\n", s.ImagePackID, s.ImageType)
	}

	curricula := pg.NewCurriculumRepo(pool)
	for i := range seed.Curricula {
		c := &seed.Curricula[i]
		if err := curricula.Save(ctx, nil, c); err != nil {
			log.Fatalf("save curriculum %s: %v", c.ID, err)
		}
		fmt.Printf("  - curriculum %s (%s/%s)\n", c.ID, c.Locale, c.CountryCode)
	}

	jobs := pg.NewGenerationJobRepo(pool)
	for _, sj := range seed.Jobs {
		job, err := model.NewGenerationJob(ulid.Make().String(), sj.Subject, sj.YearLevel, sj.Topic, sj.Locale, sj.Profile)
		if err != nil {
			log.Fatalf("job %q: %v", sj.Topic, err)
		}
		job.Subtopic = sj.Subtopic
		job.ImagePackID = sj.ImagePackID
		job.GenerateImages = sj.GenerateImages
		job.ImageTypes = sj.ImageTypes
		if err := jobs.Create(ctx, nil, job); err != nil {
			log.Fatalf("enqueue job %q: %v", sj.Topic, err)
		}
		fmt.Printf("  - queued job %s (%s / %s)\n", job.ID, job.Subject, job.Topic)
	}

	fmt.Printf("seeded %d profiles, %d image specs, %d curricula, %d jobs\n",
		len(seed.PromptProfiles), len(seed.ImageSpecs), len(seed.Curricula), len(seed.Jobs))
}
