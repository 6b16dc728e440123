package apiv1

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/repository"
	"lesson-pipeline/internal/infra/api"
	"lesson-pipeline/internal/infra/logging"
	"lesson-pipeline/internal/infra/worker"
)

// BatchRunner runs one "next batch" of queued jobs.
type BatchRunner interface {
	RunBatch(ctx context.Context, limit int) (worker.BatchResult, error)
}

// JobReader is the read side of the job store.
type JobReader interface {
	FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error)
}

type Server struct {
	runner BatchRunner
	jobs   JobReader
	log    *zerolog.Logger
}

func NewServer(runner BatchRunner, jobs JobReader, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "APIv1").Logger()
	return &Server{runner: runner, jobs: jobs, log: &l}
}

// RegisterAPIV1 mounts the lesson job routes behind auth.
func RegisterAPIV1(r chi.Router, s *Server, auth api.Middleware) {
	r.Route("/api/v1/lesson-jobs", func(r chi.Router) {
		if auth != nil {
			r.Use(auth)
		}
		r.Post("/run-batch", s.runBatch)
		r.Get("/{id}", s.getJob)
	})
}

type BatchResponse struct {
	BatchID     string `json:"batch_id"`
	Processed   int    `json:"processed"`
	OKCount     int    `json:"ok_count"`
	FailedCount int    `json:"failed_count"`
}

type JobResponse struct {
	ID               string               `json:"id"`
	Status           string               `json:"status"`
	Attempts         int                  `json:"attempts"`
	Subject          string               `json:"subject"`
	YearLevel        int                  `json:"year_level"`
	Topic            string               `json:"topic"`
	Locale           string               `json:"locale"`
	EditionID        string               `json:"edition_id,omitempty"`
	ImageStatus      string               `json:"image_status"`
	FailureKind      string               `json:"failure_kind,omitempty"`
	LastError        string               `json:"last_error,omitempty"`
	ErrorMessage     string               `json:"error_message,omitempty"`
	ValidationErrors []domain.ErrorDetail `json:"validation_errors,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	FinishedAt       *time.Time           `json:"finished_at,omitempty"`
}

func (s *Server) runBatch(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	// The batch outlives the request: a client or proxy timeout must not fail claimed jobs.
	res, err := s.runner.RunBatch(context.WithoutCancel(r.Context()), limit)
	if err != nil {
		if errors.Is(err, domain.ErrBatchInProgress) {
			api.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Msg("run batch failed")
		api.WriteError(w, http.StatusInternalServerError, "batch failed")
		return
	}
	api.WriteJSON(w, http.StatusOK, BatchResponse{
		BatchID:     res.BatchID,
		Processed:   res.Processed,
		OKCount:     res.OKCount,
		FailedCount: res.FailedCount,
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.jobs.FindByID(r.Context(), nil, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			api.WriteError(w, http.StatusNotFound, "job not found")
			return
		}
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("job_id", id).Msg("load job failed")
		api.WriteError(w, http.StatusInternalServerError, "load job failed")
		return
	}
	api.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

func toJobResponse(j *model.GenerationJob) JobResponse {
	return JobResponse{
		ID:               j.ID,
		Status:           string(j.Status),
		Attempts:         j.Attempts,
		Subject:          j.Subject,
		YearLevel:        j.YearLevel,
		Topic:            j.Topic,
		Locale:           j.Locale,
		EditionID:        j.EditionID,
		ImageStatus:      string(j.ImageStatus),
		FailureKind:      string(j.FailureKind),
		LastError:        j.LastError,
		ErrorMessage:     j.ErrorMessage,
		ValidationErrors: j.ValidationErrors,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		FinishedAt:       j.FinishedAt,
	}
}
