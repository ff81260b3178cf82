package handler

import (
	"log/slog"

	"github.com/safeart/postercheck/internal/coordinator"
	"github.com/safeart/postercheck/internal/jobstore"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Coordinator *coordinator.Coordinator
	Store       jobstore.Store
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger      *slog.Logger
	coordinator *coordinator.Coordinator
	store       jobstore.Store
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:      deps.Logger,
		coordinator: deps.Coordinator,
		store:       deps.Store,
	}
}
