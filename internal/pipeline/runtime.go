package pipeline

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JaimeStill/salesflow/internal/audit"
	"github.com/JaimeStill/salesflow/internal/config"
	"github.com/JaimeStill/salesflow/internal/gold"
	"github.com/JaimeStill/salesflow/internal/infrastructure"
	"github.com/JaimeStill/salesflow/internal/metrics"
	"github.com/JaimeStill/salesflow/internal/silver"
	"github.com/JaimeStill/salesflow/pkg/database"
	"github.com/JaimeStill/salesflow/pkg/storage"
)

// Runtime bundles the dependencies that stages require.
// Database and Storage are nil when their sinks are disabled.
type Runtime struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Recorder
	Database database.System
	Storage  storage.System
}

// NewRuntime builds a Runtime from the assembled infrastructure.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Config:   cfg,
		Logger:   infra.Logger.With(zap.String("system", "pipeline")),
		Metrics:  infra.Metrics,
		Database: infra.Database,
		Storage:  infra.Storage,
	}
}

// State carries results between stages of one run.
type State struct {
	RunID uuid.UUID
	Now   time.Time

	Silver           *silver.Summary
	SilverValidation *Validation
	Gold             *gold.Result
	GoldValidation   *Validation
	Audit            *audit.Report
	TrendAdded       bool
	Loaded           int64
	Published        []string

	issues []*QualityError
}

// NewState starts a run at the given reference time.
func NewState(now time.Time) *State {
	return &State{RunID: uuid.New(), Now: now}
}

// Issues returns the quality failures recorded so far.
func (s *State) Issues() []*QualityError {
	return s.issues
}

// Failed reports whether any stage recorded a quality failure.
func (s *State) Failed() bool {
	return len(s.issues) > 0
}

// Err returns the recorded quality failures as one error, or nil.
func (s *State) Err() error {
	if len(s.issues) == 0 {
		return nil
	}
	if len(s.issues) == 1 {
		return s.issues[0]
	}
	errs := make([]error, len(s.issues))
	for i, qe := range s.issues {
		errs[i] = qe
	}
	return errors.Join(errs...)
}

func (s *State) record(qe *QualityError) {
	s.issues = append(s.issues, qe)
}
