// Package pipeline runs the medallion stages in order over shared state:
// silver, silver validation, gold, gold validation, audit, trends, metrics,
// warehouse load, and publishing.
//
// A stage that finds a data-quality problem returns a QualityError. Halting
// stages stop the run on it; the others record it and the run continues,
// so reports and metrics are still produced. Any other error aborts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Stage is one named step of a run.
type Stage struct {
	Name string
	Run  func(ctx context.Context, rt *Runtime, s *State) error
	// Halt stops the run when the stage reports a quality failure.
	Halt bool
}

// Stage names.
const (
	StageSilver         = "silver"
	StageValidateSilver = "validate_silver"
	StageGold           = "gold"
	StageValidateGold   = "validate_gold"
	StageAudit          = "audit"
	StageTrends         = "trends"
	StageMetrics        = "metrics"
	StageLoad           = "load"
	StagePublish        = "publish"
)

var (
	Silver         = Stage{Name: StageSilver, Run: runSilver}
	ValidateSilver = Stage{Name: StageValidateSilver, Run: runValidateSilver, Halt: true}
	Gold           = Stage{Name: StageGold, Run: runGold}
	ValidateGold   = Stage{Name: StageValidateGold, Run: runValidateGold}
	Audit          = Stage{Name: StageAudit, Run: runAudit}
	Trends         = Stage{Name: StageTrends, Run: runTrends}
	Metrics        = Stage{Name: StageMetrics, Run: runMetrics}
	Load           = Stage{Name: StageLoad, Run: runLoad}
	Publish        = Stage{Name: StagePublish, Run: runPublish}
)

// Default returns the full run in order.
func Default() []Stage {
	return []Stage{Silver, ValidateSilver, Gold, ValidateGold, Audit, Trends, Metrics, Load, Publish}
}

// Execute runs stages in order. It returns the first hard error, or the
// recorded quality failures once every stage has run.
func Execute(ctx context.Context, rt *Runtime, stages []Stage, s *State) error {
	rt.Logger.Info("run started",
		zap.String("run_id", s.RunID.String()),
		zap.Time("reference_time", s.Now),
		zap.Int("stages", len(stages)),
	)

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := st.Run(ctx, rt, s)
		elapsed := time.Since(start)
		rt.Metrics.ObserveStage(st.Name, elapsed)

		var qe *QualityError
		switch {
		case err == nil:
			rt.Logger.Debug("stage complete", zap.String("stage", st.Name), zap.Duration("elapsed", elapsed))
		case errors.As(err, &qe):
			s.record(qe)
			rt.Logger.Warn("stage quality failure",
				zap.String("stage", st.Name),
				zap.String("details", qe.Details),
			)
			if st.Halt {
				return s.Err()
			}
		default:
			return fmt.Errorf("%s: %w", st.Name, err)
		}
	}

	rt.Logger.Info("run complete",
		zap.String("run_id", s.RunID.String()),
		zap.Bool("quality_failed", s.Failed()),
	)
	return s.Err()
}
