// Package archive keeps the runs of the current process in an in-memory
// SQLite database so the dashboard can list and compare them. Nothing is
// written to disk.
package archive

import (
	"errors"
	"fmt"

	"github.com/emberwatch/firecommand/internal/config"
	"github.com/emberwatch/firecommand/internal/database"
	"github.com/emberwatch/firecommand/internal/model"
	"github.com/emberwatch/firecommand/internal/model/convert"
	"github.com/emberwatch/firecommand/internal/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a run is not archived.
var ErrNotFound = errors.New("run not found")

// Archive stores run reports and failures. It implements session.Observer.
type Archive struct {
	db      *gorm.DB
	log     zerolog.Logger
	maxRuns int
}

// Stats aggregates the archive.
type Stats struct {
	Runs          int64   `json:"runs"`
	Failures      int64   `json:"failures"`
	Risks         int64   `json:"risks"`
	AvgDurationMs float64 `json:"avgDurationMs"`
}

// New opens a fresh in-memory archive.
func New(cfg config.ArchiveConfig, log zerolog.Logger) (*Archive, error) {
	log = log.With().Str("component", "archive").Logger()
	db, err := database.OpenMemory("archive-"+uuid.NewString(), log)
	if err != nil {
		return nil, err
	}
	if err := database.Setup(db, log); err != nil {
		database.Close(db)
		return nil, err
	}
	return &Archive{db: db, log: log, maxRuns: cfg.MaxRuns}, nil
}

// Close drops the archive.
func (a *Archive) Close() error {
	return database.Close(a.db)
}

// RecordRun stores a completed run with its risk rows and trims the oldest
// runs beyond the configured maximum.
func (a *Archive) RecordRun(r session.RunReport) error {
	run := convert.ReportToRun(r)
	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return a.trim(tx)
	})
	if err != nil {
		return err
	}
	a.log.Debug().
		Str("request", run.RequestID).
		Uint64("sequence", run.Sequence).
		Int("risks", run.RiskCount).
		Msg("Run archived")
	return nil
}

func (a *Archive) trim(tx *gorm.DB) error {
	if a.maxRuns <= 0 {
		return nil
	}
	var total int64
	if err := tx.Model(&model.Run{}).Count(&total).Error; err != nil {
		return fmt.Errorf("count runs: %w", err)
	}
	excess := int(total) - a.maxRuns
	if excess <= 0 {
		return nil
	}
	var stale []uint
	err := tx.Model(&model.Run{}).
		Order("id ASC").
		Limit(excess).
		Pluck("id", &stale).Error
	if err != nil {
		return fmt.Errorf("select trimmed runs: %w", err)
	}
	if err := tx.Where("run_id IN ?", stale).Delete(&model.Risk{}).Error; err != nil {
		return fmt.Errorf("trim risks: %w", err)
	}
	if err := tx.Where("id IN ?", stale).Delete(&model.Run{}).Error; err != nil {
		return fmt.Errorf("trim runs: %w", err)
	}
	a.log.Debug().Int("runs", len(stale)).Msg("Archive trimmed")
	return nil
}

// RecordFailure stores a failed engine call.
func (a *Archive) RecordFailure(f session.RunFailure) error {
	m := convert.FailureToModel(f)
	if err := a.db.Create(&m).Error; err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}
	return nil
}

// Runs returns up to limit runs, newest first, without risk rows.
func (a *Archive) Runs(limit int) ([]model.Run, error) {
	var runs []model.Run
	q := a.db.Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Run returns one run by request id with its risk rows in impact order.
func (a *Archive) Run(requestID string) (model.Run, error) {
	var run model.Run
	err := a.db.
		Preload("Risks", func(db *gorm.DB) *gorm.DB {
			return db.Order("time_to_impact_hours ASC, id ASC")
		}).
		Where("request_id = ?", requestID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Run{}, ErrNotFound
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Failures returns up to limit failures, newest first.
func (a *Archive) Failures(limit int) ([]model.Failure, error) {
	var out []model.Failure
	q := a.db.Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	return out, nil
}

// AssetHistory returns every archived risk row for an asset, newest run
// first.
func (a *Archive) AssetHistory(assetID string) ([]model.Risk, error) {
	var out []model.Risk
	err := a.db.Where("asset_id = ?", assetID).Order("run_id DESC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("asset history: %w", err)
	}
	return out, nil
}

// Stats returns archive totals.
func (a *Archive) Stats() (Stats, error) {
	var s Stats
	if err := a.db.Model(&model.Run{}).Count(&s.Runs).Error; err != nil {
		return s, fmt.Errorf("count runs: %w", err)
	}
	if err := a.db.Model(&model.Failure{}).Count(&s.Failures).Error; err != nil {
		return s, fmt.Errorf("count failures: %w", err)
	}
	if err := a.db.Model(&model.Risk{}).Count(&s.Risks).Error; err != nil {
		return s, fmt.Errorf("count risks: %w", err)
	}
	if s.Runs > 0 {
		var avg struct{ Avg float64 }
		if err := a.db.Model(&model.Run{}).Select("AVG(duration_ms) AS avg").Scan(&avg).Error; err != nil {
			return s, fmt.Errorf("average duration: %w", err)
		}
		s.AvgDurationMs = avg.Avg
	}
	return s, nil
}

// StateChanged is a no-op; only runs are archived.
func (a *Archive) StateChanged(session.Snapshot) {}

// RunCompleted archives r, logging failures.
func (a *Archive) RunCompleted(r session.RunReport) {
	if err := a.RecordRun(r); err != nil {
		a.log.Error().Err(err).Msg("Failed to archive run")
	}
}

// RunFailed archives f, logging failures.
func (a *Archive) RunFailed(f session.RunFailure) {
	if err := a.RecordFailure(f); err != nil {
		a.log.Error().Err(err).Msg("Failed to archive failure")
	}
}
