// Package ingest accepts scan codes into the record store.
//
// One record per code is enforced by the store's UNIQUE constraint inside the
// insert itself, so two concurrent submissions of the same code cannot both win.
package ingest

import (
	"context"
	"fmt"
	"time"

	"shiftscan/barcode"
	"shiftscan/database"
	"shiftscan/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Service owns creation and bulk deletion of scan records.
type Service struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs replaces the UUID generator.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(db *sqlx.DB, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:     db,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp is truncated to the store's millisecond resolution so that the
// acknowledged record equals what a later read returns.
func (s *Service) timestamp() time.Time {
	return s.now().Truncate(time.Millisecond)
}

// Submit stores a new scan for code. A code that is already stored yields
// ErrDuplicateCode. The record is committed before Submit returns.
func (s *Service) Submit(ctx context.Context, code string) (model.ScanRecord, error) {
	code = barcode.Clean(code)
	if code == "" {
		return model.ScanRecord{}, ErrEmptyCode
	}

	rec := model.ScanRecord{ID: s.newID(), Code: code, Timestamp: s.timestamp()}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.ScanRecord{}, database.Unavailable(fmt.Errorf("begin submit: %w", err))
	}
	defer tx.Rollback()

	inserted, err := database.InsertScanInTx(tx, rec)
	if err != nil {
		return model.ScanRecord{}, database.Unavailable(err)
	}
	if !inserted {
		s.logger.Debug("duplicate scan rejected", zap.String("code", code))
		return model.ScanRecord{}, fmt.Errorf("%w: %s", ErrDuplicateCode, code)
	}

	if err := tx.Commit(); err != nil {
		return model.ScanRecord{}, database.Unavailable(fmt.Errorf("commit submit: %w", err))
	}

	s.logger.Info("scan accepted", zap.String("code", code), zap.String("id", rec.ID))
	return rec, nil
}

// SubmitBatch stores every code not yet present, in input order. A code that
// repeats an earlier code of the same batch is rejected like a stored one.
// When nothing is accepted the store is left untouched and ErrAllDuplicates is
// returned alongside the rejected count.
func (s *Service) SubmitBatch(ctx context.Context, codes []string) (model.BatchResult, error) {
	if len(codes) == 0 {
		return model.BatchResult{}, ErrEmptyBatch
	}

	ts := s.timestamp()
	result := model.BatchResult{Accepted: []model.ScanRecord{}}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.BatchResult{}, database.Unavailable(fmt.Errorf("begin batch: %w", err))
	}
	defer tx.Rollback()

	for _, raw := range codes {
		code := barcode.Clean(raw)
		if code == "" {
			result.RejectedCount++
			continue
		}
		rec := model.ScanRecord{ID: s.newID(), Code: code, Timestamp: ts}
		inserted, err := database.InsertScanInTx(tx, rec)
		if err != nil {
			return model.BatchResult{}, database.Unavailable(err)
		}
		if !inserted {
			result.RejectedCount++
			continue
		}
		result.Accepted = append(result.Accepted, rec)
	}

	if len(result.Accepted) == 0 {
		s.logger.Info("batch rejected", zap.Int("codes", len(codes)))
		return model.BatchResult{Accepted: []model.ScanRecord{}, RejectedCount: result.RejectedCount}, ErrAllDuplicates
	}

	if err := tx.Commit(); err != nil {
		return model.BatchResult{}, database.Unavailable(fmt.Errorf("commit batch: %w", err))
	}

	s.logger.Info("batch accepted",
		zap.Int("accepted", len(result.Accepted)),
		zap.Int("rejected", result.RejectedCount))
	return result, nil
}

// ClearAll deletes every scan record and returns how many were removed.
func (s *Service) ClearAll(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, database.Unavailable(fmt.Errorf("begin clear: %w", err))
	}
	defer tx.Rollback()

	n, err := database.DeleteAllScansInTx(tx)
	if err != nil {
		return 0, database.Unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, database.Unavailable(fmt.Errorf("commit clear: %w", err))
	}

	s.logger.Warn("all scans cleared", zap.Int64("deleted", n))
	return n, nil
}
