package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shiftscan/database"
	"shiftscan/ingest"
	"shiftscan/model"

	"go.uber.org/zap"
)

// Remote is the part of the server API the mirror needs.
type Remote interface {
	Submit(ctx context.Context, code string) (model.ScanRecord, error)
	SubmitBatch(ctx context.Context, codes []string) (model.BatchResult, error)
	List(ctx context.Context) (model.GroupedScans, error)
}

// Syncer records scans locally and pushes them to the server.
type Syncer struct {
	store  *Store
	remote Remote
	logger *zap.Logger
	now    func() time.Time
}

func NewSyncer(store *Store, remote Remote, logger *zap.Logger) *Syncer {
	return &Syncer{store: store, remote: remote, logger: logger, now: time.Now}
}

// Store returns the underlying mirror.
func (s *Syncer) Store() *Store { return s.store }

// Result is what happened to one recorded code.
type Result struct {
	Entry Entry
	// Synced is true when the server acknowledged the code.
	Synced bool
	// RemoteErr is the server-side failure, if any. The entry stays pending.
	RemoteErr error
}

// Record adds code to the mirror and then tries the server. A local duplicate
// is returned as ingest.ErrDuplicateCode and never reaches the server. A
// server that is unreachable leaves the entry pending for the next Reconcile.
func (s *Syncer) Record(ctx context.Context, code string) (Result, error) {
	e, err := s.store.Add(ctx, code, s.now())
	if err != nil {
		return Result{}, err
	}

	res := Result{Entry: e}
	rec, err := s.remote.Submit(ctx, e.Code)
	switch {
	case err == nil:
		if err := s.store.MarkSynced(ctx, e.Code, rec.ID, rec.Timestamp); err != nil {
			return res, err
		}
		res.Entry.ID, res.Entry.ScannedAt, res.Entry.Status = rec.ID, rec.Timestamp, StatusSynced
		res.Synced = true
	case errors.Is(err, ingest.ErrDuplicateCode):
		// Someone else scanned it first; the next Reconcile brings the server's record.
		res.RemoteErr = err
		s.logger.Info("code already on server", zap.String("code", e.Code))
	default:
		res.RemoteErr = err
		s.logger.Warn("scan kept offline", zap.String("code", e.Code), zap.Error(err))
	}
	return res, nil
}

// Report summarises one reconciliation.
type Report struct {
	Resubmitted int
	Accepted    int
	Rejected    int
	Removed     int
	Pulled      int
}

// Reconcile resubmits pending codes the server lacks, then overwrites the
// mirror with the server's records:
//   - a local code the server has becomes synced with the server's id and time,
//   - a pending code the server still lacks after resubmission is dropped,
//   - a synced code the server no longer has is dropped (the server was cleared),
//   - a server code missing locally is added as synced.
//
// Codes recorded while Reconcile runs are left pending.
func (s *Syncer) Reconcile(ctx context.Context) (Report, error) {
	var rep Report

	pending, err := s.store.Pending(ctx)
	if err != nil {
		return rep, err
	}
	server, err := s.serverByCode(ctx)
	if err != nil {
		return rep, err
	}

	seen := make(map[string]bool, len(pending))
	var resubmit []string
	for _, e := range pending {
		seen[e.Code] = true
		if _, ok := server[e.Code]; !ok {
			resubmit = append(resubmit, e.Code)
		}
	}

	if len(resubmit) > 0 {
		rep.Resubmitted = len(resubmit)
		result, err := s.remote.SubmitBatch(ctx, resubmit)
		if err != nil && !errors.Is(err, ingest.ErrAllDuplicates) {
			return rep, fmt.Errorf("resubmit pending scans: %w", err)
		}
		rep.Accepted = len(result.Accepted)
		rep.Rejected = result.RejectedCount
		if server, err = s.serverByCode(ctx); err != nil {
			return rep, err
		}
	}

	local, err := s.store.Entries(ctx)
	if err != nil {
		return rep, err
	}

	tx, err := s.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return rep, database.Unavailable(fmt.Errorf("begin reconcile: %w", err))
	}
	defer tx.Rollback()

	known := make(map[string]bool, len(local))
	for _, e := range local {
		known[e.Code] = true
		rec, onServer := server[e.Code]
		var err error
		switch {
		case onServer:
			_, err = tx.ExecContext(ctx, `UPDATE mirror_items SET id = ?, scanned_at = ?, status = ? WHERE code = ?`,
				rec.ID, rec.Timestamp.UnixMilli(), StatusSynced, e.Code)
		case e.Status == StatusSynced || seen[e.Code]:
			_, err = tx.ExecContext(ctx, `DELETE FROM mirror_items WHERE code = ?`, e.Code)
			rep.Removed++
		}
		if err != nil {
			return rep, database.Unavailable(fmt.Errorf("reconcile (Code: %s): %w", e.Code, err))
		}
	}
	for code, rec := range server {
		if known[code] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mirror_items (code, id, scanned_at, status) VALUES (?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET id = excluded.id, scanned_at = excluded.scanned_at, status = excluded.status`,
			code, rec.ID, rec.Timestamp.UnixMilli(), StatusSynced); err != nil {
			return rep, database.Unavailable(fmt.Errorf("reconcile pull (Code: %s): %w", code, err))
		}
		rep.Pulled++
	}

	if err := tx.Commit(); err != nil {
		return rep, database.Unavailable(fmt.Errorf("commit reconcile: %w", err))
	}
	s.logger.Info("mirror reconciled",
		zap.Int("resubmitted", rep.Resubmitted),
		zap.Int("accepted", rep.Accepted),
		zap.Int("rejected", rep.Rejected),
		zap.Int("removed", rep.Removed),
		zap.Int("pulled", rep.Pulled))
	return rep, nil
}

func (s *Syncer) serverByCode(ctx context.Context) (map[string]model.ScanRecord, error) {
	g, err := s.remote.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list server scans: %w", err)
	}
	out := make(map[string]model.ScanRecord, g.Len())
	for _, rec := range g.All() {
		out[rec.Code] = rec
	}
	return out, nil
}
