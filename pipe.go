package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"shiftscan/ingest"
	"shiftscan/mirror"
	"shiftscan/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// pipeStation is a scanning station fed by a line stream (stdin, a serial
// device). It records through the offline mirror and reconciles every interval
// while reading.
type pipeStation struct {
	syncer    *mirror.Syncer
	debouncer *ingest.Debouncer
	interval  time.Duration
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time

	// last is the mirror result of the most recent Submit. Only the read
	// loop touches it.
	last mirror.Result
}

func newPipeStation(syncer *mirror.Syncer, debouncer *ingest.Debouncer, interval time.Duration, loc *time.Location, logger *zap.Logger) *pipeStation {
	if loc == nil {
		loc = time.Local
	}
	return &pipeStation{
		syncer:    syncer,
		debouncer: debouncer,
		interval:  interval,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

func (p *pipeStation) Submit(ctx context.Context, code string) (model.ScanRecord, error) {
	res, err := p.syncer.Record(ctx, code)
	p.last = res
	if err != nil {
		return model.ScanRecord{}, err
	}
	return model.ScanRecord{ID: res.Entry.ID, Code: res.Entry.Code, Timestamp: res.Entry.ScannedAt}, nil
}

func (p *pipeStation) reconcile(ctx context.Context) {
	rep, err := p.syncer.Reconcile(ctx)
	if err != nil {
		p.logger.Warn("reconcile failed", zap.Error(err))
		return
	}
	if rep.Resubmitted > 0 || rep.Removed > 0 || rep.Pulled > 0 {
		p.logger.Info("reconciled",
			zap.Int("resubmitted", rep.Resubmitted),
			zap.Int("accepted", rep.Accepted),
			zap.Int("removed", rep.Removed),
			zap.Int("pulled", rep.Pulled))
	}
}

// report writes one tab-separated line per delivered code: code, state and
// detail. States are ok, offline, server-duplicate, duplicate and rejected.
func (p *pipeStation) report(w io.Writer, o ingest.Outcome) {
	switch {
	case o.Debounced:
	case errors.Is(o.Err, ingest.ErrDuplicateCode):
		fmt.Fprintf(w, "%s\tduplicate\n", o.Event.Code)
	case o.Err != nil:
		fmt.Fprintf(w, "%s\trejected\t%v\n", o.Event.Code, o.Err)
	case p.last.Synced:
		fmt.Fprintf(w, "%s\tok\t%s\n", o.Record.Code, o.Record.Timestamp.In(p.loc).Format(time.RFC3339))
	case errors.Is(p.last.RemoteErr, ingest.ErrDuplicateCode):
		fmt.Fprintf(w, "%s\tserver-duplicate\n", o.Record.Code)
	default:
		fmt.Fprintf(w, "%s\toffline\t%v\n", o.Record.Code, p.last.RemoteErr)
	}
}

// Run reads codes from in until EOF or ctx ends, then makes one last attempt
// to push anything still pending.
func (p *pipeStation) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	p.reconcile(ctx)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, egCtx := errgroup.WithContext(loopCtx)

	if p.interval > 0 {
		eg.Go(func() error {
			t := time.NewTicker(p.interval)
			defer t.Stop()
			for {
				select {
				case <-egCtx.Done():
					return nil
				case <-t.C:
					p.reconcile(egCtx)
				}
			}
		})
	}
	eg.Go(func() error {
		defer cancel()
		err := ingest.ReadCodes(egCtx, in, p, p.debouncer, p.now, p.logger, func(o ingest.Outcome) {
			p.report(out, o)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	err := eg.Wait()

	finalCtx, finalCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer finalCancel()
	if _, rerr := p.syncer.Reconcile(finalCtx); rerr != nil {
		p.logger.Warn("final reconcile failed, pending codes stay in the mirror", zap.Error(rerr))
	}
	return err
}
