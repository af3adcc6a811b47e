package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"shiftscan/barcode"
	"shiftscan/model"

	"go.uber.org/zap"
)

// Submitter is the part of the ingestion API a decode loop needs.
type Submitter interface {
	Submit(ctx context.Context, code string) (model.ScanRecord, error)
}

// Outcome is what happened to one delivered event.
type Outcome struct {
	Event     Event
	Record    model.ScanRecord
	Debounced bool
	Err       error
}

// Deliver passes ev through d and, unless it was debounced, submits it. A
// submission that fails for any reason other than a duplicate is not kept in
// the debounce window.
func Deliver(ctx context.Context, sub Submitter, d *Debouncer, ev Event) Outcome {
	ev.Code = barcode.Clean(ev.Code)
	out := Outcome{Event: ev}
	if ev.Code == "" {
		out.Err = ErrEmptyCode
		return out
	}
	if !d.Allow(ev) {
		out.Debounced = true
		return out
	}
	out.Record, out.Err = sub.Submit(ctx, ev.Code)
	if out.Err != nil && !errors.Is(out.Err, ErrDuplicateCode) {
		d.Forget(ev.Code)
	}
	return out
}

// ReadCodes reads newline-terminated codes from r, as produced by serial or
// keyboard-wedge scanners, and delivers each through d to sub. handle is called
// with every outcome. Per-code rejections are reported to handle and do not stop
// the loop; a read failure ends it with ErrDecodeUnavailable. Cancelling ctx
// returns at once with ctx.Err(); a read already blocked on r is abandoned.
func ReadCodes(ctx context.Context, r io.Reader, sub Submitter, d *Debouncer, now func() time.Time, logger *zap.Logger, handle func(Outcome)) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		var err error
		defer func() {
			readErr <- err
			close(lines)
		}()
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				err = ctx.Err()
				return
			}
		}
		err = sc.Err()
	}()

	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			if err := <-readErr; err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%w: %w", ErrDecodeUnavailable, err)
			}
			return nil
		}

		code := barcode.Clean(line)
		if code == "" {
			continue
		}
		out := Deliver(ctx, sub, d, Event{Code: code, DetectedAt: now()})
		switch {
		case out.Debounced:
			logger.Debug("repeated read debounced", zap.String("code", code))
		case errors.Is(out.Err, ErrDuplicateCode):
			logger.Info("duplicate scan", zap.String("code", code))
		case out.Err != nil:
			logger.Warn("scan not stored", zap.String("code", code), zap.Error(out.Err))
		}
		if handle != nil {
			handle(out)
		}
	}
}
