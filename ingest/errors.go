package ingest

import "errors"

var (
	// ErrDuplicateCode is returned when a single submission repeats a stored code.
	ErrDuplicateCode = errors.New("code already scanned")
	// ErrAllDuplicates is returned when no code of a batch could be accepted.
	ErrAllDuplicates = errors.New("all codes already scanned")
	ErrEmptyCode     = errors.New("code is empty")
	ErrEmptyBatch    = errors.New("batch contains no codes")
	// ErrDecodeUnavailable is returned when a decode source cannot deliver codes.
	ErrDecodeUnavailable = errors.New("decoder unavailable")
)
