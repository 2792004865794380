package model

import "github.com/rotisserie/eris"

// Error kinds raised by the engine. Callers match with eris.Is.
var (
	ErrDegenerateSequence = eris.New("degenerate sequence: zero self-alignment score")
	ErrDegenerateProfile  = eris.New("degenerate profile: zero self-comparison score")
	ErrMalformedTrace     = eris.New("malformed alignment trace")
	ErrEmptyColumn        = eris.New("empty profile column")
	ErrUnnormalizedColumn = eris.New("probability column does not sum to 1")
	ErrInvalidConfig      = eris.New("invalid configuration")
	ErrLengthMismatch     = eris.New("length mismatch")
)
