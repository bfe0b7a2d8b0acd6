package timeline

import "errors"

var (
	// ErrEmptySegment is returned for a segment whose start is not before its end
	ErrEmptySegment = errors.New("segment start must be before end")
	// ErrNotContiguous is returned when segments leave a gap, overlap or do not start at zero
	ErrNotContiguous = errors.New("segments are not contiguous")
	// ErrMissingCard is returned for a question card segment without a payload
	ErrMissingCard = errors.New("question card segment has no card data")
	// ErrUnexpectedCard is returned for a video segment carrying card data
	ErrUnexpectedCard = errors.New("video segment carries card data")
	// ErrUnknownKind is returned for a kind outside the video/question card variants
	ErrUnknownKind = errors.New("unknown segment kind")

	ErrSegmentNotFound = errors.New("segment not found")
	ErrNotCard         = errors.New("segment is not a question card")
	ErrInsideCard      = errors.New("position falls inside a question card")
	ErrOnBoundary      = errors.New("position is already a segment boundary")
	ErrOutOfRange      = errors.New("position outside the timeline")
	ErrInvalidDuration = errors.New("duration must be positive")
)
