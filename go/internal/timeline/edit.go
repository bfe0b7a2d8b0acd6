package timeline

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Edit operations never mutate the receiver. Each returns a new validated timeline.

// InsertCard inserts a question card of the given duration at edited time at,
// shifting every later segment by duration. A video segment strictly containing at is
// split in two. An empty id gets a generated one.
func (t *Timeline) InsertCard(id string, at, duration float64, card json.RawMessage) (*Timeline, error) {
	if !finite(duration) || duration <= 0 {
		return nil, fmt.Errorf("card duration %v: %w", duration, ErrInvalidDuration)
	}
	if len(card) == 0 {
		return nil, ErrMissingCard
	}
	if !finite(at) || at < 0 || at > t.TotalEditedLength() {
		return nil, fmt.Errorf("insert at %v: %w", at, ErrOutOfRange)
	}
	if id == "" {
		id = uuid.NewString()
	}
	inserted := NewQuestionCard(id, at, at+duration, card)

	out := make([]Segment, 0, t.Len()+2)
	done := false
	for _, s := range t.Segments() {
		switch {
		case done:
			out = append(out, s.shifted(duration))
		case at <= s.Source.Start:
			out = append(out, inserted, s.shifted(duration))
			done = true
		case at < s.Source.End:
			if s.IsCard() {
				return nil, fmt.Errorf("insert at %v into %s: %w", at, s.ID, ErrInsideCard)
			}
			left, right := splitVideo(s, at)
			out = append(out, left, inserted, right.shifted(duration))
			done = true
		default:
			out = append(out, s)
		}
	}
	if !done {
		out = append(out, inserted)
	}
	return New(out)
}

// Split cuts the video segment containing at into two segments meeting at at.
func (t *Timeline) Split(at float64) (*Timeline, error) {
	i := t.IndexAt(at)
	if i < 0 {
		return nil, fmt.Errorf("split at %v: %w", at, ErrOutOfRange)
	}
	s := t.segments[i]
	if s.IsCard() {
		return nil, fmt.Errorf("split at %v in %s: %w", at, s.ID, ErrInsideCard)
	}
	if s.Source.Start == at {
		return nil, fmt.Errorf("split at %v: %w", at, ErrOnBoundary)
	}

	left, right := splitVideo(s, at)
	out := make([]Segment, 0, t.Len()+1)
	out = append(out, t.segments[:i]...)
	out = append(out, left, right)
	out = append(out, t.segments[i+1:]...)
	return New(out)
}

// RemoveCard deletes a question card, pulls later segments back by its duration and
// merges the two video segments that become neighbours.
func (t *Timeline) RemoveCard(id string) (*Timeline, error) {
	i, card, err := t.card(id)
	if err != nil {
		return nil, err
	}
	d := card.Duration()

	out := make([]Segment, 0, t.Len())
	out = append(out, t.segments[:i]...)
	for j, s := range t.segments[i+1:] {
		s = s.shifted(-d)
		if j == 0 && len(out) > 0 && !out[len(out)-1].IsCard() && !s.IsCard() {
			out[len(out)-1].Source.End = s.Source.End
			continue
		}
		out = append(out, s)
	}
	return New(out)
}

// ResizeCard changes the authored duration of a question card, moving later segments.
func (t *Timeline) ResizeCard(id string, duration float64) (*Timeline, error) {
	if !finite(duration) || duration <= 0 {
		return nil, fmt.Errorf("card duration %v: %w", duration, ErrInvalidDuration)
	}
	i, card, err := t.card(id)
	if err != nil {
		return nil, err
	}
	delta := duration - card.Duration()

	out := t.Segments()
	out[i].Source.End = out[i].Source.Start + duration
	for j := i + 1; j < len(out); j++ {
		out[j] = out[j].shifted(delta)
	}
	return New(out)
}

func (t *Timeline) card(id string) (int, Segment, error) {
	i, ok := t.Find(id)
	if !ok {
		return -1, Segment{}, fmt.Errorf("segment %s: %w", id, ErrSegmentNotFound)
	}
	s := t.segments[i]
	if !s.IsCard() {
		return -1, Segment{}, fmt.Errorf("segment %s: %w", id, ErrNotCard)
	}
	return i, s, nil
}

func splitVideo(s Segment, at float64) (Segment, Segment) {
	left, right := s, s
	left.Source.End = at
	right.ID = uuid.NewString()
	right.Source.Start = at
	return left, right
}
