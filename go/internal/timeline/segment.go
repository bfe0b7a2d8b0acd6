package timeline

import (
	"encoding/json"
	"fmt"
)

// Kind tags what a segment plays.
type Kind int

const (
	// KindVideo is a plain range of the underlying media.
	KindVideo Kind = iota
	// KindQuestionCard is an interactive card; the media does not advance while it is active.
	KindQuestionCard
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindQuestionCard:
		return "question_card"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindVideo, KindQuestionCard:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("marshal %s: %w", k, ErrUnknownKind)
	}
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "video":
		*k = KindVideo
	case "question_card":
		*k = KindQuestionCard
	default:
		return fmt.Errorf("unmarshal %q: %w", text, ErrUnknownKind)
	}
	return nil
}

// Range is a half-open [Start, End) interval in edited-time seconds.
type Range struct {
	Start float64
	End   float64
}

// Duration returns End - Start.
func (r Range) Duration() float64 {
	return r.End - r.Start
}

// Contains reports whether t falls in [Start, End).
func (r Range) Contains(t float64) bool {
	return t >= r.Start && t < r.End
}

// MarshalJSON encodes the range as a two element array.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{r.Start, r.End})
}

// UnmarshalJSON decodes a two element array.
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode source range: %w", err)
	}
	r.Start, r.End = pair[0], pair[1]
	return nil
}

// Segment is one contiguous piece of the edited program.
// Card is set only for KindQuestionCard and is carried through untouched.
type Segment struct {
	ID     string          `json:"id"`
	Source Range           `json:"source"`
	Kind   Kind            `json:"kind"`
	Card   json.RawMessage `json:"card,omitempty"`
}

// NewVideo builds a video segment.
func NewVideo(id string, start, end float64) Segment {
	return Segment{ID: id, Source: Range{Start: start, End: end}, Kind: KindVideo}
}

// NewQuestionCard builds a question card segment carrying card.
func NewQuestionCard(id string, start, end float64, card json.RawMessage) Segment {
	return Segment{ID: id, Source: Range{Start: start, End: end}, Kind: KindQuestionCard, Card: card}
}

// IsCard reports whether the segment is a question card.
func (s Segment) IsCard() bool {
	return s.Kind == KindQuestionCard
}

// Duration is the edited-time length of the segment.
func (s Segment) Duration() float64 {
	return s.Source.Duration()
}

func (s Segment) shifted(delta float64) Segment {
	s.Source.Start += delta
	s.Source.End += delta
	return s
}
