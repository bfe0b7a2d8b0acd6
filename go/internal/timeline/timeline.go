package timeline

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// boundaryEpsilon is the slack allowed between one segment's end and the next one's start.
// Boundaries within it are snapped together.
const boundaryEpsilon = 1e-6

// Timeline is an immutable, validated, ordered list of segments covering
// [0, TotalEditedLength) with no gaps.
type Timeline struct {
	segments []Segment
	edited   float64
	cards    float64
}

// New validates segments and returns a timeline over a private copy of them.
func New(segments []Segment) (*Timeline, error) {
	segs := make([]Segment, len(segments))
	copy(segs, segments)

	if err := normalize(segs); err != nil {
		return nil, err
	}

	t := &Timeline{segments: segs}
	for _, s := range segs {
		if s.IsCard() {
			t.cards += s.Duration()
		}
	}
	if len(segs) > 0 {
		t.edited = segs[len(segs)-1].Source.End
	}
	return t, nil
}

// FromMedia returns the initial timeline for a freshly accepted video: one video
// segment spanning the whole media.
func FromMedia(duration float64) (*Timeline, error) {
	if !finite(duration) || duration <= 0 {
		return nil, fmt.Errorf("media duration %v: %w", duration, ErrInvalidDuration)
	}
	return New([]Segment{NewVideo(uuid.NewString(), 0, duration)})
}

// normalize checks every timeline invariant and snaps near-equal boundaries.
func normalize(segs []Segment) error {
	prev := 0.0
	for i := range segs {
		s := &segs[i]
		if !finite(s.Source.Start) || !finite(s.Source.End) || s.Source.Start >= s.Source.End {
			return fmt.Errorf("segment %d (%s): %w", i, s.ID, ErrEmptySegment)
		}
		if math.Abs(s.Source.Start-prev) > boundaryEpsilon {
			return fmt.Errorf("segment %d (%s) starts at %v, expected %v: %w", i, s.ID, s.Source.Start, prev, ErrNotContiguous)
		}
		s.Source.Start = prev

		switch s.Kind {
		case KindVideo:
			if len(s.Card) > 0 {
				return fmt.Errorf("segment %d (%s): %w", i, s.ID, ErrUnexpectedCard)
			}
		case KindQuestionCard:
			if len(s.Card) == 0 {
				return fmt.Errorf("segment %d (%s): %w", i, s.ID, ErrMissingCard)
			}
		default:
			return fmt.Errorf("segment %d (%s): %w", i, s.ID, ErrUnknownKind)
		}
		prev = s.Source.End
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Segments returns a copy of the segments in order.
func (t *Timeline) Segments() []Segment {
	if t == nil {
		return nil
	}
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// Len returns the number of segments.
func (t *Timeline) Len() int {
	if t == nil {
		return 0
	}
	return len(t.segments)
}

// TotalEditedLength is the length of the program including question cards.
func (t *Timeline) TotalEditedLength() float64 {
	if t == nil {
		return 0
	}
	return t.edited
}

// TotalRealMediaLength is the length of the underlying media.
func (t *Timeline) TotalRealMediaLength() float64 {
	if t == nil {
		return 0
	}
	return t.edited - t.cards
}

// CardDuration is the summed duration of every question card.
func (t *Timeline) CardDuration() float64 {
	if t == nil {
		return 0
	}
	return t.cards
}

// IndexAt returns the index of the segment containing edited, or -1.
// Intervals are half-open, so a boundary belongs to the segment starting there.
func (t *Timeline) IndexAt(edited float64) int {
	if t == nil || !finite(edited) || edited < 0 || edited >= t.edited {
		return -1
	}
	return sort.Search(len(t.segments), func(i int) bool {
		return t.segments[i].Source.End > edited
	})
}

// SegmentAt returns the segment containing edited.
func (t *Timeline) SegmentAt(edited float64) (Segment, bool) {
	i := t.IndexAt(edited)
	if i < 0 {
		return Segment{}, false
	}
	return t.segments[i], true
}

// Find returns the index of the segment with the given id.
func (t *Timeline) Find(id string) (int, bool) {
	if t == nil {
		return -1, false
	}
	for i, s := range t.segments {
		if s.ID == id {
			return i, true
		}
	}
	return -1, false
}

// MarshalJSON encodes the timeline as its segment list.
func (t *Timeline) MarshalJSON() ([]byte, error) {
	segs := t.Segments()
	if segs == nil {
		segs = []Segment{}
	}
	return json.Marshal(segs)
}

// UnmarshalJSON decodes and validates a segment list.
func (t *Timeline) UnmarshalJSON(data []byte) error {
	var segs []Segment
	if err := json.Unmarshal(data, &segs); err != nil {
		return fmt.Errorf("decode timeline: %w", err)
	}
	parsed, err := New(segs)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}
