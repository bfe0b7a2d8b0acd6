package timeline

import (
	"encoding/json"
	"errors"
	"testing"
)

var testCard = json.RawMessage(`{"question":"2+2?","answers":["3","4"],"difficulty":"easy","type":"mc"}`)

// cardScenario is [Video(0,10), QuestionCard(10,15), Video(15,25)].
func cardScenario(t *testing.T) *Timeline {
	t.Helper()
	tl, err := New([]Segment{
		NewVideo("v1", 0, 10),
		NewQuestionCard("q1", 10, 15, testCard),
		NewVideo("v2", 15, 25),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tl
}

func TestNew_Lengths(t *testing.T) {
	tl := cardScenario(t)

	if got := tl.TotalEditedLength(); got != 25 {
		t.Errorf("TotalEditedLength = %v, want 25", got)
	}
	if got := tl.TotalRealMediaLength(); got != 20 {
		t.Errorf("TotalRealMediaLength = %v, want 20", got)
	}
	if got := tl.TotalEditedLength() - tl.TotalRealMediaLength(); got != tl.CardDuration() {
		t.Errorf("edited - real = %v, want card duration %v", got, tl.CardDuration())
	}
}

func TestNew_RejectsInvalidSegments(t *testing.T) {
	tests := []struct {
		name string
		segs []Segment
		want error
	}{
		{"empty range", []Segment{NewVideo("v", 0, 0)}, ErrEmptySegment},
		{"gap", []Segment{NewVideo("a", 0, 5), NewVideo("b", 6, 8)}, ErrNotContiguous},
		{"overlap", []Segment{NewVideo("a", 0, 5), NewVideo("b", 4, 8)}, ErrNotContiguous},
		{"not from zero", []Segment{NewVideo("a", 1, 5)}, ErrNotContiguous},
		{"card without payload", []Segment{NewQuestionCard("q", 0, 5, nil)}, ErrMissingCard},
		{"video with payload", []Segment{{ID: "v", Source: Range{0, 5}, Kind: KindVideo, Card: testCard}}, ErrUnexpectedCard},
		{"unknown kind", []Segment{{ID: "x", Source: Range{0, 5}, Kind: Kind(7)}}, ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.segs)
			if !errors.Is(err, tt.want) {
				t.Fatalf("New err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNew_SnapsNearBoundaries(t *testing.T) {
	tl, err := New([]Segment{NewVideo("a", 0, 0.1+0.2), NewVideo("b", 0.3, 1)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tl.Segments()[1].Source.Start != tl.Segments()[0].Source.End {
		t.Errorf("boundary not snapped: %v vs %v", tl.Segments()[0].Source.End, tl.Segments()[1].Source.Start)
	}
}

func TestNew_CopiesInput(t *testing.T) {
	segs := []Segment{NewVideo("a", 0, 5)}
	tl, err := New(segs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	segs[0].ID = "changed"
	if tl.Segments()[0].ID != "a" {
		t.Errorf("timeline shares caller slice")
	}
}

func TestSegmentAt_HalfOpen(t *testing.T) {
	tl := cardScenario(t)

	tests := []struct {
		at     float64
		wantID string
		ok     bool
	}{
		{0, "v1", true},
		{9.999, "v1", true},
		{10, "q1", true},
		{14.99, "q1", true},
		{15, "v2", true},
		{24.9, "v2", true},
		{25, "", false},
		{-1, "", false},
	}
	for _, tt := range tests {
		seg, ok := tl.SegmentAt(tt.at)
		if ok != tt.ok || seg.ID != tt.wantID {
			t.Errorf("SegmentAt(%v) = (%q, %v), want (%q, %v)", tt.at, seg.ID, ok, tt.wantID, tt.ok)
		}
	}
}

func TestFromMedia(t *testing.T) {
	tl, err := FromMedia(42.5)
	if err != nil {
		t.Fatalf("FromMedia: %v", err)
	}
	if tl.Len() != 1 || tl.Segments()[0].IsCard() || tl.TotalEditedLength() != 42.5 {
		t.Errorf("unexpected initial timeline: %+v", tl.Segments())
	}
	if tl.Segments()[0].ID == "" {
		t.Error("initial segment has no id")
	}

	if _, err := FromMedia(0); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("FromMedia(0) err = %v, want ErrInvalidDuration", err)
	}
}

func TestTimelineJSON(t *testing.T) {
	tl := cardScenario(t)

	data, err := json.Marshal(tl)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal raw: %v", err)
	}
	if raw[1]["kind"] != "question_card" {
		t.Errorf("kind = %v, want question_card", raw[1]["kind"])
	}
	if _, ok := raw[0]["card"]; ok {
		t.Error("video segment should omit card")
	}

	var back Timeline
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.TotalEditedLength() != 25 || back.CardDuration() != 5 {
		t.Errorf("decoded lengths = %v/%v", back.TotalEditedLength(), back.CardDuration())
	}

	bad := []byte(`[{"id":"a","source":[0,5],"kind":"video"},{"id":"b","source":[6,7],"kind":"video"}]`)
	if err := json.Unmarshal(bad, &back); !errors.Is(err, ErrNotContiguous) {
		t.Errorf("Unmarshal gap err = %v, want ErrNotContiguous", err)
	}
}
