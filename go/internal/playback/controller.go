package playback

import (
	"fmt"
	"math"
	"time"

	"github.com/mcdev12/classroom/go/internal/timeline"
)

// DefaultTickInterval is the period of the local playback clock.
const DefaultTickInterval = 100 * time.Millisecond

// Mode is the controller's playback mode.
type Mode int

const (
	// ModePausedByUser is the initial mode: media paused, no card, program clock stopped.
	ModePausedByUser Mode = iota
	// ModePlaying advances the program clock with the media playing.
	ModePlaying
	// ModePausedForCard shows a question card with the media paused.
	ModePausedForCard
)

func (m Mode) String() string {
	switch m {
	case ModePausedByUser:
		return "paused_by_user"
	case ModePlaying:
		return "playing"
	case ModePausedForCard:
		return "paused_for_card"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// State is the full local playback state. It is a value; transitions return a new one.
type State struct {
	EditedTime float64
	Speed      float64
	Mode       Mode

	// ActiveID is the segment containing EditedTime, empty when the timeline is empty.
	ActiveID string
	// CardID is the card currently shown, empty when none is shown.
	CardID string
	// CardHeld stops the program clock while a card is shown.
	CardHeld bool
	// MediaPlaying mirrors what the media element was last told to do.
	MediaPlaying bool
}

// advancing reports whether a tick moves the program clock. The clock keeps running
// through a card unless the card is held; only the media pauses for it.
func (s State) advancing() bool {
	return s.Mode == ModePlaying || (s.Mode == ModePausedForCard && !s.CardHeld)
}

func (s State) speed() float64 {
	if s.Speed <= 0 {
		return 1
	}
	return s.Speed
}

// Controller is the pure playback state machine for one timeline snapshot.
// Every transition takes the previous State and returns the next State together with
// the commands the media boundary must execute, in order.
type Controller struct {
	timeline *timeline.Timeline
	interval time.Duration
}

// NewController returns a controller ticking every interval (DefaultTickInterval when zero).
func NewController(tl *timeline.Timeline, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Controller{timeline: tl, interval: interval}
}

// Timeline returns the snapshot the controller runs against.
func (c *Controller) Timeline() *timeline.Timeline {
	return c.timeline
}

// Interval returns the tick period.
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// Initial returns the stopped state at edited time zero.
func (c *Controller) Initial() (State, []Command) {
	return c.settle(State{Speed: 1, Mode: ModePausedByUser}, nil)
}

// Tick advances the program clock by one interval, wrapping to zero at the end of the
// timeline, and reconciles card and media state with the segment now active.
func (c *Controller) Tick(s State) (State, []Command) {
	var cmds []Command
	if s.advancing() {
		s.EditedTime += c.interval.Seconds() * s.speed()
	}

	if total := c.timeline.TotalEditedLength(); total > 0 && s.EditedTime >= total {
		s.EditedTime = 0
		if s.MediaPlaying {
			cmds = append(cmds, Pause())
			s.MediaPlaying = false
		}
	}
	return c.settle(s, cmds)
}

// Toggle is the user play/pause action. Inside a card it only holds or releases the
// card; the media is already paused there.
func (c *Controller) Toggle(s State) (State, []Command) {
	var cmds []Command
	switch s.Mode {
	case ModePausedForCard:
		s.CardHeld = !s.CardHeld
		return s, nil
	case ModePlaying:
		s.Mode = ModePausedByUser
		if s.MediaPlaying {
			cmds = append(cmds, Pause())
			s.MediaPlaying = false
		}
	default:
		s.Mode = ModePlaying
	}
	return c.settle(s, cmds)
}

// SeekTo moves the program clock to edited, clamped to the timeline.
func (c *Controller) SeekTo(s State, edited float64) (State, []Command) {
	total := c.timeline.TotalEditedLength()
	switch {
	case math.IsNaN(edited) || edited < 0:
		edited = 0
	case total > 0 && edited >= total:
		edited = 0
	}
	s.EditedTime = edited
	cmds := []Command{Seek(c.timeline.EditedToReal(edited))}
	return c.settle(s, cmds)
}

// SetSpeed changes the playback rate. Non-positive speeds are ignored.
func (c *Controller) SetSpeed(s State, speed float64) (State, []Command) {
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) || speed == s.Speed {
		return s, nil
	}
	s.Speed = speed
	if s.MediaPlaying {
		return s, []Command{Play(speed)}
	}
	return s, nil
}

// MediaEnded handles the media element reaching its end: the program loops to zero.
func (c *Controller) MediaEnded(s State) (State, []Command) {
	s.MediaPlaying = false
	s.EditedTime = 0
	return c.settle(s, nil)
}

// settle recomputes the active segment and emits the card and media commands needed
// to match it.
func (c *Controller) settle(s State, cmds []Command) (State, []Command) {
	seg, ok := c.timeline.SegmentAt(s.EditedTime)
	if !ok {
		s.ActiveID = ""
		return s, cmds
	}
	s.ActiveID = seg.ID

	switch seg.Kind {
	case timeline.KindQuestionCard:
		if s.MediaPlaying {
			cmds = append(cmds, Pause())
			s.MediaPlaying = false
		}
		if s.Mode != ModePausedForCard {
			// entering a card while stopped keeps the program stopped
			s.CardHeld = s.Mode == ModePausedByUser
			s.Mode = ModePausedForCard
		}
		if s.CardID != seg.ID {
			cmds = append(cmds, ShowCard(seg))
			s.CardID = seg.ID
		}

	case timeline.KindVideo:
		if s.Mode == ModePausedForCard {
			if s.CardHeld {
				s.Mode = ModePausedByUser
			} else {
				s.Mode = ModePlaying
			}
			s.CardHeld = false
		}
		if s.CardID != "" {
			cmds = append(cmds, HideCard())
			s.CardID = ""
		}
		switch {
		case s.Mode == ModePlaying && !s.MediaPlaying:
			// SeekTo has already positioned the media
			if !seeks(cmds) {
				cmds = append(cmds, Seek(c.timeline.EditedToReal(s.EditedTime)))
			}
			cmds = append(cmds, Play(s.speed()))
			s.MediaPlaying = true
		case s.Mode == ModePausedByUser && s.MediaPlaying:
			cmds = append(cmds, Pause())
			s.MediaPlaying = false
		}
	}
	return s, cmds
}

func seeks(cmds []Command) bool {
	for _, cmd := range cmds {
		if cmd.Kind == CommandSeek {
			return true
		}
	}
	return false
}
