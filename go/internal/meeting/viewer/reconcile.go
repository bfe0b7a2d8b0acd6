// Package viewer keeps a client's media and card display aligned with a room's
// authoritative playback state.
package viewer

import (
	"errors"
	"fmt"
	"math"

	"github.com/mcdev12/classroom/go/internal/meeting/events"
	"github.com/mcdev12/classroom/go/internal/playback"
	"github.com/mcdev12/classroom/go/internal/timeline"
)

var (
	ErrTimelineUnavailable = errors.New("timeline not loaded")
	ErrOutsideTimeline     = errors.New("position outside the timeline")
)

// Reconciler turns sync_update states into media and card commands. It remembers what it
// last asked for, so applying the same state twice emits nothing the second time.
type Reconciler struct {
	tl *timeline.Timeline

	playing  bool
	rate     float64
	cardID   string
	position float64
	seeked   bool
}

// NewReconciler starts from paused media with no card shown. A nil timeline plays the
// media unedited.
func NewReconciler(tl *timeline.Timeline) *Reconciler {
	if tl == nil {
		tl, _ = timeline.New(nil)
	}
	return &Reconciler{tl: tl}
}

func (r *Reconciler) Timeline() *timeline.Timeline {
	return r.tl
}

// Playing reports whether the reconciler believes the media is playing.
func (r *Reconciler) Playing() bool {
	return r.playing
}

// CardID returns the card currently shown, or "".
func (r *Reconciler) CardID() string {
	return r.cardID
}

// MediaPaused records that the media stopped on its own (a rejected play, a stall). The next
// running state seeks and resumes again.
func (r *Reconciler) MediaPaused() {
	r.playing = false
	r.seeked = false
}

// Apply reconciles against one authoritative state.
func (r *Reconciler) Apply(st events.PlaybackState) ([]playback.Command, error) {
	if math.IsNaN(st.CurrentTime) || math.IsInf(st.CurrentTime, 0) || st.CurrentTime < 0 {
		return nil, fmt.Errorf("%w: current_time %v", ErrOutsideTimeline, st.CurrentTime)
	}

	var cmds []playback.Command
	realTime := r.tl.EditedToReal(st.CurrentTime)
	seg, onSegment := r.tl.SegmentAt(st.CurrentTime)
	ended := r.tl.Len() > 0 && !onSegment

	if st.Stopped || ended {
		cmds = r.pause(cmds)
		if onSegment && seg.IsCard() {
			cmds = r.showCard(cmds, seg)
		} else {
			cmds = r.hideCard(cmds)
		}
		return r.seek(cmds, realTime), nil
	}

	if onSegment && seg.IsCard() {
		cmds = r.showCard(cmds, seg)
		return r.pause(cmds), nil
	}

	cmds = r.hideCard(cmds)
	speed := st.Speed
	if speed <= 0 {
		speed = 1
	}
	switch {
	case !r.playing:
		// seek only from paused media so a playing viewer does not jitter
		r.seeked = true
		r.position = realTime
		cmds = append(cmds, playback.Seek(realTime), playback.Play(speed))
	case r.rate != speed:
		cmds = append(cmds, playback.Play(speed))
	}
	r.playing = true
	r.rate = speed
	return cmds, nil
}

func (r *Reconciler) pause(cmds []playback.Command) []playback.Command {
	if !r.playing {
		return cmds
	}
	r.playing = false
	// the media moved while playing, so the last seek target no longer holds
	r.seeked = false
	return append(cmds, playback.Pause())
}

func (r *Reconciler) showCard(cmds []playback.Command, seg timeline.Segment) []playback.Command {
	if r.cardID == seg.ID {
		return cmds
	}
	r.cardID = seg.ID
	return append(cmds, playback.ShowCard(seg))
}

func (r *Reconciler) hideCard(cmds []playback.Command) []playback.Command {
	if r.cardID == "" {
		return cmds
	}
	r.cardID = ""
	return append(cmds, playback.HideCard())
}

func (r *Reconciler) seek(cmds []playback.Command, realTime float64) []playback.Command {
	if r.seeked && r.position == realTime {
		return cmds
	}
	r.seeked = true
	r.position = realTime
	return append(cmds, playback.Seek(realTime))
}
