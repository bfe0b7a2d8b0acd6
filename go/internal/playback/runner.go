package playback

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Media is the control surface of the underlying media element.
type Media interface {
	Play(rate float64) error
	Pause() error
	Seek(realTime float64) error
}

// CardPresenter shows and hides question cards.
type CardPresenter interface {
	ShowCard(segmentID string, card json.RawMessage)
	HideCard()
}

// Executor carries commands out against the media and card boundary.
// A nil Media makes every media command a no-op; cards still work without a loaded file.
type Executor struct {
	Media Media
	Cards CardPresenter
}

// Execute runs one command. Only media failures are returned.
func (e Executor) Execute(cmd Command) error {
	if !cmd.AffectsMedia() {
		if e.Cards == nil {
			return nil
		}
		switch cmd.Kind {
		case CommandShowCard:
			e.Cards.ShowCard(cmd.SegmentID, cmd.Card)
		case CommandHideCard:
			e.Cards.HideCard()
		}
		return nil
	}

	if e.Media == nil {
		return nil
	}
	switch cmd.Kind {
	case CommandPlay:
		return e.Media.Play(cmd.Rate)
	case CommandPause:
		return e.Media.Pause()
	case CommandSeek:
		return e.Media.Seek(cmd.RealTime)
	}
	return nil
}

// Runner drives a Controller from a fixed-period ticker and executes its commands.
// The tick is its only suspension point; user actions are serialized with ticks.
type Runner struct {
	mu       sync.Mutex
	ctrl     *Controller
	state    State
	executor Executor
	clock    clockwork.Clock
}

// NewRunner builds a runner in the controller's initial state. media may be nil.
func NewRunner(ctrl *Controller, media Media, cards CardPresenter, clock clockwork.Clock) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	r := &Runner{
		ctrl:     ctrl,
		executor: Executor{Media: media, Cards: cards},
		clock:    clock,
	}
	r.apply(ctrl.Initial())
	return r
}

// Run ticks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.ctrl.Interval())
	defer ticker.Stop()

	log.Debug().
		Dur("interval", r.ctrl.Interval()).
		Int("segments", r.ctrl.Timeline().Len()).
		Msg("playback runner started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			r.Step()
		}
	}
}

// Step runs a single tick.
func (r *Runner) Step() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply(r.ctrl.Tick(r.state))
}

// Toggle is the user play/pause action.
func (r *Runner) Toggle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply(r.ctrl.Toggle(r.state))
}

// SeekTo scrubs to an edited-time position.
func (r *Runner) SeekTo(edited float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply(r.ctrl.SeekTo(r.state, edited))
}

// SetSpeed changes the playback rate.
func (r *Runner) SetSpeed(speed float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply(r.ctrl.SetSpeed(r.state, speed))
}

// MediaEnded is wired to the media element's ended event.
func (r *Runner) MediaEnded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply(r.ctrl.MediaEnded(r.state))
}

// State returns a snapshot of the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) apply(next State, cmds []Command) {
	r.state = next
	for _, cmd := range cmds {
		err := r.executor.Execute(cmd)
		if err == nil {
			continue
		}
		log.Warn().Err(err).Str("command", cmd.String()).Msg("media command failed")
		if cmd.Kind == CommandPlay {
			// a rejected play (autoplay policy and the like) leaves the program paused
			r.state.MediaPlaying = false
			if r.state.Mode == ModePlaying {
				r.state.Mode = ModePausedByUser
			}
		}
	}
}
