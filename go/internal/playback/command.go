package playback

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/classroom/go/internal/timeline"
)

// CommandKind identifies a side effect requested by the state machine.
type CommandKind int

const (
	CommandPlay CommandKind = iota
	CommandPause
	CommandSeek
	CommandShowCard
	CommandHideCard
)

func (k CommandKind) String() string {
	switch k {
	case CommandPlay:
		return "play"
	case CommandPause:
		return "pause"
	case CommandSeek:
		return "seek"
	case CommandShowCard:
		return "show_card"
	case CommandHideCard:
		return "hide_card"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command is one side effect for the media/card boundary to carry out.
type Command struct {
	Kind      CommandKind
	RealTime  float64         // seek target in real media seconds
	Rate      float64         // playback rate for play
	SegmentID string          // card segment for show_card
	Card      json.RawMessage // card payload for show_card
}

func Play(rate float64) Command {
	return Command{Kind: CommandPlay, Rate: rate}
}

func Pause() Command {
	return Command{Kind: CommandPause}
}

func Seek(realTime float64) Command {
	return Command{Kind: CommandSeek, RealTime: realTime}
}

func ShowCard(seg timeline.Segment) Command {
	return Command{Kind: CommandShowCard, SegmentID: seg.ID, Card: seg.Card}
}

func HideCard() Command {
	return Command{Kind: CommandHideCard}
}

// AffectsMedia reports whether the command touches the media element.
func (c Command) AffectsMedia() bool {
	switch c.Kind {
	case CommandPlay, CommandPause, CommandSeek:
		return true
	default:
		return false
	}
}

func (c Command) String() string {
	switch c.Kind {
	case CommandPlay:
		return fmt.Sprintf("play(rate=%g)", c.Rate)
	case CommandSeek:
		return fmt.Sprintf("seek(%g)", c.RealTime)
	case CommandShowCard:
		return fmt.Sprintf("show_card(%s)", c.SegmentID)
	default:
		return c.Kind.String()
	}
}
