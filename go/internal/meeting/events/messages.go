package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Wire messages shared by the gateway and its clients. Every message is a JSON object
// with a "type" discriminator.

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownType      = errors.New("unknown message type")
)

// MessageType is the "type" discriminator of a wire message.
type MessageType string

const (
	// client -> server
	TypeUpdateState  MessageType = "update_state"
	TypeStartMeeting MessageType = "start_meeting"

	// server -> client
	TypeSyncUpdate     MessageType = "sync_update"
	TypeMeetingStarted MessageType = "meeting_started"
	TypeError          MessageType = "error"
)

// PlaybackState is the canonical room playback state, in the edited-time domain.
type PlaybackState struct {
	Stopped     bool    `json:"stopped"`
	CurrentTime float64 `json:"current_time"`
	Speed       float64 `json:"speed"`
}

// DefaultPlaybackState is the state of a room nobody has touched yet.
func DefaultPlaybackState() PlaybackState {
	return PlaybackState{Stopped: true, CurrentTime: 0, Speed: 1}
}

// UpdateState is a director's partial state push. Nil fields are left unchanged.
type UpdateState struct {
	Type        MessageType `json:"type"`
	Stopped     *bool       `json:"stopped,omitempty"`
	CurrentTime *float64    `json:"current_time,omitempty"`
	Speed       *float64    `json:"speed,omitempty"`
}

// StartMeeting asks the server to mark the room live.
type StartMeeting struct {
	Type MessageType `json:"type"`
}

// SyncUpdate carries the canonical state to every connection in a room.
type SyncUpdate struct {
	Type   MessageType   `json:"type"`
	State  PlaybackState `json:"state"`
	SentAt time.Time     `json:"sent_at"`
}

// MeetingStarted tells viewers to load the timeline and media.
type MeetingStarted struct {
	Type    MessageType `json:"type"`
	Started bool        `json:"started"`
}

// Error reports a rejected request back to the connection that sent it.
type Error struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error"`
}

func NewUpdateState(stopped *bool, currentTime, speed *float64) UpdateState {
	return UpdateState{Type: TypeUpdateState, Stopped: stopped, CurrentTime: currentTime, Speed: speed}
}

func NewStartMeeting() StartMeeting {
	return StartMeeting{Type: TypeStartMeeting}
}

func NewSyncUpdate(state PlaybackState, sentAt time.Time) SyncUpdate {
	return SyncUpdate{Type: TypeSyncUpdate, State: state, SentAt: sentAt}
}

func NewMeetingStarted() MeetingStarted {
	return MeetingStarted{Type: TypeMeetingStarted, Started: true}
}

func NewError(err error) Error {
	return Error{Type: TypeError, Error: err.Error()}
}

type envelope struct {
	Type MessageType `json:"type"`
}

// Decode parses a wire message into its concrete type: UpdateState, StartMeeting,
// SyncUpdate, MeetingStarted or Error.
func Decode(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.Type {
	case TypeUpdateState:
		return decodeAs[UpdateState](data)
	case TypeStartMeeting:
		return StartMeeting{Type: TypeStartMeeting}, nil
	case TypeSyncUpdate:
		return decodeAs[SyncUpdate](data)
	case TypeMeetingStarted:
		return decodeAs[MeetingStarted](data)
	case TypeError:
		return decodeAs[Error](data)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodeAs[T any](data []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return msg, nil
}
