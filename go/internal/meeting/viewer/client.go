package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/classroom/go/internal/meeting/events"
	"github.com/mcdev12/classroom/go/internal/playback"
	"github.com/mcdev12/classroom/go/internal/roomname"
	"github.com/mcdev12/classroom/go/internal/timeline"
)

// ErrConnectionLost is returned by Run when the gateway connection fails. There is no
// automatic reconnect; rejoining is a fresh Dial.
var ErrConnectionLost = errors.New("connection to gateway lost")

const writeTimeout = 10 * time.Second

// TimelineSource loads a meeting's segment timeline.
type TimelineSource interface {
	Timeline(ctx context.Context, meeting string) (*timeline.Timeline, error)
}

// HTTPTimelineSource fetches timelines from the gateway's segments route.
type HTTPTimelineSource struct {
	BaseURL string
	Client  *http.Client
}

// Timeline implements TimelineSource. A meeting with no stored timeline plays its media unedited.
func (s HTTPTimelineSource) Timeline(ctx context.Context, meeting string) (*timeline.Timeline, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := strings.TrimSuffix(s.BaseURL, "/") + "/api/meetings/" + url.PathEscape(meeting) + "/segments"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch timeline: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return timeline.New(nil)
	default:
		return nil, fmt.Errorf("fetch timeline: unexpected status %s", resp.Status)
	}

	var tl timeline.Timeline
	if err := json.NewDecoder(resp.Body).Decode(&tl); err != nil {
		return nil, err
	}
	return &tl, nil
}

// ClientConfig configures a gateway client.
type ClientConfig struct {
	// GatewayURL is the gateway's http(s) base URL.
	GatewayURL string
	Room       string
	// Source defaults to an HTTPTimelineSource on GatewayURL.
	Source TimelineSource
	// Media may be nil; cards still follow the room without a loaded file.
	Media  playback.Media
	Cards  playback.CardPresenter
	Dialer *websocket.Dialer
}

// Client is one room member. Every member reconciles; any member may also direct.
type Client struct {
	room     string
	conn     *websocket.Conn
	source   TimelineSource
	executor playback.Executor

	writeMu sync.Mutex

	mu         sync.Mutex
	reconciler *Reconciler
	pending    *events.PlaybackState
	last       events.PlaybackState
	live       bool
}

// Dial joins the room over a websocket.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	path, err := roomname.Path(cfg.Room)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(cfg.GatewayURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	resp.Body.Close()

	source := cfg.Source
	if source == nil {
		source = HTTPTimelineSource{BaseURL: cfg.GatewayURL}
	}

	log.Info().Str("room", cfg.Room).Str("url", u.String()).Msg("joined meeting room")
	return &Client{
		room:     cfg.Room,
		conn:     conn,
		source:   source,
		executor: playback.Executor{Media: cfg.Media, Cards: cfg.Cards},
		last:     events.DefaultPlaybackState(),
	}, nil
}

// Run reads room messages until ctx is cancelled or the connection fails.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		c.handle(ctx, data)
	}
}

// UpdateState sends a director update. Nil fields are left unchanged by the gateway.
func (c *Client) UpdateState(upd events.UpdateState) error {
	upd.Type = events.TypeUpdateState
	return c.write(upd)
}

// StartMeeting marks the room live for every member.
func (c *Client) StartMeeting() error {
	return c.write(events.NewStartMeeting())
}

// State returns the last authoritative state received.
func (c *Client) State() events.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Live reports whether meeting_started has been received.
func (c *Client) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Close leaves the room.
func (c *Client) Close() error {
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *Client) handle(ctx context.Context, data []byte) {
	decoded, err := events.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("room", c.room).Msg("dropping malformed gateway message")
		return
	}

	switch msg := decoded.(type) {
	case events.MeetingStarted:
		c.meetingStarted(ctx)
	case events.SyncUpdate:
		c.syncUpdate(msg.State)
	case events.Error:
		log.Warn().Str("room", c.room).Str("error", msg.Error).Msg("gateway rejected request")
	default:
		log.Warn().Str("room", c.room).Str("message_type", fmt.Sprintf("%T", decoded)).Msg("ignoring client message from gateway")
	}
}

func (c *Client) meetingStarted(ctx context.Context) {
	c.mu.Lock()
	c.live = true
	loaded := c.reconciler != nil
	c.mu.Unlock()
	if loaded {
		return
	}

	tl, err := c.source.Timeline(ctx, c.room)
	if err != nil {
		log.Error().Err(err).Str("room", c.room).Msg("failed to load timeline")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconciler = NewReconciler(tl)
	log.Info().
		Str("room", c.room).
		Int("segments", tl.Len()).
		Float64("edited_length", tl.TotalEditedLength()).
		Msg("timeline loaded")

	if c.pending != nil {
		c.reconcileLocked(*c.pending)
		c.pending = nil
	}
}

func (c *Client) syncUpdate(st events.PlaybackState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = st

	if c.reconciler == nil {
		// keep only the newest state until there is a timeline to apply it to
		c.pending = &st
		log.Debug().Err(ErrTimelineUnavailable).Str("room", c.room).Msg("buffering sync update")
		return
	}
	c.reconcileLocked(st)
}

func (c *Client) reconcileLocked(st events.PlaybackState) {
	cmds, err := c.reconciler.Apply(st)
	if err != nil {
		log.Warn().Err(err).Str("room", c.room).Msg("ignoring sync update")
		return
	}
	for _, cmd := range cmds {
		if err := c.executor.Execute(cmd); err != nil {
			log.Warn().Err(err).Str("command", cmd.String()).Msg("media command failed")
			if cmd.Kind == playback.CommandPlay {
				c.reconciler.MediaPaused()
			}
		}
	}
}
