package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/classroom/go/internal/meeting/events"
	"github.com/mcdev12/classroom/go/internal/meeting/viewer"
	"github.com/mcdev12/classroom/go/internal/roomname"
)

var (
	gatewayURL string
	room       string
	logLevel   string

	stopped     bool
	currentTime float64
	speed       float64
)

var rootCmd = &cobra.Command{
	Use:   "syncctl",
	Short: "Join a meeting room as a viewer or director",
	Long: `syncctl connects to a meeting gateway. watch follows the room and logs the media
and card commands a viewer would run; direct and start drive the room.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

		// display names like "Algebra 101" map onto the room the gateway url uses
		if safe := roomname.Sanitize(room); safe != room {
			log.Info().Str("room", room).Str("sanitized", safe).Msg("using sanitized room name")
			room = safe
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a room and log reconciled playback",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, err := viewer.Dial(ctx, viewer.ClientConfig{
			GatewayURL: gatewayURL,
			Room:       room,
			Media:      logMedia{},
			Cards:      logCards{},
		})
		if err != nil {
			return err
		}
		defer client.Close()

		err = client.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var directCmd = &cobra.Command{
	Use:   "direct",
	Short: "Send a playback update to a room",
	Example: `  syncctl direct --room algebra --stopped=false --time 42
  syncctl direct --room algebra --speed 1.5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var upd events.UpdateState
		flags := cmd.Flags()
		if flags.Changed("stopped") {
			upd.Stopped = &stopped
		}
		if flags.Changed("time") {
			upd.CurrentTime = &currentTime
		}
		if flags.Changed("speed") {
			upd.Speed = &speed
		}
		if upd.Stopped == nil && upd.CurrentTime == nil && upd.Speed == nil {
			return fmt.Errorf("nothing to send: set --stopped, --time or --speed")
		}

		return withClient(cmd.Context(), func(c *viewer.Client) error {
			return c.UpdateState(upd)
		})
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Mark a room's meeting as started",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(c *viewer.Client) error {
			return c.StartMeeting()
		})
	},
}

func withClient(ctx context.Context, fn func(c *viewer.Client) error) error {
	client, err := viewer.Dial(ctx, viewer.ClientConfig{GatewayURL: gatewayURL, Room: room})
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

type logMedia struct{}

func (logMedia) Play(rate float64) error {
	log.Info().Float64("rate", rate).Msg("media play")
	return nil
}

func (logMedia) Pause() error {
	log.Info().Msg("media pause")
	return nil
}

func (logMedia) Seek(realTime float64) error {
	log.Info().Float64("real_time", realTime).Msg("media seek")
	return nil
}

type logCards struct{}

func (logCards) ShowCard(segmentID string, card json.RawMessage) {
	log.Info().Str("segment_id", segmentID).RawJSON("card", card).Msg("show card")
}

func (logCards) HideCard() {
	log.Info().Msg("hide card")
}

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()

	defaultGateway := os.Getenv("GATEWAY_URL")
	if defaultGateway == "" {
		defaultGateway = "http://localhost:8081"
	}

	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway", defaultGateway, "gateway base URL")
	rootCmd.PersistentFlags().StringVar(&room, "room", "", "meeting room name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")
	rootCmd.MarkPersistentFlagRequired("room")

	directCmd.Flags().BoolVar(&stopped, "stopped", true, "pause playback")
	directCmd.Flags().Float64Var(&currentTime, "time", 0, "edited-time position in seconds")
	directCmd.Flags().Float64Var(&speed, "speed", 1, "playback rate")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(directCmd)
	rootCmd.AddCommand(startCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
