package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/classroom/go/internal/config"
	"github.com/mcdev12/classroom/go/internal/meeting/segments"
	"github.com/mcdev12/classroom/go/internal/roomname"
	"github.com/mcdev12/classroom/go/internal/timeline"
)

const usage = `usage: seed_timeline <meeting> <timeline.json>
       seed_timeline <meeting> --duration <seconds>`

func main() {
	if len(os.Args) != 3 && len(os.Args) != 4 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	meeting := os.Args[1]
	if err := roomname.Validate(meeting); err != nil {
		fmt.Fprintf(os.Stderr, "meeting name: %v\n", err)
		os.Exit(1)
	}

	// 1) Build the timeline from a JSON snapshot or a bare media length
	tl, err := loadTimeline(os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "load timeline: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using the shared config
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := segments.EnsureSchema(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Replace the stored timeline
	if err := segments.NewRepository(pool).ReplaceSegments(ctx, meeting, tl.Segments()); err != nil {
		fmt.Fprintf(os.Stderr, "error saving timeline for %s: %v\n", meeting, err)
		os.Exit(1)
	}

	// 4) Print summary
	fmt.Printf(
		"Timeline seed complete: %s, %d segments, %.3fs edited, %.3fs media, %.3fs of cards\n",
		meeting, tl.Len(), tl.TotalEditedLength(), tl.TotalRealMediaLength(), tl.CardDuration(),
	)
}

func loadTimeline(args []string) (*timeline.Timeline, error) {
	if args[0] == "--duration" {
		if len(args) != 2 {
			return nil, fmt.Errorf("--duration needs a value")
		}
		d, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return nil, fmt.Errorf("duration: %w", err)
		}
		return timeline.FromMedia(d)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, err
	}
	var tl timeline.Timeline
	if err := json.Unmarshal(data, &tl); err != nil {
		return nil, err
	}
	return &tl, nil
}
