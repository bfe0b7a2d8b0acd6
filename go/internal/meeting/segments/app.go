package segments

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/classroom/go/internal/roomname"
	"github.com/mcdev12/classroom/go/internal/timeline"
)

// SegmentsRepository defines what the app layer needs from storage
type SegmentsRepository interface {
	GetSegments(ctx context.Context, meeting string) ([]timeline.Segment, error)
	ReplaceSegments(ctx context.Context, meeting string, segs []timeline.Segment) error
}

// App validates timelines on their way in and out of storage.
type App struct {
	repo SegmentsRepository
}

func NewApp(repo SegmentsRepository) *App {
	return &App{repo: repo}
}

// GetTimeline loads and validates a meeting's timeline.
func (a *App) GetTimeline(ctx context.Context, meeting string) (*timeline.Timeline, error) {
	if err := roomname.Validate(meeting); err != nil {
		return nil, err
	}
	segs, err := a.repo.GetSegments(ctx, meeting)
	if err != nil {
		return nil, err
	}
	tl, err := timeline.New(segs)
	if err != nil {
		return nil, fmt.Errorf("stored timeline for %s is invalid: %w", meeting, err)
	}
	return tl, nil
}

// SaveTimeline replaces a meeting's timeline. The timeline has already been validated by construction.
func (a *App) SaveTimeline(ctx context.Context, meeting string, tl *timeline.Timeline) error {
	if err := roomname.Validate(meeting); err != nil {
		return err
	}
	if err := a.repo.ReplaceSegments(ctx, meeting, tl.Segments()); err != nil {
		return fmt.Errorf("failed to save timeline: %w", err)
	}
	log.Info().
		Str("meeting", meeting).
		Int("segments", tl.Len()).
		Float64("edited_length", tl.TotalEditedLength()).
		Msg("timeline saved")
	return nil
}
