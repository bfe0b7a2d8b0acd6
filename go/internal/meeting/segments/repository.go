package segments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mcdev12/classroom/go/internal/sqlutil"
	"github.com/mcdev12/classroom/go/internal/timeline"
)

var ErrMeetingNotFound = errors.New("meeting not found")

// DBTX is what the repository needs from Postgres. *pgxpool.Pool satisfies it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository stores meeting timelines in the meetings and video_segments tables.
type Repository struct {
	db DBTX
}

func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

const (
	selectMeetingID = `SELECT id FROM meetings WHERE name = $1`

	selectSegments = `SELECT segment_id, kind, source_start, source_end, card
FROM video_segments
WHERE meeting_id = $1
ORDER BY position`

	upsertMeeting = `INSERT INTO meetings (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET updated_at = now()
RETURNING id`

	deleteSegments = `DELETE FROM video_segments WHERE meeting_id = $1`

	insertSegment = `INSERT INTO video_segments (meeting_id, position, segment_id, kind, source_start, source_end, card)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

// GetSegments returns the stored segments of a meeting in timeline order.
func (r *Repository) GetSegments(ctx context.Context, meeting string) ([]timeline.Segment, error) {
	var meetingID int64
	err := r.db.QueryRow(ctx, selectMeetingID, meeting).Scan(&meetingID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMeetingNotFound, meeting)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}

	rows, err := r.db.Query(ctx, selectSegments, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	var segs []timeline.Segment
	for rows.Next() {
		var (
			seg  timeline.Segment
			kind string
			card []byte
		)
		if err := rows.Scan(&seg.ID, &kind, &seg.Source.Start, &seg.Source.End, &card); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		if err := seg.Kind.UnmarshalText([]byte(kind)); err != nil {
			return nil, fmt.Errorf("segment %s: %w", seg.ID, err)
		}
		seg.Card = sqlutil.FromNullJSON(card)
		segs = append(segs, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read segments: %w", err)
	}
	return segs, nil
}

// ReplaceSegments overwrites a meeting's segments in one transaction, creating the meeting if needed.
func (r *Repository) ReplaceSegments(ctx context.Context, meeting string, segs []timeline.Segment) error {
	return sqlutil.Run(ctx, r.db, func(tx pgx.Tx) error {
		var meetingID int64
		if err := tx.QueryRow(ctx, upsertMeeting, meeting).Scan(&meetingID); err != nil {
			return fmt.Errorf("failed to upsert meeting: %w", err)
		}
		if _, err := tx.Exec(ctx, deleteSegments, meetingID); err != nil {
			return fmt.Errorf("failed to clear segments: %w", err)
		}
		for i, seg := range segs {
			_, err := tx.Exec(ctx, insertSegment,
				meetingID, i, seg.ID, seg.Kind.String(), seg.Source.Start, seg.Source.End, sqlutil.ToNullJSON(seg.Card))
			if err != nil {
				return fmt.Errorf("failed to insert segment %s: %w", seg.ID, err)
			}
		}
		return nil
	})
}
