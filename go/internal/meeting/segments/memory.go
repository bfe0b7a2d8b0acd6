package segments

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcdev12/classroom/go/internal/timeline"
)

// MemoryRepository keeps timelines in process. Used when no database is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	meetings map[string][]timeline.Segment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{meetings: make(map[string][]timeline.Segment)}
}

func (m *MemoryRepository) GetSegments(_ context.Context, meeting string) ([]timeline.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	segs, ok := m.meetings[meeting]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMeetingNotFound, meeting)
	}
	return append([]timeline.Segment(nil), segs...), nil
}

func (m *MemoryRepository) ReplaceSegments(_ context.Context, meeting string, segs []timeline.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meetings[meeting] = append([]timeline.Segment(nil), segs...)
	return nil
}
