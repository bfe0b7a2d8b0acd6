package timeline

// EditedToReal maps an edited-time position to the offset into the underlying media.
//
// Every question card before edited is subtracted in full. A position inside a card is
// pinned to the real time at the card's start. Positions past the end clamp to the media
// length and negative positions clamp to zero. An empty timeline is the identity.
//
// The transform is one-directional: its output is a real-media time and must not be
// remapped again.
func (t *Timeline) EditedToReal(edited float64) float64 {
	if t == nil || len(t.segments) == 0 {
		return edited
	}
	if !finite(edited) || edited <= 0 {
		return 0
	}
	if edited >= t.edited {
		return t.TotalRealMediaLength()
	}

	offset := 0.0
	for _, s := range t.segments {
		if s.Source.Start >= edited {
			break
		}
		if !s.IsCard() {
			continue
		}
		if edited >= s.Source.End {
			offset += s.Duration()
		} else {
			offset += edited - s.Source.Start
		}
	}
	return edited - offset
}
