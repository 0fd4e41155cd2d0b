// Package timeline keeps the playback state of media streams: the current
// position, the duration, the buffered ranges and the RTCP clock mapping.
package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/zsiec/mediatime/internal/rtptime"
	"github.com/zsiec/mediatime/pkg/mediatime"
)

var (
	// ErrNotFound is returned when no timeline exists for a stream id.
	ErrNotFound = errors.New("timeline not found")
	// ErrInvalidRange is returned for buffered ranges that are empty,
	// reversed or bounded by invalid or indefinite times.
	ErrInvalidRange = errors.New("invalid buffered range")
	// ErrInvalidTime is returned when a position or duration is not usable.
	ErrInvalidTime = errors.New("invalid time")
	// ErrInvalidStreamID is returned for empty stream ids.
	ErrInvalidStreamID = errors.New("invalid stream id")
)

// Timeline is the playback state of one stream.
type Timeline struct {
	StreamID string              `json:"stream_id"`
	Position mediatime.MediaTime `json:"position"`
	Duration mediatime.MediaTime `json:"duration"`
	// Buffered is sorted by start and holds no overlapping or adjacent
	// ranges.
	Buffered []mediatime.Range `json:"buffered"`

	// ClockRate is the RTP clock of the stream, 0 until a packet is applied.
	ClockRate    uint32                       `json:"clock_rate,omitempty"`
	SenderReport *rtptime.SenderReportMapping `json:"sender_report,omitempty"`
	// WallClock is the NTP time of Position, known once a sender report
	// has been applied.
	WallClock *mediatime.MediaTime `json:"wall_clock,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty timeline at position zero with an unknown (invalid)
// duration.
func New(streamID string) *Timeline {
	now := time.Now()
	return &Timeline{
		StreamID:  streamID,
		Position:  mediatime.Zero(),
		Duration:  mediatime.Invalid(),
		Buffered:  []mediatime.Range{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of t.
func (t *Timeline) Clone() *Timeline {
	c := *t
	c.Buffered = append([]mediatime.Range{}, t.Buffered...)
	if t.SenderReport != nil {
		sr := *t.SenderReport
		c.SenderReport = &sr
	}
	if t.WallClock != nil {
		wc := *t.WallClock
		c.WallClock = &wc
	}
	return &c
}

// BufferedRangeAt returns the index of the buffered range holding at, with
// start <= at < end, or -1.
func (t *Timeline) BufferedRangeAt(at mediatime.MediaTime) int {
	for i, r := range t.Buffered {
		if r.Start.LessOrEqual(at) && at.Less(r.End) {
			return i
		}
	}
	return -1
}

// BufferedDuration returns the total length of the buffered ranges. The sum is
// expressed at the stream clock rate, or at mediatime.DefaultTimeScale before
// one is known.
func (t *Timeline) BufferedDuration() mediatime.MediaTime {
	total := mediatime.Zero()
	for _, r := range t.Buffered {
		total = total.Add(r.End.Sub(r.Start))
	}

	scale := t.ClockRate
	if scale == 0 {
		scale = mediatime.DefaultTimeScale
	}
	return total.ToTimeScale(scale, mediatime.RoundHalfAwayFromZero)
}

// ValidateRange checks that r is usable as a buffered range.
func ValidateRange(r mediatime.Range) error {
	for _, bound := range []mediatime.MediaTime{r.Start, r.End} {
		if bound.IsInvalid() || bound.IsIndefinite() {
			return fmt.Errorf("%w: bound %v", ErrInvalidRange, bound)
		}
	}
	if !r.Start.Less(r.End) {
		return fmt.Errorf("%w: start %v is not before end %v", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// AddBuffered inserts r, merging it with every range it overlaps or touches.
func (t *Timeline) AddBuffered(r mediatime.Range) error {
	if err := ValidateRange(r); err != nil {
		return err
	}

	merged := r
	out := make([]mediatime.Range, 0, len(t.Buffered)+1)
	inserted := false
	for _, b := range t.Buffered {
		switch {
		case b.End.Less(merged.Start):
			out = append(out, b)
		case merged.End.Less(b.Start):
			if !inserted {
				out = append(out, merged)
				inserted = true
			}
			out = append(out, b)
		default:
			merged.Start = earlier(merged.Start, b.Start)
			merged.End = later(merged.End, b.End)
		}
	}
	if !inserted {
		out = append(out, merged)
	}

	t.Buffered = out
	return nil
}

// TrimBuffered keeps the last max ranges and returns how many were dropped.
func (t *Timeline) TrimBuffered(max int) int {
	if max <= 0 || len(t.Buffered) <= max {
		return 0
	}
	dropped := len(t.Buffered) - max
	t.Buffered = append([]mediatime.Range{}, t.Buffered[dropped:]...)
	return dropped
}

// Remaining returns the time from Position to Duration. It is invalid while
// the duration is unknown.
func (t *Timeline) Remaining() mediatime.MediaTime {
	return t.Duration.Sub(t.Position)
}

func earlier(a, b mediatime.MediaTime) mediatime.MediaTime {
	if b.Less(a) {
		return b
	}
	return a
}

func later(a, b mediatime.MediaTime) mediatime.MediaTime {
	if b.Greater(a) {
		return b
	}
	return a
}
