package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/zsiec/mediatime/internal/logger"
	"github.com/zsiec/mediatime/internal/metrics"
	"github.com/zsiec/mediatime/internal/rtptime"
	"github.com/zsiec/mediatime/pkg/mediatime"
)

// Update kinds, used as the metrics label.
const (
	UpdatePosition     = "position"
	UpdateDuration     = "duration"
	UpdateBuffered     = "buffered"
	UpdateRTP          = "rtp"
	UpdateSenderReport = "sender_report"
)

// Options configure a Service.
type Options struct {
	// MaxBufferedRanges bounds Timeline.Buffered; the earliest ranges are
	// dropped first. Zero means unbounded.
	MaxBufferedRanges int
	// DefaultClockRate is used when an RTP or RTCP update gives no clock
	// rate.
	DefaultClockRate uint32
}

// Service applies updates to the timelines held by a Store. Each update is a
// read-modify-write of one timeline; updates are serialized per service.
type Service struct {
	store   Store
	opts    Options
	logger  logger.Logger
	sampled *logger.SampledLogger

	mu         sync.Mutex
	unwrappers map[string]*rtptime.Unwrapper
}

func NewService(store Store, opts Options, log logger.Logger) *Service {
	if opts.DefaultClockRate == 0 {
		opts.DefaultClockRate = rtptime.DefaultClockRate
	}
	log = log.WithField("component", "timeline")
	return &Service{
		store:      store,
		opts:       opts,
		logger:     log,
		sampled:    logger.NewRTPLogger(log),
		unwrappers: make(map[string]*rtptime.Unwrapper),
	}
}

// update runs fn on the timeline of streamID, creating it when missing, and
// stores the result. created reports whether the timeline was new.
func (s *Service) update(ctx context.Context, streamID, kind string, fn func(tl *Timeline, created bool) error) (*Timeline, error) {
	if streamID == "" {
		return nil, ErrInvalidStreamID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := false
	tl, err := s.store.Get(ctx, streamID)
	if errors.Is(err, ErrNotFound) {
		tl, created = New(streamID), true
	} else if err != nil {
		return nil, err
	}

	if err := fn(tl, created); err != nil {
		return nil, err
	}
	tl.UpdatedAt = time.Now()

	if err := s.store.Put(ctx, tl); err != nil {
		return nil, err
	}
	metrics.RecordTimelineUpdate(kind)

	if created {
		s.logger.WithFields(logger.Fields{"stream_id": streamID, "kind": kind}).Info("Timeline created")
	}
	return tl, nil
}

// SetPosition moves the playback position. The position must be finite.
func (s *Service) SetPosition(ctx context.Context, streamID string, position mediatime.MediaTime) (*Timeline, error) {
	if !position.IsFinite() {
		return nil, fmt.Errorf("%w: position %v is not finite", ErrInvalidTime, position)
	}
	return s.update(ctx, streamID, UpdatePosition, func(tl *Timeline, _ bool) error {
		tl.Position = position
		tl.WallClock = nil
		return nil
	})
}

// SetDuration sets the stream duration. Indefinite marks a live stream and
// positive infinity an unbounded one; the invalid time is rejected.
func (s *Service) SetDuration(ctx context.Context, streamID string, duration mediatime.MediaTime) (*Timeline, error) {
	if duration.IsInvalid() || duration.IsNegativeInfinite() || duration.Less(mediatime.Zero()) {
		return nil, fmt.Errorf("%w: duration %v", ErrInvalidTime, duration)
	}
	return s.update(ctx, streamID, UpdateDuration, func(tl *Timeline, _ bool) error {
		tl.Duration = duration
		return nil
	})
}

// AddBufferedRange merges r into the buffered ranges.
func (s *Service) AddBufferedRange(ctx context.Context, streamID string, r mediatime.Range) (*Timeline, error) {
	if err := ValidateRange(r); err != nil {
		return nil, err
	}
	return s.update(ctx, streamID, UpdateBuffered, func(tl *Timeline, _ bool) error {
		if err := tl.AddBuffered(r); err != nil {
			return err
		}
		if dropped := tl.TrimBuffered(s.opts.MaxBufferedRanges); dropped > 0 {
			s.logger.WithFields(logger.Fields{"stream_id": streamID, "dropped": dropped}).Debug("Dropped oldest buffered ranges")
		}
		return nil
	})
}

// unwrapper returns the unwrapper of streamID, replacing it when the clock
// rate changes or the timeline is new. Callers hold s.mu.
func (s *Service) unwrapper(streamID string, clockRate uint32, fresh bool) *rtptime.Unwrapper {
	u, ok := s.unwrappers[streamID]
	if !ok || fresh || u.ClockRate() != clockRate {
		u = rtptime.NewUnwrapper(clockRate)
		s.unwrappers[streamID] = u
	}
	return u
}

func (s *Service) clockRate(clockRate uint32) uint32 {
	if clockRate == 0 {
		return s.opts.DefaultClockRate
	}
	return clockRate
}

// ApplyRTP moves the position to the time of pkt relative to the first packet
// of the stream. Reordered packets are counted but leave the position alone.
func (s *Service) ApplyRTP(ctx context.Context, streamID string, pkt *rtp.Packet, clockRate uint32) (*Timeline, error) {
	if pkt == nil {
		return nil, fmt.Errorf("%w: no rtp packet", ErrInvalidTime)
	}
	rate := s.clockRate(clockRate)

	return s.update(ctx, streamID, UpdateRTP, func(tl *Timeline, created bool) error {
		sample := s.unwrapper(streamID, rate, created || tl.ClockRate != rate).DecodeSample(pkt)
		metrics.RecordRTPPacket(sample.Wrapped, sample.Reordered)

		fields := logger.Fields{
			"stream_id": streamID,
			"seq":       pkt.SequenceNumber,
			"timestamp": pkt.Timestamp,
		}
		switch {
		case sample.Wrapped:
			s.sampled.InfoWithCategory(logger.CategoryRTPWrap, "RTP timestamp wrapped", fields)
		case sample.Reordered:
			s.sampled.DebugWithCategory(logger.CategoryRTPReorder, "Reordered RTP packet", fields)
			return nil
		default:
			s.sampled.DebugWithCategory(logger.CategoryRTPPacket, "RTP packet applied", fields)
		}

		tl.ClockRate = rate
		tl.Position = sample.Time
		if tl.SenderReport != nil && tl.SenderReport.ClockRate == rate {
			wc := tl.SenderReport.TimestampToWallClock(pkt.Timestamp)
			tl.WallClock = &wc
		}
		return nil
	})
}

// ApplySenderReport records the NTP to RTP mapping announced by sr.
func (s *Service) ApplySenderReport(ctx context.Context, streamID string, sr *rtcp.SenderReport, clockRate uint32) (*Timeline, error) {
	if sr == nil {
		return nil, fmt.Errorf("%w: no sender report", ErrInvalidTime)
	}
	rate := s.clockRate(clockRate)

	return s.update(ctx, streamID, UpdateSenderReport, func(tl *Timeline, _ bool) error {
		mapping := rtptime.FromSenderReport(sr, rate)
		tl.SenderReport = &mapping
		metrics.RecordSenderReport()

		s.sampled.InfoWithCategory(logger.CategorySenderReport, "Sender report applied", logger.Fields{
			"stream_id": streamID,
			"ssrc":      sr.SSRC,
			"ntp":       mapping.NTP.String(),
			"rtp_time":  sr.RTPTime,
		})
		return nil
	})
}

// ApplyRTCP decodes an RTCP compound packet and applies its sender reports in
// order.
func (s *Service) ApplyRTCP(ctx context.Context, streamID string, raw []byte, clockRate uint32) (*Timeline, error) {
	reports, err := rtptime.SenderReports(raw)
	if err != nil {
		return nil, err
	}

	var tl *Timeline
	for _, sr := range reports {
		if tl, err = s.ApplySenderReport(ctx, streamID, sr, clockRate); err != nil {
			return nil, err
		}
	}
	return tl, nil
}

// Get returns the timeline of streamID or ErrNotFound.
func (s *Service) Get(ctx context.Context, streamID string) (*Timeline, error) {
	return s.store.Get(ctx, streamID)
}

// List returns every live timeline and updates the active timelines gauge.
func (s *Service) List(ctx context.Context) ([]*Timeline, error) {
	timelines, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetActiveTimelines(len(timelines))
	return timelines, nil
}

// Delete removes the timeline of streamID and its RTP state.
func (s *Service) Delete(ctx context.Context, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, streamID); err != nil {
		return err
	}
	delete(s.unwrappers, streamID)
	s.logger.WithField("stream_id", streamID).Info("Timeline deleted")
	return nil
}

// Store returns the backing store.
func (s *Service) Store() Store {
	return s.store
}

// LogStats returns the sampling counters of the RTP logger.
func (s *Service) LogStats() map[string]logger.SamplerStats {
	return s.sampled.Stats()
}
