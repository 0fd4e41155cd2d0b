package logger

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Log categories for high frequency events.
const (
	CategoryRTPPacket     = "rtp_packet"
	CategoryRTPWrap       = "rtp_wrap"
	CategoryRTPReorder    = "rtp_reorder"
	CategorySenderReport  = "sender_report"
	CategoryRoundedResult = "rounded_result"
)

// SampledLogger drops messages of a category beyond its token bucket.
// Categories without a sampler are always logged. Errors are never sampled.
type SampledLogger struct {
	base     Logger
	mu       sync.RWMutex
	samplers map[string]*sampler
}

type sampler struct {
	limiter *rate.Limiter
	logged  atomic.Int64
	dropped atomic.Int64
}

// SamplerStats reports what a category let through.
type SamplerStats struct {
	Logged  int64 `json:"logged"`
	Dropped int64 `json:"dropped"`
}

// NewSampledLogger wraps base with no samplers configured.
func NewSampledLogger(base Logger) *SampledLogger {
	return &SampledLogger{base: base, samplers: make(map[string]*sampler)}
}

// NewRTPLogger returns a sampled logger tuned for per-packet timeline updates.
func NewRTPLogger(base Logger) *SampledLogger {
	return NewSampledLogger(base).
		WithSampler(CategoryRTPPacket, 1, 5).
		WithSampler(CategoryRTPReorder, 2, 5).
		WithSampler(CategoryRTPWrap, 1, 3).
		WithSampler(CategorySenderReport, 1, 2).
		WithSampler(CategoryRoundedResult, 5, 10)
}

// WithSampler limits category to perSecond messages with the given burst.
func (s *SampledLogger) WithSampler(category string, perSecond float64, burst int) *SampledLogger {
	s.mu.Lock()
	s.samplers[category] = &sampler{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
	s.mu.Unlock()
	return s
}

func (s *SampledLogger) allow(category string) bool {
	s.mu.RLock()
	sm, ok := s.samplers[category]
	s.mu.RUnlock()
	if !ok {
		return true
	}
	if sm.limiter.Allow() {
		sm.logged.Add(1)
		return true
	}
	sm.dropped.Add(1)
	return false
}

// LogCategory logs msg at level unless category is over its budget.
func (s *SampledLogger) LogCategory(level logrus.Level, category, msg string, fields Fields) {
	if level > logrus.ErrorLevel && !s.allow(category) {
		return
	}
	entry := s.base.WithField("category", category)
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Log(level, msg)
}

// DebugWithCategory is LogCategory at debug level.
func (s *SampledLogger) DebugWithCategory(category, msg string, fields Fields) {
	s.LogCategory(logrus.DebugLevel, category, msg, fields)
}

// InfoWithCategory is LogCategory at info level.
func (s *SampledLogger) InfoWithCategory(category, msg string, fields Fields) {
	s.LogCategory(logrus.InfoLevel, category, msg, fields)
}

// WarnWithCategory is LogCategory at warn level.
func (s *SampledLogger) WarnWithCategory(category, msg string, fields Fields) {
	s.LogCategory(logrus.WarnLevel, category, msg, fields)
}

// Stats returns the counters of every configured category.
func (s *SampledLogger) Stats() map[string]SamplerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]SamplerStats, len(s.samplers))
	for name, sm := range s.samplers {
		stats[name] = SamplerStats{Logged: sm.logged.Load(), Dropped: sm.dropped.Load()}
	}
	return stats
}

// Base returns the wrapped logger.
func (s *SampledLogger) Base() Logger { return s.base }
