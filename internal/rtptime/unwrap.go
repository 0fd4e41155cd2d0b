// Package rtptime converts RTP and RTCP timestamps into media times.
package rtptime

import (
	"sync"

	"github.com/pion/rtp"
	"github.com/zsiec/mediatime/pkg/mediatime"
)

// DefaultClockRate is the RTP clock of video payloads.
const DefaultClockRate uint32 = 90000

// FromTimestamp returns the RTP timestamp ts as a time on a clock of
// clockRate ticks per second.
func FromTimestamp(ts uint32, clockRate uint32) mediatime.MediaTime {
	return mediatime.New(int64(ts), clockRate)
}

// Sample is one unwrapped timestamp.
type Sample struct {
	// Extended is the timestamp extended to 64 bits.
	Extended int64
	// Time is Extended relative to the first timestamp, at the clock rate.
	Time mediatime.MediaTime
	// Wrapped is set when the timestamp crossed 2^32 going forward.
	Wrapped bool
	// Reordered is set when the timestamp is behind the highest one seen.
	Reordered bool
}

// Unwrapper extends 32-bit RTP timestamps of one stream to 64 bits.
//
// Each timestamp is placed at the signed 32-bit distance from the highest
// timestamp seen so far, so a forward jump across 2^32 counts as a
// wraparound and a backward jump of less than 2^31 is a reordered packet.
type Unwrapper struct {
	clockRate uint32

	mu      sync.Mutex
	started bool
	first   int64
	highest int64
	last    uint32
	wraps   int
}

// NewUnwrapper creates an unwrapper for a clock of clockRate ticks per
// second. Zero selects DefaultClockRate.
func NewUnwrapper(clockRate uint32) *Unwrapper {
	if clockRate == 0 {
		clockRate = DefaultClockRate
	}
	return &Unwrapper{clockRate: clockRate}
}

// ClockRate returns the clock the unwrapper converts with.
func (u *Unwrapper) ClockRate() uint32 {
	return u.clockRate
}

// Unwrap returns ts extended to 64 bits.
func (u *Unwrapper) Unwrap(ts uint32) int64 {
	return u.Observe(ts).Extended
}

// Observe unwraps ts and reports how it relates to earlier timestamps.
func (u *Unwrapper) Observe(ts uint32) Sample {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.started {
		u.started = true
		u.first = int64(ts)
		u.highest = int64(ts)
		u.last = ts
		return Sample{Extended: int64(ts), Time: mediatime.New(0, u.clockRate)}
	}

	// Distance modulo 2^32, read as signed.
	diff := int32(ts - u.last)
	ext := u.highest + int64(diff)

	s := Sample{Extended: ext, Time: mediatime.New(ext-u.first, u.clockRate)}
	if diff < 0 {
		s.Reordered = true
		return s
	}
	if ts < u.last {
		s.Wrapped = true
		u.wraps++
	}
	u.highest = ext
	u.last = ts
	return s
}

// Decode returns the time of pkt relative to the first packet seen, at the
// clock-rate scale. A nil packet gives the invalid time.
func (u *Unwrapper) Decode(pkt *rtp.Packet) mediatime.MediaTime {
	return u.DecodeSample(pkt).Time
}

// DecodeSample is Decode with the wraparound and reorder details.
func (u *Unwrapper) DecodeSample(pkt *rtp.Packet) Sample {
	if pkt == nil {
		return Sample{Time: mediatime.Invalid()}
	}
	return u.Observe(pkt.Timestamp)
}

// Wraps returns the number of forward wraparounds observed.
func (u *Unwrapper) Wraps() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.wraps
}

// Highest returns the highest extended timestamp seen and whether any
// timestamp has been observed.
func (u *Unwrapper) Highest() (int64, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.highest, u.started
}

// Reset forgets all observed timestamps.
func (u *Unwrapper) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.started = false
	u.first, u.highest, u.last, u.wraps = 0, 0, 0, 0
}
