package rtptime

import (
	"errors"
	"fmt"
	"time"

	"github.com/pion/rtcp"
	"github.com/zsiec/mediatime/pkg/mediatime"
)

// NTPScale is the scale of times converted from NTP timestamps.
const NTPScale uint32 = 1000000000

// ntpUnixOffset is the number of seconds from 1900-01-01 to 1970-01-01.
const ntpUnixOffset = 2208988800

// ErrNoSenderReport is returned when an RTCP compound packet carries no
// sender report.
var ErrNoSenderReport = errors.New("rtcp packet has no sender report")

// ErrMalformedRTCP is returned for data that does not decode as RTCP.
var ErrMalformedRTCP = errors.New("malformed rtcp packet")

// NTPTime converts a 64-bit NTP timestamp (32.32 fixed point seconds since
// 1900) into nanoseconds at NTPScale. Fractions that are not a whole number
// of nanoseconds are rounded to nearest and the result is flagged rounded.
func NTPTime(ntp uint64) mediatime.MediaTime {
	seconds := ntp >> 32
	frac := ntp & 0xFFFFFFFF

	// frac < 2^32 and NTPScale < 2^30, so the product fits.
	scaled := frac * uint64(NTPScale)
	nanos := (scaled + 1<<31) >> 32

	flags := mediatime.FlagValid
	if scaled&0xFFFFFFFF != 0 {
		flags |= mediatime.FlagHasBeenRounded
	}
	// seconds < 2^32, so the value stays below 2^63.
	return mediatime.FromRational(int64(seconds*uint64(NTPScale)+nanos), NTPScale, flags)
}

// ToNTP converts a time on the NTP timeline back to a 64-bit NTP timestamp.
// Times that are not finite or fall outside the NTP era give 0.
func ToNTP(t mediatime.MediaTime) uint64 {
	if !t.IsFinite() {
		return 0
	}
	ns := t.ToTimeScale(NTPScale, mediatime.RoundHalfAwayFromZero)
	if !ns.IsFinite() || ns.TimeValue() < 0 {
		return 0
	}
	v := uint64(ns.TimeValue())
	seconds := v / uint64(NTPScale)
	if seconds > 0xFFFFFFFF {
		return 0
	}
	frac := ((v % uint64(NTPScale)) << 32) / uint64(NTPScale)
	return seconds<<32 | frac
}

// WallClock converts a time on the NTP timeline to a time.Time.
func WallClock(t mediatime.MediaTime) time.Time {
	ns := t.ToTimeScale(NTPScale, mediatime.RoundHalfAwayFromZero)
	if !ns.IsFinite() {
		return time.Time{}
	}
	return time.Unix(-ntpUnixOffset, 0).Add(time.Duration(ns.TimeValue()))
}

// SenderReportMapping ties the RTP clock of a stream to the NTP timeline, as
// announced by an RTCP sender report.
type SenderReportMapping struct {
	SSRC         uint32              `json:"ssrc"`
	NTP          mediatime.MediaTime `json:"ntp"`
	RTPTimestamp uint32              `json:"rtp_timestamp"`
	ClockRate    uint32              `json:"clock_rate"`
	PacketCount  uint32              `json:"packet_count"`
	OctetCount   uint32              `json:"octet_count"`
}

// FromSenderReport builds the mapping announced by sr for a clock of
// clockRate ticks per second. Zero selects DefaultClockRate.
func FromSenderReport(sr *rtcp.SenderReport, clockRate uint32) SenderReportMapping {
	if clockRate == 0 {
		clockRate = DefaultClockRate
	}
	return SenderReportMapping{
		SSRC:         sr.SSRC,
		NTP:          NTPTime(sr.NTPTime),
		RTPTimestamp: sr.RTPTime,
		ClockRate:    clockRate,
		PacketCount:  sr.PacketCount,
		OctetCount:   sr.OctetCount,
	}
}

// RTPTime returns the reported RTP timestamp as a time at the clock rate.
func (m SenderReportMapping) RTPTime() mediatime.MediaTime {
	return FromTimestamp(m.RTPTimestamp, m.ClockRate)
}

// ToWallClock maps rtpTime, a time on the same RTP clock as RTPTime, onto the
// NTP timeline.
func (m SenderReportMapping) ToWallClock(rtpTime mediatime.MediaTime) mediatime.MediaTime {
	return m.NTP.Add(rtpTime.Sub(m.RTPTime()))
}

// TimestampToWallClock maps a raw RTP timestamp onto the NTP timeline. The
// timestamp is taken at its signed 32-bit distance from the reported one, so
// timestamps on either side of a wraparound map correctly.
func (m SenderReportMapping) TimestampToWallClock(ts uint32) mediatime.MediaTime {
	offset := mediatime.New(int64(int32(ts-m.RTPTimestamp)), m.ClockRate)
	return m.NTP.Add(offset)
}

// SenderReports decodes an RTCP compound packet and returns its sender
// reports in order.
func SenderReports(raw []byte) ([]*rtcp.SenderReport, error) {
	pkts, err := rtcp.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRTCP, err)
	}

	var reports []*rtcp.SenderReport
	for _, p := range pkts {
		if sr, ok := p.(*rtcp.SenderReport); ok {
			reports = append(reports, sr)
		}
	}
	if len(reports) == 0 {
		return nil, ErrNoSenderReport
	}
	return reports, nil
}
