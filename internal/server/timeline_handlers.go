package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pion/rtp"

	"github.com/zsiec/mediatime/internal/calc"
	"github.com/zsiec/mediatime/internal/errors"
	"github.com/zsiec/mediatime/internal/timeline"
	"github.com/zsiec/mediatime/pkg/mediatime"
)

// TimeRequest carries one time in the calc syntax, e.g. {"time":"1001/30000"}.
type TimeRequest struct {
	Time string `json:"time"`
}

// RangeRequest carries a buffered range in the calc syntax.
type RangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TimelineListResponse is the body of GET /api/v1/timelines.
type TimelineListResponse struct {
	Timelines []*timeline.Timeline `json:"timelines"`
	Count     int                  `json:"count"`
}

func (s *Server) handleListTimelines(w http.ResponseWriter, r *http.Request) {
	list, err := s.timelines.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*timeline.Timeline{}
	}
	s.writeJSON(w, r, http.StatusOK, TimelineListResponse{Timelines: list, Count: len(list)})
}

func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	tl, err := s.timelines.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, tl)
}

func (s *Server) handleDeleteTimeline(w http.ResponseWriter, r *http.Request) {
	if err := s.timelines.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	t, err := decodeTime(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondTimeline(w, r)(s.timelines.SetPosition(r.Context(), mux.Vars(r)["id"], t))
}

func (s *Server) handleSetDuration(w http.ResponseWriter, r *http.Request) {
	t, err := decodeTime(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondTimeline(w, r)(s.timelines.SetDuration(r.Context(), mux.Vars(r)["id"], t))
}

func (s *Server) handleAddBuffered(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	start, err := calc.Parse(req.Start)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("start: %w", err))
		return
	}
	end, err := calc.Parse(req.End)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("end: %w", err))
		return
	}

	rng := mediatime.Range{Start: start, End: end}
	s.respondTimeline(w, r)(s.timelines.AddBufferedRange(r.Context(), mux.Vars(r)["id"], rng))
}

// handleRTP applies one raw RTP packet. The optional clock_rate query
// parameter selects the RTP clock, 90kHz by default.
func (s *Server) handleRTP(w http.ResponseWriter, r *http.Request) {
	clockRate, err := clockRateParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(data); err != nil {
		s.writeError(w, r, errors.WrapValidationError(err, "malformed rtp packet"))
		return
	}
	s.respondTimeline(w, r)(s.timelines.ApplyRTP(r.Context(), mux.Vars(r)["id"], pkt, clockRate))
}

// handleRTCP applies the sender reports of a raw RTCP compound packet.
func (s *Server) handleRTCP(w http.ResponseWriter, r *http.Request) {
	clockRate, err := clockRateParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondTimeline(w, r)(s.timelines.ApplyRTCP(r.Context(), mux.Vars(r)["id"], data, clockRate))
}

// respondTimeline writes the result of a timeline update.
func (s *Server) respondTimeline(w http.ResponseWriter, r *http.Request) func(*timeline.Timeline, error) {
	return func(tl *timeline.Timeline, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, tl)
	}
}

func decodeTime(r *http.Request) (mediatime.MediaTime, error) {
	var req TimeRequest
	if err := decodeJSON(r, &req); err != nil {
		return mediatime.Invalid(), err
	}
	return calc.Parse(req.Time)
}

func clockRateParam(r *http.Request) (uint32, error) {
	raw := r.URL.Query().Get("clock_rate")
	if raw == "" {
		return 0, nil
	}
	rate, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || rate == 0 {
		return 0, errors.NewValidationError("clock_rate must be a positive 32-bit integer")
	}
	return uint32(rate), nil
}
