package server

import (
	"net/http"

	"github.com/zsiec/mediatime/internal/calc"
	"github.com/zsiec/mediatime/internal/errors"
	"github.com/zsiec/mediatime/pkg/mediatime"
)

// ParseResponse is the body of GET /api/v1/time/parse.
type ParseResponse struct {
	Input   string              `json:"input"`
	Text    string              `json:"text"`
	Value   mediatime.MediaTime `json:"value"`
	Seconds *float64            `json:"seconds,omitempty"`
	Rounded bool                `json:"rounded"`
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"operations": calc.Operations(),
	})
}

// handleEval evaluates a JSON calc.Request.
func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	if s.evaluator == nil {
		s.writeError(w, r, errors.NewServiceDownError("evaluator"))
		return
	}

	var req calc.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.evaluator.Evaluate(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, result)
}

// handleParse parses the value query parameter and echoes the time.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("value")
	if input == "" {
		s.writeError(w, r, errors.NewValidationError("query parameter value is required"))
		return
	}

	t, err := calc.Parse(input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := ParseResponse{
		Input:   input,
		Text:    calc.Format(t),
		Value:   t,
		Rounded: t.HasBeenRounded(),
	}
	if t.IsFinite() {
		seconds := t.ToDouble()
		resp.Seconds = &seconds
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}
