package server

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/zsiec/mediatime/internal/calc"
	"github.com/zsiec/mediatime/internal/errors"
	"github.com/zsiec/mediatime/internal/rtptime"
	"github.com/zsiec/mediatime/internal/timeline"
	"github.com/zsiec/mediatime/pkg/version"
)

// handleVersion handles the /version endpoint
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeJSON(w, r, http.StatusOK, version.GetInfo())
}

func (s *Server) handleDebugInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"protocols": map[string]bool{
			"http11": true,
			"http3":  s.http3Server != nil,
		},
		"ports": map[string]int{
			"http":  s.config.HTTPPort,
			"http3": s.config.HTTP3Port,
		},
		"rate_limited":  s.limiter != nil,
		"debug_enabled": true,
	}
	if s.timelines != nil {
		info["log_sampling"] = s.timelines.LogStats()
	}
	s.writeJSON(w, r, http.StatusOK, info)
}

// writeJSON is a helper to write JSON responses
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("Failed to encode response")
	}
}

// writeError maps domain errors to API errors and writes them.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, toAppError(err))
}

func toAppError(err error) error {
	if errors.IsAppError(err) {
		return err
	}

	var maxBytes *http.MaxBytesError
	switch {
	case stderrors.As(err, &maxBytes):
		return errors.NewPayloadTooLargeError(maxBytes.Limit)
	case stderrors.Is(err, timeline.ErrNotFound):
		return errors.Wrap(err, errors.ErrorTypeNotFound, "timeline not found", http.StatusNotFound)
	case stderrors.Is(err, calc.ErrSyntax),
		stderrors.Is(err, calc.ErrArgument),
		stderrors.Is(err, calc.ErrUnknownOperation),
		stderrors.Is(err, timeline.ErrInvalidRange),
		stderrors.Is(err, timeline.ErrInvalidTime),
		stderrors.Is(err, timeline.ErrInvalidStreamID),
		stderrors.Is(err, rtptime.ErrMalformedRTCP),
		stderrors.Is(err, rtptime.ErrNoSenderReport):
		return errors.WrapValidationError(err, err.Error())
	}
	return err
}

// decodeJSON reads a JSON body into v. Bodies over the configured limit are
// reported as too large, anything undecodable as a validation error.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if stderrors.As(err, &maxBytes) {
			return errors.NewPayloadTooLargeError(maxBytes.Limit)
		}
		if err == io.EOF {
			return errors.NewValidationError("request body is empty")
		}
		return errors.WrapValidationError(err, "invalid JSON body")
	}
	return nil
}

// readBody reads a raw request body.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if stderrors.As(err, &maxBytes) {
			return nil, errors.NewPayloadTooLargeError(maxBytes.Limit)
		}
		return nil, errors.WrapValidationError(err, "failed to read request body")
	}
	if len(data) == 0 {
		return nil, errors.NewValidationError("request body is empty")
	}
	return data, nil
}
