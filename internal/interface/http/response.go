package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success bool          `json:"success"`
	Data    any           `json:"data"`
	Error   *APIError     `json:"error"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}

// APIError is the error half of the envelope. Code is stable and machine
// readable; Message is for people.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta is filled in on every response. Count and Limit are only set
// by list endpoints.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	Count     *int      `json:"count,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	s.writeJSONWithMeta(w, r, status, data, nil)
}

func (s *Server) writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta *ResponseMeta) {
	s.writeEnvelope(w, r, status, JSONResponse{
		Success: status < http.StatusBadRequest,
		Data:    data,
		Meta:    meta,
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.writeEnvelope(w, r, status, JSONResponse{Error: &APIError{Code: code, Message: message}})
}

func (s *Server) writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp JSONResponse) {
	meta := resp.Meta
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = s.config.Version
	meta.RequestID = getRequestID(r.Context())
	resp.Meta = meta

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// getQueryParamInt reads an integer query parameter. ok is false when the
// parameter is present but not an integer.
func getQueryParamInt(r *http.Request, key string, def int) (n int, ok bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, false
	}
	return n, true
}
