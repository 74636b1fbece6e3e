package collector

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/trace2pass/trace2pass/internal/report"
)

// APIResponse wraps a successful API response with data and optional
// pagination metadata.
type APIResponse struct {
	Data any      `json:"data"`
	Meta *APIMeta `json:"meta,omitempty"`
}

// APIMeta carries pagination metadata.
type APIMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// APIError is the envelope for a failed API response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail carries the error code, message, and optional detail.
type APIErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("collector: encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{
		Error: APIErrorDetail{Code: code, Message: message},
	})
}

// registerAPIRoutes registers every /api/v1/ route on s.mux.
func (s *Server) registerAPIRoutes() {
	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next(w, r)
		}
	}

	jsonMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			next(w, r)
		}
	}

	api := func(handler http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(jsonMiddleware(handler))
	}

	s.mux.HandleFunc("/api/v1/health", api(s.handleHealth))
	s.mux.HandleFunc("/api/v1/report", api(s.handleReport))
	s.mux.HandleFunc("/api/v1/queue", api(s.handleQueue))
	s.mux.HandleFunc("/api/v1/reports", api(s.handleReportsCollection))
	s.mux.HandleFunc("/api/v1/reports/", api(s.handleReportByID))
	s.mux.HandleFunc("/api/v1/stats", api(s.handleStats))
	s.mux.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReport handles POST /api/v1/report, the runtime library's
// dual-sink HTTP submission endpoint.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var anomaly report.Anomaly
	if err := json.NewDecoder(r.Body).Decode(&anomaly); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid anomaly report body")
		return
	}
	if !anomaly.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_kind", "unknown check kind")
		return
	}
	if anomaly.Timestamp.IsZero() {
		anomaly.Timestamp = time.Now()
	}

	resp, err := ask[SubmitReportResponse](r.Context(), s.actorRef,
		SubmitReportRequest{Anomaly: anomaly})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "submit_failed", err.Error())
		return
	}

	s.hub.BroadcastRecord("report.submitted", resp.Record)

	writeJSON(w, http.StatusCreated, APIResponse{Data: resp.Record})
}

// handleQueue handles GET /api/v1/queue, the triage queue sorted by
// descending priority.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	states := []report.TriageState{
		report.TriageNew, report.TriageUnderDiagnosis,
	}
	if raw := r.URL.Query().Get("state"); raw != "" {
		states = nil
		for _, s := range strings.Split(raw, ",") {
			states = append(states, report.TriageState(s))
		}
	}

	resp, err := ask[ListQueueResponse](r.Context(), s.actorRef,
		ListQueueRequest{States: states})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "queue_failed", err.Error())
		return
	}

	now := time.Now()
	recs := resp.Records
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Priority(now) > recs[j].Priority(now)
	})

	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(recs) {
		recs = recs[:limit]
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Data: recs,
		Meta: &APIMeta{Total: len(recs), Page: 1, PageSize: len(recs)},
	})
}

// handleReportsCollection handles DELETE /api/v1/reports, clearing the
// entire store. Used by test fixtures and operator-triggered resets.
func (s *Server) handleReportsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	resp, err := ask[DeleteAllRecordsResponse](r.Context(), s.actorRef, DeleteAllRecordsRequest{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	if resp.Err != nil {
		writeError(w, http.StatusInternalServerError, "delete_failed", resp.Err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReportByID handles GET/PATCH/DELETE /api/v1/reports/{id}.
func (s *Server) handleReportByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	id = strings.Split(id, "/")[0]
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "record id required")
		return
	}

	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		resp, err := ask[GetRecordResponse](ctx, s.actorRef, GetRecordRequest{ID: id})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
			return
		}
		if !resp.Found {
			writeError(w, http.StatusNotFound, "not_found", "record not found")
			return
		}

		diag, _ := ask[GetDiagnosisResponse](ctx, s.actorRef,
			GetDiagnosisRequest{ReportID: id})

		data := map[string]any{"record": resp.Record}
		if diag.Found {
			data["diagnosis"] = diag.Diagnosis
		}
		writeJSON(w, http.StatusOK, APIResponse{Data: data})

	case http.MethodPatch:
		var body struct {
			TriageState report.TriageState `json:"triage_state"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
			return
		}

		resp, err := ask[SetTriageResponse](ctx, s.actorRef,
			SetTriageRequest{ID: id, State: body.TriageState})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "update_failed", err.Error())
			return
		}
		if resp.Err != nil {
			writeError(w, http.StatusNotFound, "not_found", resp.Err.Error())
			return
		}

		rec, err := ask[GetRecordResponse](ctx, s.actorRef, GetRecordRequest{ID: id})
		if err == nil && rec.Found {
			s.hub.BroadcastRecord("record.updated", rec.Record)
		}

		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		resp, err := ask[DeleteRecordResponse](ctx, s.actorRef, DeleteRecordRequest{ID: id})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "delete_failed", err.Error())
			return
		}
		if resp.Err != nil {
			writeError(w, http.StatusNotFound, "not_found", resp.Err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	resp, err := ask[StatsResponse](r.Context(), s.actorRef, StatsRequest{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: resp.Stats})
}
