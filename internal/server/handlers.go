package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/truepricereport/leadgen/internal/valuation"
)

// estimateRequest is the valuation proxy request body.
type estimateRequest struct {
	StreetAddress string `json:"streetAddress"`
	Zipcode       string `json:"zipcode"`
}

// errorBody is the error response shape shared by both proxies.
type errorBody struct {
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// handleEstimate implements the valuation proxy: validate input, then walk
// token → search → summary through the valuation service. Each upstream hop
// is a single attempt; failures propagate with the upstream status.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.CoreLogic.Configured() || s.val == nil {
		zap.L().Error("corelogic credentials not configured")
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Message: "Server configuration error: CoreLogic credentials missing.",
		})
		return
	}

	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Invalid JSON in request body."})
		return
	}
	if req.StreetAddress == "" || req.Zipcode == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Missing streetAddress or zipcode in request body."})
		return
	}

	est, err := s.val.Estimate(r.Context(), req.StreetAddress, req.Zipcode)
	if err != nil {
		var le *valuation.LookupError
		if errors.As(err, &le) {
			status := le.StatusCode
			if status == 0 {
				status = http.StatusInternalServerError
			}
			writeJSON(w, status, errorBody{Message: le.Message, Details: le.Details})
			return
		}
		zap.L().Error("estimate lookup failed",
			zap.String("street_address", req.StreetAddress),
			zap.String("zipcode", req.Zipcode),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Message: "Internal server error",
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, est)
}

// handleLead implements the CRM proxy: the body is forwarded unmodified
// except that primary_agent_id is always overwritten with the configured
// default. The CRM's status and body come back verbatim.
func (s *Server) handleLead(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Brivity.APIToken == "" || s.crm == nil {
		zap.L().Error("brivity api token not configured")
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Message: "Server configuration error: Brivity API token missing.",
		})
		return
	}
	if s.cfg.Brivity.PrimaryAgentID == 0 {
		zap.L().Error("brivity primary agent id not configured")
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Message: "Server configuration error: Brivity Primary Agent ID missing.",
		})
		return
	}

	// Decoding JSON null into a map succeeds and leaves it nil; treat that
	// as invalid input rather than writing into a nil map.
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Invalid JSON in request body."})
		return
	}

	payload["primary_agent_id"] = s.cfg.Brivity.PrimaryAgentID

	resp, err := s.crm.CreateLead(r.Context(), payload)
	if err != nil {
		zap.L().Error("lead forward failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Message: "Internal server error",
			Error:   err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body) //nolint:errcheck
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}
