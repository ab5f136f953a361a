package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gzhole/promptshield/internal/attack"
	"github.com/gzhole/promptshield/internal/catalog"
	"github.com/gzhole/promptshield/internal/detect"
	"github.com/gzhole/promptshield/internal/pipeline"
	"github.com/gzhole/promptshield/internal/policy"
	"github.com/gzhole/promptshield/internal/store"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Success: false, Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// logRequest is a record finished by an external client, usually the
// extension running its own copy of the pipeline.
type logRequest struct {
	OriginalPrompt   string             `json:"originalPrompt"`
	MaskedPrompt     string             `json:"maskedPrompt"`
	Platform         string             `json:"platform"`
	RiskScore        int                `json:"riskScore"`
	RiskLevel        catalog.Level      `json:"riskLevel"`
	Detections       []detect.Detection `json:"detections"`
	PolicyViolations []policy.Violation `json:"policyViolations"`
	AttacksDetected  []attack.Match     `json:"attacksDetected"`
	UserID           string             `json:"userId"`
	Department       string             `json:"department"`
}

type logResponse struct {
	Success   bool   `json:"success"`
	LogID     string `json:"logId"`
	RiskScore int    `json:"riskScore"`
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OriginalPrompt == "" || req.MaskedPrompt == "" {
		writeError(w, http.StatusBadRequest, "Missing originalPrompt or maskedPrompt")
		return
	}
	if req.RiskScore < 0 || req.RiskScore > 100 {
		writeError(w, http.StatusBadRequest, "riskScore must be between 0 and 100")
		return
	}
	level := req.RiskLevel
	switch {
	case level == "":
		level = fallbackLevel(req.OriginalPrompt, req.MaskedPrompt)
	case !level.Valid():
		writeError(w, http.StatusBadRequest, "unknown riskLevel "+strconv.Quote(string(level)))
		return
	}

	id, err := s.store.Append(r.Context(), &store.Record{
		OriginalPrompt:   req.OriginalPrompt,
		MaskedPrompt:     req.MaskedPrompt,
		Platform:         req.Platform,
		RiskScore:        req.RiskScore,
		RiskLevel:        level,
		Detections:       req.Detections,
		PolicyViolations: req.PolicyViolations,
		AttacksDetected:  req.AttacksDetected,
		Outcome:          store.OutcomeExternal,
		UserID:           req.UserID,
		Department:       req.Department,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to store external record")
		writeError(w, http.StatusInternalServerError, "Server Error")
		return
	}
	writeJSON(w, http.StatusCreated, logResponse{Success: true, LogID: id, RiskScore: req.RiskScore})
}

// fallbackLevel is used for clients that predate risk scoring: anything that
// was masked at all counts as HIGH.
func fallbackLevel(original, masked string) catalog.Level {
	if original != masked {
		return catalog.LevelHigh
	}
	return catalog.LevelLow
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLogLimit)
	}

	recs, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list records")
		writeError(w, http.StatusInternalServerError, "Server Error")
		return
	}
	if recs == nil {
		recs = []*store.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), mux.Vars(r)["id"])
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Log not found")
	case err != nil:
		s.log.Error().Err(err).Msg("failed to fetch record")
		writeError(w, http.StatusInternalServerError, "Server Error")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

type levelCount struct {
	RiskLevel catalog.Level `json:"riskLevel"`
	Count     int           `json:"count"`
}

func (s *Server) handleRiskDistribution(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByRiskLevel(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to aggregate records")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dist := []levelCount{}
	for _, l := range []catalog.Level{catalog.LevelCritical, catalog.LevelHigh, catalog.LevelMedium, catalog.LevelLow} {
		if n := counts[l]; n > 0 {
			dist = append(dist, levelCount{RiskLevel: l, Count: n})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "distribution": dist})
}

type verifyRequest struct {
	AIResponse   string `json:"aiResponse"`
	MaskedPrompt string `json:"maskedPrompt"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AIResponse == "" || req.MaskedPrompt == "" {
		writeError(w, http.StatusBadRequest, "Missing aiResponse or maskedPrompt")
		return
	}

	out := s.pipeline.Verify(r.Context(), pipeline.VerifyRequest{
		MaskedPrompt: req.MaskedPrompt,
		AIResponse:   req.AIResponse,
	})
	body := map[string]any{"success": true, "verification": out.Result}
	if out.Note != "" {
		body["note"] = out.Note
	}
	if out.RecordID != "" {
		body["logId"] = out.RecordID
	}
	writeJSON(w, http.StatusOK, body)
}

type submitRequest struct {
	Text       string `json:"text"`
	Platform   string `json:"platform"`
	Session    string `json:"session"`
	UserID     string `json:"userId"`
	Department string `json:"department"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "Missing text")
		return
	}
	d := s.pipeline.Submit(r.Context(), pipeline.Submission{
		Text:       req.Text,
		Platform:   req.Platform,
		Session:    req.Session,
		UserID:     req.UserID,
		Department: req.Department,
	})
	writeJSON(w, http.StatusOK, d)
}

type resolveRequest struct {
	Proceed bool `json:"proceed"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := s.pipeline.Resolve(r.Context(), mux.Vars(r)["ticket"], req.Proceed)
	if errors.Is(err, pipeline.ErrUnknownTicket) {
		writeError(w, http.StatusNotFound, "unknown or already resolved ticket")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type unmaskRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleUnmask(w http.ResponseWriter, r *http.Request) {
	var req unmaskRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "text": s.pipeline.Unmask(req.Text)})
}
