package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/domain"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/repository"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/services/call"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxImportSize caps CSV uploads at 5 MB
const maxImportSize = 5 << 20

// LeadsHandler serves the lead book and the agent-facing call actions
type LeadsHandler struct {
	leadRepo repository.LeadRepository
	service  *call.Service
}

// NewLeadsHandler creates a new leads handler
func NewLeadsHandler(leadRepo repository.LeadRepository, service *call.Service) *LeadsHandler {
	return &LeadsHandler{
		leadRepo: leadRepo,
		service:  service,
	}
}

// SetupLeadsRoutes registers the lead book and call action routes
func (h *LeadsHandler) SetupLeadsRoutes(router *mux.Router) {
	router.HandleFunc("/leads", h.ListLeads).Methods("GET")
	router.HandleFunc("/leads", h.CreateLead).Methods("POST")
	router.HandleFunc("/leads/import", h.ImportLeads).Methods("POST")
	router.HandleFunc("/leads/drop-voicemail", h.DropVoicemail).Methods("POST")
	router.HandleFunc("/leads/dial-status", h.DialStatus).Methods("POST")
	router.HandleFunc("/leads/transfer-status", h.TransferStatus).Methods("POST")
}

// ListLeads returns all leads, newest first
func (h *LeadsHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.leadRepo.GetAll(r.Context())
	if err != nil {
		logger.Base().Error("failed to list leads", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Failed to list leads")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(leads)
}

// CreateLead adds a single lead to the book
func (h *LeadsHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Phone == "" {
		writeJSONError(w, http.StatusBadRequest, "name and phone are required")
		return
	}

	lead, err := h.leadRepo.Create(r.Context(), &req)
	if err != nil {
		logger.Base().Error("failed to create lead", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Failed to create lead")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(lead)
}

// ImportLeads ingests a CSV lead sheet. The file is read either from the
// "file" multipart field or from the raw request body.
func (h *LeadsHandler) ImportLeads(w http.ResponseWriter, r *http.Request) {
	var reader io.Reader
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		reader = file
	} else {
		reader = r.Body
	}
	reader = io.LimitReader(reader, maxImportSize)

	reqs, skipped, err := repository.ParseLeadsCSV(reader)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.leadRepo.BulkCreate(r.Context(), reqs)
	if err != nil {
		logger.Base().Error("failed to import leads", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Failed to import leads")
		return
	}

	logger.Base().Info("lead sheet imported",
		zap.Int("imported", len(created)),
		zap.Int("skipped", skipped),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(domain.ImportLeadsResult{
		Imported: len(created),
		Skipped:  skipped,
	})
}

// DropVoicemail redirects the lead's live call to the voice agent
func (h *LeadsHandler) DropVoicemail(w http.ResponseWriter, r *http.Request) {
	var req domain.DropVoicemailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.DropVoicemail(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		message := err.Error()
		switch {
		case errors.Is(err, call.ErrMissingLead):
			status = http.StatusBadRequest
			message = "Missing leadId"
		case errors.Is(err, call.ErrNoActiveCall):
			status = http.StatusNotFound
			message = "No active call found for this lead"
		}
		writeJSONError(w, status, message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// DialStatus is the action callback hit when the transfer leg ends. Answering
// with a hangup program ends the original leg instead of falling back to the
// agent's browser session.
func (h *LeadsHandler) DialStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		logger.Base().Warn("failed to parse dial-status form", zap.Error(err))
	}

	logger.Base().Info("transfer leg finished",
		zap.String("dial_call_status", r.FormValue("DialCallStatus")),
		zap.String("lead_name", r.URL.Query().Get("name")),
	)

	program, err := h.service.HangupProgram()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to build hangup response")
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(program))
}

// TransferStatus receives the transfer leg's own CallSid and relays it to the
// downstream automation webhook. Always acknowledged with 200.
func (h *LeadsHandler) TransferStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		logger.Base().Warn("failed to parse transfer-status form", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	transferLegID := r.FormValue("CallSid")
	calleePhone := r.URL.Query().Get("leadPhone")

	if transferLegID == "" {
		logger.Base().Warn("transfer-status callback without CallSid")
		w.WriteHeader(http.StatusOK)
		return
	}

	h.service.DispatchTransferNotification(transferLegID, calleePhone)
	w.WriteHeader(http.StatusOK)
}

// writeJSONError writes an error payload in the {"error": ...} shape the
// dialer UI expects
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
