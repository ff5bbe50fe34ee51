package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/config"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/domain"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/services/call"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// accessTokenTTL is the lifetime of the browser SDK's Voice access token
const accessTokenTTL = 1 * time.Hour

// TokenIssuer signs Voice access tokens for the browser SDK
type TokenIssuer interface {
	CreateVoiceAccessToken(identity string, ttl time.Duration) (string, error)
}

// TwilioHandler serves the Twilio-facing endpoints: browser token issuance,
// the TwiML application webhook, and call status callbacks.
type TwilioHandler struct {
	config  *config.DialerConfig
	tokens  TokenIssuer
	service *call.Service
}

// NewTwilioHandler creates a new Twilio handler
func NewTwilioHandler(cfg *config.DialerConfig, tokens TokenIssuer, service *call.Service) *TwilioHandler {
	return &TwilioHandler{
		config:  cfg,
		tokens:  tokens,
		service: service,
	}
}

// SetupTwilioRoutes registers the Twilio-facing routes
func (h *TwilioHandler) SetupTwilioRoutes(router *mux.Router) {
	router.HandleFunc("/twilio/token", h.GetToken).Methods("GET")
	router.HandleFunc("/twilio/voice", h.Voice).Methods("POST")
	router.HandleFunc("/twilio/status", h.Status).Methods("POST")
}

// GetToken issues a Voice access token the browser SDK uses to register
func (h *TwilioHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	identity := h.config.AgentIdentity

	token, err := h.tokens.CreateVoiceAccessToken(identity, accessTokenTTL)
	if err != nil {
		logger.Base().Error("failed to create voice access token", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"token":    token,
		"identity": identity,
	})
}

// Voice is the TwiML application webhook hit when the browser places a call.
// It answers with the program dialing the lead's number and wiring the lead id
// into the status callback.
func (h *TwilioHandler) Voice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid form body")
		return
	}

	to := r.FormValue("To")
	leadID := r.FormValue("leadId")

	program, err := h.service.VoiceProgram(to, leadID)
	if err != nil {
		logger.Base().Error("failed to build voice program",
			zap.String("to", to), zap.String("lead_id", leadID), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Failed to build voice response")
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(program))
}

// Status is the call status callback. It always acknowledges with 200 so
// Twilio does not retry deliveries the engine has already judged.
func (h *TwilioHandler) Status(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		logger.Base().Warn("failed to parse status callback form", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	seq, _ := strconv.ParseInt(r.FormValue("SequenceNumber"), 10, 64)
	event := domain.StatusEvent{
		LeadID:     r.URL.Query().Get("leadId"),
		CallSid:    r.FormValue("CallSid"),
		CallStatus: r.FormValue("CallStatus"),
		Sequence:   seq,
	}

	if err := h.service.HandleStatusEvent(r.Context(), event); err != nil {
		logger.Base().Error("failed to apply status event",
			zap.String("lead_id", event.LeadID),
			zap.String("call_sid", event.CallSid),
			zap.Error(err),
		)
	}

	w.WriteHeader(http.StatusOK)
}
