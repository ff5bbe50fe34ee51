package call

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/config"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/domain"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/session"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/logger"
	"go.uber.org/zap"
)

const (
	primeTimeout  = 10 * time.Second
	notifyTimeout = 15 * time.Second
)

// CallUpdater mutates a live call's control program on the telephony provider
type CallUpdater interface {
	UpdateCallTwiml(ctx context.Context, callSid, twimlDoc string) error
}

// ContextPrimer pushes caller context to the bot platform's state store
type ContextPrimer interface {
	Enabled() bool
	UpdateUserVariables(ctx context.Context, userID string, variables map[string]string) error
}

// TransferNotifier delivers transfer-leg notifications downstream
type TransferNotifier interface {
	Enabled() bool
	NotifyTransferLeg(ctx context.Context, notification domain.TransferNotification) error
}

// Service correlates leads with provider call legs and performs mid-call
// redirects. It owns no state beyond the registry it is handed.
type Service struct {
	cfg      *config.DialerConfig
	registry session.Registry
	provider CallUpdater
	primer   ContextPrimer
	notifier TransferNotifier
}

// NewService creates the call session service
func NewService(cfg *config.DialerConfig, registry session.Registry, provider CallUpdater, primer ContextPrimer, notifier TransferNotifier) *Service {
	return &Service{
		cfg:      cfg,
		registry: registry,
		provider: provider,
		primer:   primer,
		notifier: notifier,
	}
}

// parseCallStatus maps a provider status string onto the session lifecycle.
// Unrecognized values are treated as non-terminal: losing a live session is
// worse than keeping a stale one.
func parseCallStatus(raw string) (state session.State, terminal bool, known bool) {
	switch strings.ToLower(raw) {
	case "queued", "initiated":
		return session.StateInitiated, false, true
	case "ringing":
		return session.StateRinging, false, true
	case "in-progress", "answered":
		return session.StateAnswered, false, true
	case "completed", "failed", "busy", "no-answer", "canceled":
		return "", true, true
	default:
		return session.State(raw), false, false
	}
}

// HandleStatusEvent applies one call-status report to the registry. Callers
// always acknowledge the webhook regardless of the outcome here; the provider
// retries deliveries and must never be driven into a poison loop.
func (s *Service) HandleStatusEvent(ctx context.Context, event domain.StatusEvent) error {
	if event.LeadID == "" || event.CallSid == "" {
		logger.Base().Warn("status event missing correlation identifiers",
			zap.String("lead_id", event.LeadID),
			zap.String("call_sid", event.CallSid),
			zap.String("call_status", event.CallStatus),
		)
		return nil
	}

	state, terminal, known := parseCallStatus(event.CallStatus)
	if !known {
		logger.Base().Warn("unrecognized call status, keeping session",
			zap.String("lead_id", event.LeadID),
			zap.String("call_status", event.CallStatus),
		)
	}

	if terminal {
		if err := s.registry.Remove(ctx, event.LeadID); err != nil {
			return fmt.Errorf("failed to remove session for lead %s: %w", event.LeadID, err)
		}
		logger.Base().Info("call ended, session removed",
			zap.String("lead_id", event.LeadID),
			zap.String("call_sid", event.CallSid),
			zap.String("call_status", event.CallStatus),
		)
		return nil
	}

	if err := s.registry.Upsert(ctx, event.LeadID, event.CallSid, state, event.Sequence); err != nil {
		return fmt.Errorf("failed to upsert session for lead %s: %w", event.LeadID, err)
	}
	logger.Base().Info("mapped lead to call leg",
		zap.String("lead_id", event.LeadID),
		zap.String("call_sid", event.CallSid),
		zap.String("state", string(state)),
	)
	return nil
}

// DropVoicemail redirects the lead's live call to the configured Voiceflow
// agent. On success the session is consumed; on a control-plane failure the
// session stays registered so the agent can retry.
func (s *Service) DropVoicemail(ctx context.Context, req domain.DropVoicemailRequest) (*domain.DropVoicemailResponse, error) {
	if req.LeadID == "" {
		return nil, ErrMissingLead
	}

	sess, err := s.registry.Get(ctx, req.LeadID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoActiveCall
		}
		return nil, fmt.Errorf("failed to look up session for lead %s: %w", req.LeadID, err)
	}

	if s.cfg.VoiceflowNumber == "" {
		return nil, ErrTargetNotConfigured
	}
	if s.cfg.TwilioCallerID == "" {
		return nil, ErrCallerIDNotConfigured
	}

	logger.Base().Info("dropping voicemail",
		zap.String("lead_id", req.LeadID),
		zap.String("call_sid", sess.CallLegID),
		zap.String("target", s.cfg.VoiceflowNumber),
	)

	// Best effort: an un-primed bot is better than a dropped call.
	s.primeContext(req)

	program, err := dropProgram(dropProgramParams{
		Target:         s.cfg.VoiceflowNumber,
		CallerID:       s.cfg.TwilioCallerID,
		ActionURL:      s.cfg.CallbackURL("/leads/dial-status") + "?name=" + url.QueryEscape(req.LeadName),
		NotifyURL:      s.cfg.CallbackURL("/leads/transfer-status") + "?leadPhone=" + url.QueryEscape(req.LeadPhone),
		NotifyOnAnswer: s.cfg.TransferNotifyOnAnswer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build call-control program: %w", err)
	}

	if err := s.provider.UpdateCallTwiml(ctx, sess.CallLegID, program); err != nil {
		return nil, &RedirectError{Err: err}
	}

	// Remove only if the session still tracks the leg we just redirected; a
	// concurrent status event may have rolled the lead over to a new call.
	removed, err := s.registry.RemoveLeg(ctx, req.LeadID, sess.CallLegID)
	if err != nil {
		logger.Base().Warn("failed to remove session after redirect",
			zap.String("lead_id", req.LeadID), zap.Error(err))
	} else if !removed {
		logger.Base().Info("session rolled over during redirect, left in place",
			zap.String("lead_id", req.LeadID),
			zap.String("call_sid", sess.CallLegID),
		)
	}

	return &domain.DropVoicemailResponse{Success: true, Message: "Voicemail drop triggered"}, nil
}

// primeContext pushes the lead's name and phone into the bot platform's state
// store, keyed by the outbound caller ID. Detached from the redirect path.
func (s *Service) primeContext(req domain.DropVoicemailRequest) {
	if s.primer == nil || !s.primer.Enabled() {
		return
	}

	variables := map[string]string{
		"lead_name":  req.LeadName,
		"lead_phone": req.LeadPhone,
	}
	userID := s.cfg.TwilioCallerID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), primeTimeout)
		defer cancel()

		if err := s.primer.UpdateUserVariables(ctx, userID, variables); err != nil {
			logger.Base().Warn("context priming failed, continuing with transfer",
				zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

// DispatchTransferNotification relays the transfer leg id downstream without
// blocking the webhook response. Failures are logged, never retried.
func (s *Service) DispatchTransferNotification(transferLegID, calleePhone string) {
	if s.notifier == nil || !s.notifier.Enabled() {
		logger.Base().Debug("automation webhook not configured, skipping notification",
			zap.String("transfer_leg_id", transferLegID))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		err := s.notifier.NotifyTransferLeg(ctx, domain.TransferNotification{
			TransferLegID: transferLegID,
			CalleePhone:   calleePhone,
		})
		if err != nil {
			logger.Base().Warn("transfer leg notification failed",
				zap.String("transfer_leg_id", transferLegID), zap.Error(err))
		}
	}()
}

// VoiceProgram builds the TwiML for a browser-initiated outbound call, wiring
// the lead id into the status callback address.
func (s *Service) VoiceProgram(to, leadID string) (string, error) {
	statusURL := s.cfg.CallbackURL("/twilio/status") + "?leadId=" + url.QueryEscape(leadID)
	return voiceProgram(to, s.cfg.TwilioCallerID, statusURL)
}

// HangupProgram builds the program that ends the original leg once the
// transfer leg has finished.
func (s *Service) HangupProgram() (string, error) {
	return hangupProgram()
}
