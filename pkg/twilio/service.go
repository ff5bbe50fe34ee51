package twilio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/logger"
	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/client/jwt"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// controlPlaneTimeout bounds every request to the Twilio REST API. A timeout on
// a live-call mutation is a hard failure surfaced to the caller.
const controlPlaneTimeout = 15 * time.Second

// Service wraps the Twilio control plane: live-call mutation for mid-call
// redirects and Voice access tokens for the browser SDK.
type Service struct {
	client      *twilio.RestClient
	accountSID  string
	apiKey      string
	apiSecret   string
	twimlAppSID string
}

// NewService creates a Twilio control-plane service.
// The REST client authenticates with the account SID and auth token; the API
// key pair is only used for signing browser access tokens.
func NewService(accountSID, authToken, apiKey, apiSecret, twimlAppSID string) *Service {
	restClient := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	restClient.Client.SetTimeout(controlPlaneTimeout)

	return &Service{
		client:      restClient,
		accountSID:  accountSID,
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		twimlAppSID: twimlAppSID,
	}
}

// UpdateCallTwiml replaces the call-control program of a live call leg with the
// given TwiML document. The ctx parameter is accepted for interface symmetry;
// the SDK itself enforces the client-level timeout.
func (s *Service) UpdateCallTwiml(ctx context.Context, callSid, twimlDoc string) error {
	params := &api.UpdateCallParams{}
	params.SetTwiml(twimlDoc)

	_, err := s.client.Api.UpdateCall(callSid, params)
	if err != nil {
		var restErr *client.TwilioRestError
		if errors.As(err, &restErr) {
			logger.Base().Error("twilio rejected live-call update",
				zap.String("call_sid", callSid),
				zap.Int("status", restErr.Status),
				zap.Int("code", restErr.Code),
				zap.String("message", restErr.Message),
			)
			return fmt.Errorf("twilio update call %s: status %d code %d: %s",
				callSid, restErr.Status, restErr.Code, restErr.Message)
		}
		return fmt.Errorf("twilio update call %s: %w", callSid, err)
	}

	logger.Base().Info("live-call program replaced", zap.String("call_sid", callSid))
	return nil
}

// CreateVoiceAccessToken issues a Voice access token for the browser SDK with
// an outgoing grant bound to the configured TwiML application.
func (s *Service) CreateVoiceAccessToken(identity string, ttl time.Duration) (string, error) {
	params := jwt.AccessTokenParams{
		AccountSid:    s.accountSID,
		SigningKeySid: s.apiKey,
		Secret:        s.apiSecret,
		Identity:      identity,
		Ttl:           ttl.Seconds(),
	}
	token := jwt.CreateAccessToken(params)

	voiceGrant := &jwt.VoiceGrant{
		Incoming: jwt.Incoming{Allow: true},
		Outgoing: jwt.Outgoing{ApplicationSid: s.twimlAppSID},
	}
	token.AddGrant(voiceGrant)

	signed, err := token.ToJwt()
	if err != nil {
		return "", fmt.Errorf("failed to sign voice access token: %w", err)
	}
	return signed, nil
}
