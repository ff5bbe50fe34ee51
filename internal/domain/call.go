package domain

// StatusEvent is one call-leg status report from Twilio. The lead id does not
// travel in the webhook payload; it is carried in the callback URL query string
// and stitched back in by the handler.
type StatusEvent struct {
	LeadID     string
	CallSid    string
	CallStatus string
	Sequence   int64
}

// DropVoicemailRequest asks the backend to redirect a live call to the voice agent
type DropVoicemailRequest struct {
	LeadID    string `json:"leadId"`
	LeadName  string `json:"leadName,omitempty"`
	LeadPhone string `json:"leadPhone,omitempty"`
}

// DropVoicemailResponse is returned on a successful redirect
type DropVoicemailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TransferNotification is the payload relayed to the downstream automation
// webhook once the transfer leg is established.
type TransferNotification struct {
	TransferLegID string `json:"transferLegId"`
	CalleePhone   string `json:"calleePhone"`
}
