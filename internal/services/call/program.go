package call

import (
	"github.com/twilio/twilio-go/twiml"
)

// dropAnnouncement is spoken to the callee right before the transfer
const dropAnnouncement = "Redirecting to voicemail now."

// dropProgramParams describes the call-control program that replaces a live call
type dropProgramParams struct {
	// Target is the Voiceflow agent number the callee is dialed to
	Target string
	// CallerID is the number presented on the transfer leg
	CallerID string
	// ActionURL is hit when the transfer leg ends, to hang up the original leg
	ActionURL string
	// NotifyURL reports the transfer leg's own CallSid to the notification relay
	NotifyURL string
	// NotifyOnAnswer selects <Number url=...> (fires when the leg is answered)
	// over <Number statusCallback=...> (fires when the leg is initiated)
	NotifyOnAnswer bool
}

// dropProgram builds the TwiML that redirects a live call to the voice agent
func dropProgram(params dropProgramParams) (string, error) {
	number := &twiml.VoiceNumber{
		PhoneNumber: params.Target,
	}
	if params.NotifyURL != "" {
		if params.NotifyOnAnswer {
			number.Url = params.NotifyURL
			number.Method = "POST"
		} else {
			number.StatusCallback = params.NotifyURL
			number.StatusCallbackEvent = "initiated"
			number.StatusCallbackMethod = "POST"
		}
	}

	dial := &twiml.VoiceDial{
		Action:        params.ActionURL,
		Method:        "POST",
		CallerId:      params.CallerID,
		InnerElements: []twiml.Element{number},
	}

	return twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: dropAnnouncement},
		dial,
	})
}

// voiceProgram builds the TwiML answering the browser SDK's outbound call:
// dial the lead's number and report leg status back to the status callback,
// which carries the lead id in its query string.
func voiceProgram(to, callerID, statusCallbackURL string) (string, error) {
	if to == "" {
		return twiml.Voice([]twiml.Element{
			&twiml.VoiceSay{Message: "No phone number provided."},
		})
	}

	number := &twiml.VoiceNumber{
		PhoneNumber:          to,
		StatusCallback:       statusCallbackURL,
		StatusCallbackEvent:  "initiated ringing answered completed",
		StatusCallbackMethod: "POST",
	}
	dial := &twiml.VoiceDial{
		CallerId:      callerID,
		InnerElements: []twiml.Element{number},
	}

	return twiml.Voice([]twiml.Element{dial})
}

// hangupProgram builds the minimal program ending the original leg
func hangupProgram() (string, error) {
	return twiml.Voice([]twiml.Element{&twiml.VoiceHangup{}})
}
