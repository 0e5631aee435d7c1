package nudge

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Outbound communication methods a payload can suggest.
const (
	MethodSMS      = "SMS"
	MethodEmail    = "EMAIL"
	MethodInternal = "INTERNAL"
)

// SuggestedAction is the typed view of an ActionPayload.
type SuggestedAction struct {
	Method    string `mapstructure:"method" json:"method"`
	Recipient string `mapstructure:"recipient" json:"recipient,omitempty"`
	Name      string `mapstructure:"name" json:"name,omitempty"`
	Message   string `mapstructure:"message" json:"message"`
}

// Payload converts the action to a storable payload.
func (a SuggestedAction) Payload() ActionPayload {
	p := ActionPayload{
		"method":  a.Method,
		"message": a.Message,
	}
	if a.Recipient != "" {
		p["recipient"] = a.Recipient
	}
	if a.Name != "" {
		p["name"] = a.Name
	}
	return p
}

// SMS builds a payload suggesting a text message to recipient.
func SMS(recipient, name, message string) ActionPayload {
	return SuggestedAction{Method: MethodSMS, Recipient: recipient, Name: name, Message: message}.Payload()
}

// Internal builds a payload for a team notification with no external recipient.
func Internal(message string) ActionPayload {
	return SuggestedAction{Method: MethodInternal, Message: message}.Payload()
}

// DecodeAction reads the suggested action out of a payload. Payloads written by
// other tools may carry extra keys; they are ignored.
func DecodeAction(p ActionPayload) (SuggestedAction, error) {
	var action SuggestedAction
	if len(p) == 0 {
		return action, fmt.Errorf("payload is empty")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &action,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return action, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(p)); err != nil {
		return action, fmt.Errorf("failed to decode action payload: %w", err)
	}
	if action.Method == "" {
		return action, fmt.Errorf("payload has no method")
	}
	return action, nil
}
