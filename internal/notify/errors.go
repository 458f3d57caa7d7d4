package notify

import "fmt"

// DeliveryError reports a failed notification. Code is the machine-readable
// error identifier from the chat API, such as "invalid_auth" or
// "channel_not_found"; transport failures use the code "transport_error".
type DeliveryError struct {
	Code   string
	Reason string
}

func (e *DeliveryError) Error() string {
	if e.Reason == "" || e.Reason == e.Code {
		return fmt.Sprintf("delivery failed: %s", e.Code)
	}
	return fmt.Sprintf("delivery failed: %s (%s)", e.Code, e.Reason)
}
