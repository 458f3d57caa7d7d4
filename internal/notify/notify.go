package notify

// Notifier delivers a text message to a named chat channel. Delivery
// failure is reported to the caller as a *DeliveryError and must not stop
// the caller from processing further messages.
type Notifier interface {
	Send(message, channel string) error
}
