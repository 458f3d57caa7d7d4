package notify

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// Bot identity attached to every message.
const (
	BotUsername  = "Human-Compatible Disk Alert Bot"
	BotIconEmoji = ":chai:"
)

// DefaultTimeout bounds each chat API call.
const DefaultTimeout = 10 * time.Second

// Settings configures the Slack notifier. Zero values fall back to the
// bot's standard identity and timeout; APIURL overrides the Slack endpoint
// and is how tests and the simulator intercept traffic.
type Settings struct {
	Token     string
	APIURL    string
	Username  string
	IconEmoji string
	Timeout   time.Duration
}

// SlackNotifier posts messages through the Slack Web API.
type SlackNotifier struct {
	client    *slack.Client
	username  string
	iconEmoji string
}

// NewSlackNotifier builds a notifier for the given credential and settings.
func NewSlackNotifier(settings Settings) *SlackNotifier {
	timeout := settings.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	opts := []slack.Option{
		slack.OptionHTTPClient(&http.Client{Timeout: timeout}),
	}
	if settings.APIURL != "" {
		url := settings.APIURL
		if !strings.HasSuffix(url, "/") {
			url += "/"
		}
		opts = append(opts, slack.OptionAPIURL(url))
	}

	username := settings.Username
	if username == "" {
		username = BotUsername
	}
	iconEmoji := settings.IconEmoji
	if iconEmoji == "" {
		iconEmoji = BotIconEmoji
	}

	return &SlackNotifier{
		client:    slack.New(settings.Token, opts...),
		username:  username,
		iconEmoji: iconEmoji,
	}
}

// Send posts the message to the channel under the bot's identity. Failures
// come back as a *DeliveryError; the zero-value message timestamp and
// channel returned by the API are not interesting to callers.
func (n *SlackNotifier) Send(message, channel string) error {
	_, _, err := n.client.PostMessage(channel,
		slack.MsgOptionText(message, false),
		slack.MsgOptionUsername(n.username),
		slack.MsgOptionIconEmoji(n.iconEmoji),
	)
	if err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// CheckAuth verifies the credential against the chat API without posting
// anything.
func (n *SlackNotifier) CheckAuth() error {
	if _, err := n.client.AuthTest(); err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// wrapAPIError converts errors from the chat client into DeliveryErrors,
// preserving the API's machine-readable code where one exists.
func wrapAPIError(err error) *DeliveryError {
	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		return &DeliveryError{Code: apiErr.Err}
	}

	var rateErr *slack.RateLimitedError
	if errors.As(err, &rateErr) {
		return &DeliveryError{Code: "rate_limited", Reason: err.Error()}
	}

	return &DeliveryError{Code: "transport_error", Reason: err.Error()}
}
