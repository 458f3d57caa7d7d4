package notify

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// chatServer fakes the chat API's message endpoint, recording the form
// fields of each post and answering with the configured API error code, or
// success when the code is empty.
func chatServer(t *testing.T, errorCode string, posts *[]map[string]string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("unexpected request path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}

		if posts != nil {
			*posts = append(*posts, map[string]string{
				"channel":    r.FormValue("channel"),
				"text":       r.FormValue("text"),
				"username":   r.FormValue("username"),
				"icon_emoji": r.FormValue("icon_emoji"),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if errorCode != "" {
			w.Write([]byte(`{"ok":false,"error":"` + errorCode + `"}`))
			return
		}
		w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	}))
}

func TestSlackNotifierSend(t *testing.T) {
	var posts []map[string]string
	srv := chatServer(t, "", &posts)
	defer srv.Close()

	n := NewSlackNotifier(Settings{Token: "xoxb-test", APIURL: srv.URL})

	if err := n.Send("low disk space", "#alerts"); err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}

	if len(posts) != 1 {
		t.Fatalf("server saw %d posts, want 1", len(posts))
	}

	post := posts[0]
	if post["channel"] != "#alerts" {
		t.Errorf("posted channel = %q, want %q", post["channel"], "#alerts")
	}
	if post["text"] != "low disk space" {
		t.Errorf("posted text = %q, want %q", post["text"], "low disk space")
	}
	if post["username"] != BotUsername {
		t.Errorf("posted username = %q, want %q", post["username"], BotUsername)
	}
	if post["icon_emoji"] != BotIconEmoji {
		t.Errorf("posted icon_emoji = %q, want %q", post["icon_emoji"], BotIconEmoji)
	}
}

func TestSlackNotifierCustomIdentity(t *testing.T) {
	var posts []map[string]string
	srv := chatServer(t, "", &posts)
	defer srv.Close()

	n := NewSlackNotifier(Settings{
		Token:     "xoxb-test",
		APIURL:    srv.URL,
		Username:  "Disk Watcher",
		IconEmoji: ":floppy_disk:",
	})

	if err := n.Send("msg", "#ops"); err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}

	if posts[0]["username"] != "Disk Watcher" {
		t.Errorf("posted username = %q, want %q", posts[0]["username"], "Disk Watcher")
	}
	if posts[0]["icon_emoji"] != ":floppy_disk:" {
		t.Errorf("posted icon_emoji = %q, want %q", posts[0]["icon_emoji"], ":floppy_disk:")
	}
}

func TestSlackNotifierSendAPIError(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"invalid credential", "invalid_auth"},
		{"unknown channel", "channel_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.code, nil)
			defer srv.Close()

			n := NewSlackNotifier(Settings{Token: "xoxb-test", APIURL: srv.URL})

			err := n.Send("msg", "#alerts")
			if err == nil {
				t.Fatal("Send() succeeded, want error")
			}

			var derr *DeliveryError
			if !errors.As(err, &derr) {
				t.Fatalf("Send() error type = %T, want *DeliveryError", err)
			}
			if derr.Code != tt.code {
				t.Errorf("DeliveryError.Code = %q, want %q", derr.Code, tt.code)
			}
		})
	}
}

func TestSlackNotifierSendTransportError(t *testing.T) {
	srv := chatServer(t, "", nil)
	url := srv.URL
	srv.Close()

	n := NewSlackNotifier(Settings{Token: "xoxb-test", APIURL: url})

	err := n.Send("msg", "#alerts")
	if err == nil {
		t.Fatal("Send() against a closed server succeeded, want error")
	}

	var derr *DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("Send() error type = %T, want *DeliveryError", err)
	}
	if derr.Code != "transport_error" {
		t.Errorf("DeliveryError.Code = %q, want %q", derr.Code, "transport_error")
	}
}

func TestSlackNotifierCheckAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth.test" {
			t.Errorf("unexpected request path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"url":"https://example.slack.com/","team":"example","user":"diskbot","team_id":"T1","user_id":"U1"}`))
	}))
	defer srv.Close()

	n := NewSlackNotifier(Settings{Token: "xoxb-test", APIURL: srv.URL})

	if err := n.CheckAuth(); err != nil {
		t.Errorf("CheckAuth() returned error: %v", err)
	}
}

func TestSlackNotifierCheckAuthRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"error":"invalid_auth"}`))
	}))
	defer srv.Close()

	n := NewSlackNotifier(Settings{Token: "xoxb-bad", APIURL: srv.URL})

	err := n.CheckAuth()
	if err == nil {
		t.Fatal("CheckAuth() succeeded, want error")
	}

	var derr *DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("CheckAuth() error type = %T, want *DeliveryError", err)
	}
	if derr.Code != "invalid_auth" {
		t.Errorf("DeliveryError.Code = %q, want %q", derr.Code, "invalid_auth")
	}
}

func TestDeliveryErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *DeliveryError
		expected string
	}{
		{"code only", &DeliveryError{Code: "invalid_auth"}, "delivery failed: invalid_auth"},
		{
			"code and reason",
			&DeliveryError{Code: "transport_error", Reason: "connection refused"},
			"delivery failed: transport_error (connection refused)",
		},
		{
			"redundant reason",
			&DeliveryError{Code: "invalid_auth", Reason: "invalid_auth"},
			"delivery failed: invalid_auth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}
