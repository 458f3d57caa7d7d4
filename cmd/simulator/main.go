package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Minimum width of the rendered message box.
const minBoxWidth = 24

var (
	// These are set by the build system via -ldflags.
	version   = "dev"     // Set via -X main.version=...
	buildTime = "unknown" // Set via -X main.buildTime=...
)

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:8811", "Address to listen on")
		team     = flag.String("team", "simulated-workspace", "Team name reported by auth.test")
		failAuth = flag.Bool("fail-auth", false, "Reject auth.test calls with invalid_auth")
		failPost = flag.String("fail-post", "", "Reject chat.postMessage calls with this error code, e.g. channel_not_found")
	)
	flag.Parse()

	fmt.Println("📨 Slack API Simulator")
	fmt.Println("======================")
	fmt.Printf("Version: %s (built %s)\n", version, buildTime)
	fmt.Printf("Listening on: %s | Team: %s\n\n", *addr, *team)

	sim := &apiSimulator{
		team:     *team,
		failAuth: *failAuth,
		postErr:  *failPost,
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           sim.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.ListenAndServe()
	}()

	fmt.Println("Point the daemon at the simulator:")
	fmt.Printf("  slack.api_url: \"http://%s/api/\"\n\n", *addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case <-sigCh:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	fmt.Printf("\nSimulation completed! Received %d messages.\n", sim.messageCount())
}

// apiSimulator answers the two Web API methods the daemon calls. The
// failure knobs let the daemon's error handling be driven by hand.
type apiSimulator struct {
	mu       sync.Mutex
	received int

	team     string
	failAuth bool
	postErr  string
}

// slackResponse is the envelope every Web API reply carries.
type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type postMessageResponse struct {
	slackResponse
	Channel   string `json:"channel,omitempty"`
	Timestamp string `json:"ts,omitempty"`
}

type authTestResponse struct {
	slackResponse
	URL    string `json:"url,omitempty"`
	Team   string `json:"team,omitempty"`
	User   string `json:"user,omitempty"`
	TeamID string `json:"team_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

func (s *apiSimulator) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth.test", s.handleAuthTest)
	mux.HandleFunc("/api/chat.postMessage", s.handlePostMessage)

	return mux
}

func (s *apiSimulator) handleAuthTest(w http.ResponseWriter, r *http.Request) {
	if s.failAuth || requestToken(r) == "" {
		writeJSON(w, authTestResponse{slackResponse: slackResponse{Error: "invalid_auth"}})
		return
	}

	writeJSON(w, authTestResponse{
		slackResponse: slackResponse{OK: true},
		URL:           "http://" + r.Host + "/",
		Team:          s.team,
		User:          "disk-alert-bot",
		TeamID:        "T0000001",
		UserID:        "U0000001",
	})
}

func (s *apiSimulator) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	if requestToken(r) == "" {
		writeJSON(w, postMessageResponse{slackResponse: slackResponse{Error: "not_authed"}})
		return
	}

	if s.postErr != "" {
		writeJSON(w, postMessageResponse{slackResponse: slackResponse{Error: s.postErr}})
		return
	}

	channel := r.FormValue("channel")
	if channel == "" {
		writeJSON(w, postMessageResponse{slackResponse: slackResponse{Error: "channel_not_found"}})
		return
	}

	text := r.FormValue("text")
	username := r.FormValue("username")

	s.mu.Lock()
	s.received++
	seq := s.received
	printMessage(seq, channel, username, text)
	s.mu.Unlock()

	writeJSON(w, postMessageResponse{
		slackResponse: slackResponse{OK: true},
		Channel:       channel,
		Timestamp:     fmt.Sprintf("%d.%06d", time.Now().Unix(), seq),
	})
}

func (s *apiSimulator) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.received
}

// requestToken pulls the credential from the form body or the bearer
// header, whichever the client used.
func requestToken(r *http.Request) string {
	if token := r.FormValue("token"); token != "" {
		return token
	}

	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// Print the delivered message the way a channel would show it.
func printMessage(seq int, channel, username, text string) {
	lines := strings.Split(text, "\n")

	width := minBoxWidth
	for _, line := range lines {
		if len(line) > width {
			width = len(line)
		}
	}

	fmt.Printf("⏰ %s | message #%d | channel: %s | from: %s\n",
		time.Now().Format("15:04:05"), seq, channel, username)
	fmt.Println("┌" + strings.Repeat("─", width+2) + "┐")

	for _, line := range lines {
		fmt.Printf("│ %-*s │\n", width, line)
	}

	fmt.Println("└" + strings.Repeat("─", width+2) + "┘")
	fmt.Println()
}
