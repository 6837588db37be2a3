// Package main provides a probe client for the notification WebSocket.
// It logs in, exchanges the token for socket tickets, registers each
// connection and prints every pushed frame.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"blogshive/internal/notifications"

	"github.com/gorilla/websocket"
)

// Metrics tracks the probe results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	Registered           int64
	FramesReceived       int64
	Notifications        int64
	Errors               int64
}

var metrics Metrics

type session struct {
	host   string
	token  string
	userID uint
}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	identifier := flag.String("login", "root", "Username or email to log in with")
	password := flag.String("password", "", "Password for the login account")
	clients := flag.Int("clients", 1, "Number of concurrent sockets")
	duration := flag.Duration("duration", time.Minute, "How long to listen")
	ping := flag.Duration("ping", 20*time.Second, "Application ping interval")
	quiet := flag.Bool("quiet", false, "Only print the summary")
	flag.Parse()

	log.Printf("🚀 Starting WebSocket probe")
	log.Printf("Target: %s", *host)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	s, err := login(*host, *identifier, *password)
	if err != nil {
		log.Fatalf("❌ Login failed: %v", err)
	}
	log.Printf("✅ Logged in as user %d", s.userID)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(s, i, *ping, *quiet, stopChan, &wg)
		time.Sleep(50 * time.Millisecond) // stagger ticket issuance
	}

	select {
	case <-time.After(*duration):
		log.Println("⏱️  Probe duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func login(host, identifier, password string) (*session, error) {
	loginURL := fmt.Sprintf("http://%s/api/auth/login", host)
	body, _ := json.Marshal(map[string]string{
		"identifier": identifier,
		"password":   password,
	})

	resp, err := http.Post(loginURL, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &session{host: host, token: result.Token, userID: result.User.ID}, nil
}

func getTicket(s *session) (string, error) {
	ticketURL := fmt.Sprintf("http://%s/api/ws/ticket", s.host)
	req, _ := http.NewRequest(http.MethodPost, ticketURL, nil)
	req.Header.Set("Authorization", "Bearer "+s.token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", resp.StatusCode)
	}

	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Ticket, nil
}

func runClient(s *session, id int, ping time.Duration, quiet bool, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	ticket, err := getTicket(s)
	if err != nil {
		log.Printf("[client %d] ticket: %v", id, err)
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	u := url.URL{Scheme: "ws", Host: s.host, Path: "/api/ws", RawQuery: "ticket=" + url.QueryEscape(ticket)}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Printf("[client %d] dial: %v", id, err)
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	var writeMu sync.Mutex
	send := func(frame map[string]any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteJSON(frame)
	}

	if err := send(map[string]any{"type": notifications.FrameRegister, "user_id": s.userID}); err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.FramesReceived, 1)
			handleFrame(id, raw, quiet)
		}
	}()

	ticker := time.NewTicker(ping)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			writeMu.Lock()
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			writeMu.Unlock()
			return
		case <-done:
			log.Printf("[client %d] connection closed by server", id)
			return
		case <-ticker.C:
			if err := send(map[string]any{"type": notifications.FramePing}); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				return
			}
		}
	}
}

func handleFrame(id int, raw []byte, quiet bool) {
	var frame struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		log.Printf("[client %d] unreadable frame: %s", id, raw)
		return
	}

	switch frame.Type {
	case notifications.FrameRegistered:
		atomic.AddInt64(&metrics.Registered, 1)
	case notifications.FrameError:
		atomic.AddInt64(&metrics.Errors, 1)
	case notifications.FramePong:
		return
	default:
		atomic.AddInt64(&metrics.Notifications, 1)
	}
	if !quiet {
		log.Printf("[client %d] %s %s", id, frame.Type, frame.Payload)
	}
}

func printMetrics() {
	log.Println("\n📊 Probe Results")
	log.Println("================")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Registered: %d", atomic.LoadInt64(&metrics.Registered))
	log.Printf("Frames Received: %d", atomic.LoadInt64(&metrics.FramesReceived))
	log.Printf("Notifications: %d", atomic.LoadInt64(&metrics.Notifications))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
