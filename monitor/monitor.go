// Package monitor serves a read-only websocket broadcast of SandboxEvents
// so an operator dashboard can watch executions live.
package monitor

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sandsheet/supervisor"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SandboxEvent is one broadcastable moment in an execution's lifecycle.
type SandboxEvent struct {
	Type      string              `json:"type"` // "started" | "finished" | "error"
	Script    string              `json:"script,omitempty"`
	ExitKind  supervisor.ExitKind `json:"exit_kind,omitempty"`
	ExitCode  int                 `json:"exit_code,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Dashboard fans SandboxEvents out to every connected websocket client.
type Dashboard struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewDashboard returns an empty Dashboard.
func NewDashboard() *Dashboard {
	return &Dashboard{clients: make(map[*websocket.Conn]bool)}
}

// HandleWebSocket upgrades r and registers the connection as a broadcast
// recipient until it disconnects. Clients are read-only: any inbound
// message is discarded, it exists only to detect disconnects.
func (d *Dashboard) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("monitor: upgrade error:", err)
		return
	}

	d.mu.Lock()
	d.clients[conn] = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.clients, conn)
		d.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Broadcast fans out ev to every connected client, dropping and closing
// any connection whose write fails.
func (d *Dashboard) Broadcast(ev SandboxEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for client := range d.clients {
		if err := client.WriteJSON(ev); err != nil {
			log.Printf("monitor: broadcast failed: %v", err)
			client.Close()
			delete(d.clients, client)
		}
	}
}

// OnStart and OnFinish are runtime.Hooks-compatible callbacks.
func (d *Dashboard) OnStart(script string) {
	d.Broadcast(SandboxEvent{Type: "started", Script: script, Timestamp: time.Now()})
}

func (d *Dashboard) OnFinish(result supervisor.ExecutionResult, err error) {
	ev := SandboxEvent{Type: "finished", ExitKind: result.ExitKind, ExitCode: result.ExitCode, Timestamp: time.Now()}
	if err != nil {
		ev.Type = "error"
	}
	d.Broadcast(ev)
}
