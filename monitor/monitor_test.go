package monitor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sandsheet/supervisor"
)

func TestDashboardBroadcastsToConnectedClient(t *testing.T) {
	d := NewDashboard()
	server := httptest.NewServer(handlerFunc(d.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(20 * time.Millisecond) // let the server register the client
	d.OnFinish(supervisor.ExecutionResult{ExitKind: supervisor.ExitNormal}, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev SandboxEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ev.Type != "finished" || ev.ExitKind != supervisor.ExitNormal {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request)

func (f handlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) { f(w, r) }
