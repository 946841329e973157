// Package eventbus publishes SandboxEvents over a ZeroMQ PUB socket so any
// number of external subscribers can watch executions without the sandbox
// knowing they exist.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-zeromq/zmq4"

	"sandsheet/monitor"
	"sandsheet/supervisor"
)

// Publisher owns a bound PUB socket and fans SandboxEvents out to it under
// a fixed topic.
type Publisher struct {
	sock  zmq4.Socket
	topic string
}

// Topic is the ZeroMQ topic every event is published under.
const Topic = "sandsheet.execution"

// NewPublisher binds a PUB socket at addr (e.g. "tcp://127.0.0.1:5590").
func NewPublisher(ctx context.Context, addr string) (*Publisher, error) {
	sock := zmq4.NewPub(ctx)
	if err := sock.Listen(addr); err != nil {
		return nil, fmt.Errorf("eventbus: bind %s: %w", addr, err)
	}
	return &Publisher{sock: sock, topic: Topic}, nil
}

// Close releases the underlying socket.
func (p *Publisher) Close() error { return p.sock.Close() }

// Publish sends ev as a two-frame message: topic, then JSON payload.
func (p *Publisher) Publish(ev monitor.SandboxEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("eventbus: marshal event: %v", err)
		return
	}
	msg := zmq4.NewMsgFrom([]byte(p.topic), payload)
	if err := p.sock.Send(msg); err != nil {
		log.Printf("eventbus: publish failed: %v", err)
	}
}

// OnStart and OnFinish are runtime.Hooks-compatible callbacks.
func (p *Publisher) OnStart(script string) {
	p.Publish(monitor.SandboxEvent{Type: "started", Script: script})
}

func (p *Publisher) OnFinish(result supervisor.ExecutionResult, err error) {
	ev := monitor.SandboxEvent{Type: "finished", ExitKind: result.ExitKind, ExitCode: result.ExitCode}
	if err != nil {
		ev.Type = "error"
	}
	p.Publish(ev)
}
