package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/illuminode/internal/events"
	"github.com/smazurov/illuminode/internal/protocol"
	"github.com/smazurov/illuminode/internal/session"
	"github.com/smazurov/illuminode/internal/types"
)

const commandQueueSize = 16

// Executor is the session surface the bridge drives. *session.Session satisfies it.
type Executor interface {
	Do(ctx context.Context, req protocol.Request) (*session.Response, error)
	State() types.DeviceState
}

// Subscriber is satisfied by *events.Bus.
type Subscriber interface {
	Subscribe(handler any) func()
}

// Bridge publishes session state and device output to the broker and runs
// commands received on the command topic.
type Bridge struct {
	client Client
	device Executor
	bus    Subscriber
	topics Topics
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	queue   chan []byte
	unsubs  []func()
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewBridge creates a bridge for device under prefix.
func NewBridge(client Client, device Executor, bus Subscriber, prefix string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		client: client,
		device: device,
		bus:    bus,
		topics: TopicsFor(prefix),
		logger: logger.With("component", "mqtt-bridge"),
		now:    time.Now,
	}
}

// Topics returns the topic names the bridge uses.
func (b *Bridge) Topics() Topics {
	return b.topics
}

// Start announces the bridge, publishes the current state and subscribes
// to the command topic.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}

	if err := b.client.Publish(b.topics.Status, []byte(StatusOnline), true); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	b.publishState(b.device.State())

	ctx, cancel := context.WithCancel(context.Background())
	b.queue = make(chan []byte, commandQueueSize)
	b.cancel = cancel
	b.done = make(chan struct{})

	b.unsubs = []func(){
		b.bus.Subscribe(func(e events.StateChangedEvent) { b.publishState(e.State) }),
		b.bus.Subscribe(b.handleDeviceMessage),
	}

	if err := b.client.Subscribe(b.topics.Command, b.enqueue); err != nil {
		b.cleanupLocked()
		cancel()
		return fmt.Errorf("subscribe %s: %w", b.topics.Command, err)
	}

	go b.worker(ctx, b.queue, b.done)
	b.running = true
	b.logger.Info("MQTT bridge started", "command_topic", b.topics.Command)
	return nil
}

func (b *Bridge) cleanupLocked() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}

// Stop unsubscribes, waits for the running payload to finish and marks the
// bridge offline.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	if err := b.client.Unsubscribe(b.topics.Command); err != nil {
		b.logger.Warn("Failed to unsubscribe command topic", "error", err)
	}
	b.cleanupLocked()
	b.cancel()
	done := b.done
	b.mu.Unlock()

	<-done

	if err := b.client.Publish(b.topics.Status, []byte(StatusOffline), true); err != nil {
		b.logger.Warn("Failed to publish offline status", "error", err)
	}
	b.logger.Info("MQTT bridge stopped")
}

// enqueue runs on the client goroutine and must not block.
func (b *Bridge) enqueue(topic string, payload []byte) {
	b.mu.Lock()
	running, queue := b.running, b.queue
	b.mu.Unlock()
	if !running {
		return
	}

	select {
	case queue <- append([]byte(nil), payload...):
	default:
		b.logger.Warn("Command queue full, dropping payload", "topic", topic)
		b.publishResult(CommandResult{
			Command:   string(payload),
			Code:      "QUEUE_FULL",
			Error:     "bridge command queue is full",
			SessionID: b.device.State().SessionID,
			Timestamp: b.timestamp(),
		})
	}
}

func (b *Bridge) worker(ctx context.Context, queue <-chan []byte, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-queue:
			b.run(ctx, commandLines(payload))
		}
	}
}

// run executes lines in order and stops at the first failure.
func (b *Bridge) run(ctx context.Context, lines []string) {
	for i, line := range lines {
		result := b.execute(ctx, line)
		if !result.OK {
			result.NotRun = lines[i+1:]
		}
		b.publishResult(result)
		if !result.OK {
			return
		}
	}
}

func (b *Bridge) execute(ctx context.Context, line string) CommandResult {
	result := CommandResult{
		SessionID: b.device.State().SessionID,
		Command:   line,
		Timestamp: b.timestamp(),
	}

	req, err := protocol.Parse(line)
	if err == nil {
		var resp *session.Response
		if resp, err = b.device.Do(ctx, req); err == nil {
			result.OK = true
			result.Command = resp.Command
			result.Lines = resp.Lines
			result.Acknowledged = resp.Acknowledged
			result.Skipped = resp.Skipped
			result.ElapsedMs = resp.Elapsed.Milliseconds()
			return result
		}
	}

	result.Code = string(protocol.CodeOf(err))
	result.Error = err.Error()
	var perr *protocol.Error
	if errors.As(err, &perr) {
		result.Raw = perr.Raw
		if perr.Command != "" {
			result.Command = perr.Command
		}
	}
	b.logger.Warn("Command failed", "command", line, "code", result.Code, "raw", result.Raw, "error", err)
	return result
}

func (b *Bridge) handleDeviceMessage(e events.DeviceMessageEvent) {
	if e.Class == protocol.LineTerminator.String() {
		return
	}
	msg := LogMessage{
		SessionID: e.SessionID,
		Command:   e.Command,
		Class:     e.Class,
		Line:      e.Line,
		Timestamp: e.Timestamp,
	}
	data, err := msg.Marshal()
	if err != nil {
		b.logger.Warn("Failed to marshal device line", "error", err)
		return
	}
	if err := b.client.Publish(b.topics.Log, data, false); err != nil {
		b.logger.Warn("Failed to publish device line", "error", err)
	}
}

func (b *Bridge) publishState(st types.DeviceState) {
	data, err := json.Marshal(st)
	if err != nil {
		b.logger.Warn("Failed to marshal state", "error", err)
		return
	}
	if err := b.client.Publish(b.topics.State, data, true); err != nil {
		b.logger.Warn("Failed to publish state", "error", err)
	}
}

func (b *Bridge) publishResult(result CommandResult) {
	data, err := result.Marshal()
	if err != nil {
		b.logger.Warn("Failed to marshal result", "error", err)
		return
	}
	if err := b.client.Publish(b.topics.Result, data, false); err != nil {
		b.logger.Warn("Failed to publish result", "command", result.Command, "error", err)
	}
}

func (b *Bridge) timestamp() string {
	return b.now().UTC().Format(time.RFC3339)
}
