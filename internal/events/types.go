package events

import "github.com/smazurov/illuminode/internal/types"

// Event type constants for kelindar/event.
const (
	TypeCommandCompleted uint32 = iota + 1
	TypeCommandFailed
	TypeStateChanged
	TypeDeviceMessage
	TypeSequenceStarted
	TypeSequenceAborted
	TypeSessionInvalidated
	TypeSettleReloaded
	TypeLogEntry
	TypeMetrics
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CommandCompletedEvent is published after the device accepted a command.
type CommandCompletedEvent struct {
	SessionID    string `json:"session_id" doc:"Session identifier"`
	Command      string `json:"command" example:"sc.green" doc:"Wire command"`
	Kind         string `json:"kind" example:"color" doc:"Request kind"`
	Acknowledged bool   `json:"acknowledged" doc:"Terminator received before the settle window ended"`
	Skipped      bool   `json:"skipped,omitempty" doc:"Command matched cached state and was not sent"`
	DurationMs   int64  `json:"duration_ms" example:"100" doc:"Time from transmit to completion"`
	Timestamp    string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CommandCompletedEvent.
func (e CommandCompletedEvent) Type() uint32 { return TypeCommandCompleted }

// CommandFailedEvent is published when a command returns an error.
type CommandFailedEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Command   string `json:"command" example:"rdpc.10.2" doc:"Wire command"`
	Kind      string `json:"kind" example:"dpc_sequence" doc:"Request kind"`
	Code      string `json:"code" example:"DEVICE_ERROR" doc:"Error code"`
	Message   string `json:"message" doc:"Error message"`
	Raw       string `json:"raw,omitempty" doc:"Device line, verbatim"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CommandFailedEvent.
func (e CommandFailedEvent) Type() uint32 { return TypeCommandFailed }

// StateChangedEvent carries the device state after an update.
type StateChangedEvent struct {
	State     types.DeviceState `json:"state" doc:"Device state snapshot"`
	Timestamp string            `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// DeviceMessageEvent is a line printed by the firmware.
type DeviceMessageEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Command   string `json:"command" doc:"Command in flight when the line arrived"`
	Class     string `json:"class" example:"info" doc:"Line class: info, error or terminator"`
	Line      string `json:"line" doc:"Line text"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceMessageEvent.
func (e DeviceMessageEvent) Type() uint32 { return TypeDeviceMessage }

// SequenceStartedEvent is published when the device accepted a DPC or FPM sequence.
type SequenceStartedEvent struct {
	SessionID    string `json:"session_id" doc:"Session identifier"`
	Command      string `json:"command" example:"rdpc.500.2" doc:"Sequence command"`
	DelayMs      int    `json:"delay_ms" example:"500" doc:"Delay between patterns"`
	Acquisitions int    `json:"acquisitions" example:"2" doc:"Number of acquisitions"`
	Timestamp    string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SequenceStartedEvent.
func (e SequenceStartedEvent) Type() uint32 { return TypeSequenceStarted }

// SequenceAbortedEvent is published when a clear stopped a running sequence.
type SequenceAbortedEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Pattern   string `json:"pattern" example:"rdpc" doc:"Sequence that was running"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SequenceAbortedEvent.
func (e SequenceAbortedEvent) Type() uint32 { return TypeSequenceAborted }

// SessionInvalidatedEvent is published once when a transport failure ends a session.
type SessionInvalidatedEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Command   string `json:"command" doc:"Command that hit the failure"`
	Error     string `json:"error" doc:"Failure description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionInvalidatedEvent.
func (e SessionInvalidatedEvent) Type() uint32 { return TypeSessionInvalidated }

// SettleReloadedEvent is published after the settle delay table was reloaded.
type SettleReloadedEvent struct {
	Path      string `json:"path" doc:"Settle file path"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SettleReloadedEvent.
func (e SettleReloadedEvent) Type() uint32 { return TypeSettleReloaded }

// LogEntryEvent carries one log record to log stream subscribers.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"session" doc:"Module that emitted the record"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// MetricsEvent carries periodic session totals to SSE clients.
type MetricsEvent struct {
	Commands       uint64 `json:"commands" doc:"Commands accepted by the device"`
	Skipped        uint64 `json:"skipped" doc:"Commands skipped as redundant"`
	Failures       uint64 `json:"failures" doc:"Commands that returned an error"`
	DeviceErrors   uint64 `json:"device_errors" doc:"Error lines received from the device"`
	SequenceActive bool   `json:"sequence_active" doc:"A sequence is running"`
	Stale          bool   `json:"stale" doc:"Cached state may not match the device"`
	Timestamp      string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for MetricsEvent.
func (e MetricsEvent) Type() uint32 { return TypeMetrics }
