package mqtt

import (
	"encoding/json"
	"strings"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "illuminode"

// Status payloads published to the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Topics holds the full topic names for one prefix.
type Topics struct {
	State   string
	Log     string
	Status  string
	Command string
	Result  string
}

// TopicsFor builds the topic set under prefix.
func TopicsFor(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		State:   prefix + "/state",
		Log:     prefix + "/log",
		Status:  prefix + "/status",
		Command: prefix + "/command",
		Result:  prefix + "/result",
	}
}

// CommandResult reports one executed command line.
type CommandResult struct {
	SessionID    string   `json:"session_id"`
	Command      string   `json:"command"`
	OK           bool     `json:"ok"`
	Lines        []string `json:"lines,omitempty"`
	Acknowledged bool     `json:"acknowledged,omitempty"`
	Skipped      bool     `json:"skipped,omitempty"`
	ElapsedMs    int64    `json:"elapsed_ms,omitempty"`
	Code         string   `json:"code,omitempty"`
	Error        string   `json:"error,omitempty"`
	Raw          string   `json:"raw,omitempty"`
	NotRun       []string `json:"not_run,omitempty"` // lines after a failure
	Timestamp    string   `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m CommandResult) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// LogMessage carries one device line.
type LogMessage struct {
	SessionID string `json:"session_id"`
	Command   string `json:"command,omitempty"`
	Class     string `json:"class"` // info, error
	Line      string `json:"line"`
	Timestamp string `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m LogMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalResult deserializes a CommandResult from JSON.
func UnmarshalResult(data []byte) (CommandResult, error) {
	var m CommandResult
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalLog deserializes a LogMessage from JSON.
func UnmarshalLog(data []byte) (LogMessage, error) {
	var m LogMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// commandLines splits a command payload into trimmed, non-empty lines.
// Lines starting with # are comments.
func commandLines(payload []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
