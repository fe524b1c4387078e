// Package models holds request and response shapes of the HTTP API.
package models

import (
	"github.com/smazurov/illuminode/internal/logging"
	"github.com/smazurov/illuminode/internal/protocol"
	"github.com/smazurov/illuminode/internal/types"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
	Session string `json:"session,omitempty" example:"ok" doc:"Session status: ok or invalid"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0+3f9a1c2" doc:"Application version with commit suffix"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.21.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// State models
type StateResponse struct {
	Body types.DeviceState
}

type PropertiesResponse struct {
	Body protocol.DeviceProperties
}

type LedPositionsData struct {
	Positions   []protocol.LedPosition   `json:"positions,omitempty" doc:"Cartesian positions in millimeters"`
	PositionsNA []protocol.LedPositionNA `json:"positions_na,omitempty" doc:"Positions in NA coordinates"`
	Count       int                      `json:"count" example:"593" doc:"Number of LEDs"`
}

type LedPositionsRequest struct {
	Coordinates string `query:"coords" enum:"mm,na" default:"mm" doc:"Coordinate system"`
}

type LedPositionsResponse struct {
	Body LedPositionsData
}

type TriggerSettingsData struct {
	Text string `json:"text" doc:"Trigger settings as printed by the firmware"`
}

type TriggerSettingsResponse struct {
	Body TriggerSettingsData
}

// Command result returned by every mutating endpoint
type CommandData struct {
	Command      string            `json:"command" example:"sc.red" doc:"Wire command sent to the device"`
	Lines        []string          `json:"lines,omitempty" doc:"Informational lines the device printed"`
	Acknowledged bool              `json:"acknowledged" doc:"Terminator received before the settle window ended"`
	Skipped      bool              `json:"skipped,omitempty" doc:"Command matched cached state and was not sent"`
	ElapsedMs    int64             `json:"elapsed_ms" example:"100" doc:"Time from transmit to completion"`
	State        types.DeviceState `json:"state" doc:"Device state after the command"`
}

type CommandResponse struct {
	Body CommandData
}

// Request models
type PatternRequest struct {
	Body struct {
		Name string `json:"name" enum:"bf,an,dpc.t,dpc.b,dpc.l,dpc.r,cdpc" example:"bf" doc:"Pattern mnemonic"`
	}
}

type ColorRequest struct {
	Body struct {
		Name string `json:"name,omitempty" enum:"red,green,blue,white" example:"red" doc:"Color preset"`
		R    *int   `json:"r,omitempty" minimum:"0" maximum:"255" doc:"Red level"`
		G    *int   `json:"g,omitempty" minimum:"0" maximum:"255" doc:"Green level"`
		B    *int   `json:"b,omitempty" minimum:"0" maximum:"255" doc:"Blue level"`
	}
}

type BrightnessRequest struct {
	Body struct {
		Value int `json:"value" example:"128" doc:"Brightness 0-255"`
	}
}

type NARequest struct {
	Body struct {
		Value *int     `json:"value,omitempty" example:"25" doc:"Numerical aperture x100"`
		NA    *float64 `json:"na,omitempty" example:"0.25" doc:"Numerical aperture"`
	}
}

type DistanceRequest struct {
	Body struct {
		Millimeters int `json:"mm" example:"50" doc:"Array to sample distance in millimeters"`
	}
}

type LedsRequest struct {
	Body struct {
		Indices []int `json:"indices" minItems:"1" doc:"LED indices, 0 is the center"`
	}
}

type AutoClearRequest struct {
	Body struct {
		Enabled bool `json:"enabled" doc:"Clear the array before each pattern"`
	}
}

type TriggerSetupRequest struct {
	Channel int `path:"channel" minimum:"0" maximum:"2" doc:"Trigger channel"`
	Body    struct {
		PulseWidthUs int `json:"pulse_width_us" example:"1000" doc:"Pulse width in microseconds"`
		StartDelayUs int `json:"start_delay_us" example:"0" doc:"Delay before the pulse in microseconds"`
	}
}

type SequenceBody struct {
	DelayMs      int   `json:"delay_ms" example:"40" doc:"Delay between frames in milliseconds"`
	Acquisitions int   `json:"acquisitions" example:"1" doc:"Number of acquisitions"`
	TriggerModes []int `json:"trigger_modes,omitempty" maxItems:"3" doc:"Per channel: 0 off, -1 every acquisition, -2 once, N every N frames"`
}

type DpcSequenceRequest struct {
	Body SequenceBody
}

type FpmSequenceRequest struct {
	Body struct {
		SequenceBody
		MaxNA int `json:"max_na" example:"25" doc:"Maximum NA x100"`
	}
}

type RawCommandRequest struct {
	Body struct {
		Command string `json:"command" minLength:"1" example:"sc.red" doc:"Wire mnemonic"`
	}
}

// Log models
type LogsRequest struct {
	Limit  int    `query:"limit" minimum:"0" default:"200" doc:"Return at most this many recent entries (0 for all)"`
	Module string `query:"module" doc:"Only entries from this module"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Log entries, oldest first"`
	Count   int                `json:"count" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

type LogLevelsData struct {
	Levels map[string]string `json:"levels" doc:"Effective level per module, the global level under \"global\""`
}

type LogLevelsResponse struct {
	Body LogLevelsData
}

type SetLogLevelRequest struct {
	Module string `path:"module" doc:"Module name, or \"global\" for the default level"`
	Body   struct {
		Level string `json:"level" enum:"debug,info,warn,error" doc:"New level"`
	}
}
