package protocol

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dougsko/qamd/pkg/qam"
)

// Job modes
const (
	ModeModulate   = "modulate"
	ModeDemodulate = "demodulate"
)

// Job statuses
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Job records one modulate or demodulate run
type Job struct {
	ID              int64     `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Mode            string    `json:"mode"`
	Source          string    `json:"source"`
	BitsPerSymbol   int       `json:"bits_per_symbol"`
	SNRDB           *float64  `json:"snr_db,omitempty"`
	InputBytes      int       `json:"input_bytes"`
	Symbols         int       `json:"symbols"`
	OutputBytes     int       `json:"output_bytes"`
	Compared        bool      `json:"compared"`
	Mismatches      int       `json:"mismatches"`
	MatchPercentage float64   `json:"match_percentage"`
	DurationMS      int64     `json:"duration_ms"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
}

// Status represents the current daemon status
type Status struct {
	Version         string        `json:"version"`
	StartTime       time.Time     `json:"start_time"`
	Uptime          string        `json:"uptime"`
	BitsPerSymbol   int           `json:"bits_per_symbol"`
	RotationDegrees float64       `json:"rotation_degrees"`
	Saturate        bool          `json:"saturate"`
	Workers         int           `json:"workers"`
	JobsRun         int64         `json:"jobs_run"`
	Subscribers     int           `json:"subscribers"`
	SymbolBuffers   qam.PoolStats `json:"symbol_buffers"`
}

// Event types pushed to websocket subscribers
const (
	EventJobCompleted = "job_completed"
	EventJobFailed    = "job_failed"
	EventPong         = "pong"
	EventJobs         = "jobs"
	EventError        = "error"
)

// Event is a message pushed to websocket subscribers
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Job       *Job      `json:"job,omitempty"`
	Jobs      []Job     `json:"jobs,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewJobEvent wraps a finished job in an event
func NewJobEvent(job Job) Event {
	eventType := EventJobCompleted
	if job.Status == StatusFailed {
		eventType = EventJobFailed
	}
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Job:       &job,
	}
}

// Command represents a command sent by a websocket client
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// ParseCommand parses a text command into a Command struct
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(parts[0]),
		Args: make(map[string]interface{}),
	}

	if len(parts) > 1 {
		args := parts[1]

		switch cmd.Type {
		case CmdJobs:
			// JOBS:10 or JOBS:modulate:10
			jobParts := strings.SplitN(args, ":", 2)
			if len(jobParts) == 2 {
				cmd.Args["mode"] = strings.ToLower(jobParts[0])
				cmd.Args["limit"] = jobParts[1]
			} else if jobParts[0] == ModeModulate || jobParts[0] == ModeDemodulate {
				cmd.Args["mode"] = jobParts[0]
			} else {
				cmd.Args["limit"] = jobParts[0]
			}
		}
	}

	return cmd, nil
}

// Response is the JSON envelope returned by the HTTP API
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// String converts a Response to a JSON string
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// Websocket client commands
const (
	CmdPing = "PING"
	CmdJobs = "JOBS"
)
