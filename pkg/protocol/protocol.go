package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ErrInvalidMethod rejects INVOKE method names that cannot be a single
// protocol line
var ErrInvalidMethod = errors.New("invalid method name")

// ValidMethod reports whether name can travel as an INVOKE argument. Control
// characters would split or corrupt the line.
func ValidMethod(name string) bool {
	return !strings.ContainsFunc(name, unicode.IsControl)
}

// Command represents a command sent to the core engine
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Response represents a response from the core engine
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Code    string                 `json:"code,omitempty"`
}

// CommandRecord is one handled routing command, kept in the history store
type CommandRecord struct {
	ID                string    `json:"id"`
	Command           string    `json:"command"`
	Success           bool      `json:"success"`
	Result            bool      `json:"result"`
	ErrorCode         string    `json:"error_code,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	HasExternalOutput bool      `json:"has_external_output"`
	Devices           []string  `json:"devices"`
	DurationMs        int64     `json:"duration_ms"`
	Timestamp         time.Time `json:"timestamp"`
}

// Status represents the current daemon status
type Status struct {
	Adapter   string    `json:"adapter"`
	Platform  string    `json:"platform"`
	Commands  int64     `json:"commands"`
	Failures  int64     `json:"failures"`
	Uptime    string    `json:"uptime"`
	StartTime time.Time `json:"start_time"`
	Version   string    `json:"version"`
}

// ParseCommand parses a text command into a Command struct
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(strings.TrimSpace(parts[0])),
		Args: make(map[string]interface{}),
	}

	if len(parts) > 1 {
		args := strings.TrimSpace(parts[1])

		switch cmd.Type {
		case CmdInvoke:
			// INVOKE:forceAudioToSpeaker, method names are case sensitive
			if !ValidMethod(args) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, args)
			}
			cmd.Args["method"] = args

		case CmdHistory:
			// HISTORY:20 or HISTORY:limit=20,command=forceAudioToSpeaker,failed=true
			parseHistoryArgs(cmd.Args, args)

		case CmdRecord:
			// RECORD:<request id>
			cmd.Args["id"] = args
		}
	}

	return cmd, nil
}

// History filter keys
const (
	HistoryLimit   = "limit"
	HistoryOffset  = "offset"
	HistoryCommand = "command"
	HistoryFailed  = "failed"
	HistorySince   = "since"
)

func parseHistoryArgs(out map[string]interface{}, args string) {
	if args == "" {
		return
	}
	if !strings.Contains(args, "=") {
		out[HistoryLimit] = args
		return
	}
	for _, pair := range strings.Split(args, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		switch key {
		case HistoryLimit, HistoryOffset, HistoryCommand, HistoryFailed, HistorySince:
			out[key] = strings.TrimSpace(value)
		}
	}
}

// Arg returns a string argument, or "" when absent
func (c *Command) Arg(key string) string {
	v, _ := c.Args[key].(string)
	return v
}

// Method returns the INVOKE method name, or "" when absent
func (c *Command) Method() string {
	method, _ := c.Args["method"].(string)
	return method
}

// Limit returns the HISTORY limit, or def when absent or malformed
func (c *Command) Limit(def int) int {
	raw, ok := c.Args[HistoryLimit].(string)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Offset returns the HISTORY offset, or 0 when absent or malformed
func (c *Command) Offset() int {
	n, err := strconv.Atoi(c.Arg(HistoryOffset))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FailuresOnly reports whether HISTORY asks for failed commands only
func (c *Command) FailuresOnly() bool {
	failed, _ := strconv.ParseBool(c.Arg(HistoryFailed))
	return failed
}

// Since returns the HISTORY lower time bound, or nil when absent or malformed
func (c *Command) Since() *time.Time {
	raw := c.Arg(HistorySince)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// String converts a Response to its JSON line form
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

// NewCodedErrorResponse creates an error response carrying a machine readable code
func NewCodedErrorResponse(code, err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// CodeNotFound marks a RECORD lookup for an unknown request id
const CodeNotFound = "NOT_FOUND"

// Protocol commands
const (
	CmdInvoke  = "INVOKE"
	CmdOutputs = "OUTPUTS"
	CmdHistory = "HISTORY"
	CmdRecord  = "RECORD"
	CmdStatus  = "STATUS"
	CmdPing    = "PING"
	CmdQuit    = "QUIT"
)
