package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dougsko/audioroute/pkg/protocol"
	"github.com/dougsko/audioroute/pkg/routing"
	"github.com/dougsko/audioroute/pkg/verbose"
)

// DefaultTimeout bounds one socket round trip. Routing commands are not
// cancelled by the daemon, so this only limits how long a caller waits.
const DefaultTimeout = 30 * time.Second

const unsupportedCode = "UNSUPPORTED_COMMAND"

// CommandError is a failure reported by the daemon for a routing command
type CommandError struct {
	Code    string
	Message string
}

func (e *CommandError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unsupported reports whether the daemon rejected the method name
func (e *CommandError) Unsupported() bool {
	return e.Code == unsupportedCode
}

// Outputs is the daemon's view of the attached outputs
type Outputs struct {
	Adapter           string                 `json:"adapter"`
	HasExternalOutput bool                   `json:"has_external_output"`
	Devices           []routing.OutputDevice `json:"devices"`
}

// SocketClient represents a client connection to the core engine
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// NewSocketClient creates a new socket client
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    DefaultTimeout,
	}
}

// SetTimeout changes the round trip timeout
func (c *SocketClient) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SocketPath returns the daemon socket path
func (c *SocketClient) SocketPath() string {
	return c.socketPath
}

// SendCommand sends a command and returns the response
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	verbose.Printf("-> %s", cmd)
	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return nil, fmt.Errorf("no response received")
	}

	responseText := scanner.Text()
	verbose.Printf("<- %s", responseText)

	var response protocol.Response
	if err := json.Unmarshal([]byte(responseText), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &response, nil
}

// Invoke runs a routing command by method name and returns its boolean result.
// Names that cannot travel as one protocol line are rejected without being sent.
func (c *SocketClient) Invoke(method string) (bool, error) {
	if !protocol.ValidMethod(method) {
		return false, &CommandError{
			Code:    unsupportedCode,
			Message: fmt.Sprintf("unsupported command: %q", method),
		}
	}

	resp, err := c.SendCommand(fmt.Sprintf("%s:%s", protocol.CmdInvoke, method))
	if err != nil {
		return false, err
	}

	if !resp.Success {
		return false, &CommandError{Code: resp.Code, Message: resp.Error}
	}

	result, ok := resp.Data["result"].(bool)
	if !ok {
		return false, fmt.Errorf("result not found in response")
	}
	return result, nil
}

// ForceAudioToSpeaker routes playback to the built-in speaker
func (c *SocketClient) ForceAudioToSpeaker() (bool, error) {
	return c.Invoke("forceAudioToSpeaker")
}

// UseDefaultAudioRouting restores platform default routing
func (c *SocketClient) UseDefaultAudioRouting() (bool, error) {
	return c.Invoke("useDefaultAudioRouting")
}

// IsHeadphonesConnected reports whether an external output is attached
func (c *SocketClient) IsHeadphonesConnected() (bool, error) {
	return c.Invoke("isHeadphonesConnected")
}

// GetOutputs lists the attached outputs
func (c *SocketClient) GetOutputs() (*Outputs, error) {
	resp, err := c.SendCommand(protocol.CmdOutputs)
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, fmt.Errorf("outputs error: %s", resp.Error)
	}

	var outputs Outputs
	if err := remarshal(resp.Data, &outputs); err != nil {
		return nil, fmt.Errorf("failed to parse outputs: %w", err)
	}
	return &outputs, nil
}

// HistoryFilter narrows a history query. Zero values mean no filter.
type HistoryFilter struct {
	Limit        int
	Offset       int
	Command      string
	FailuresOnly bool
	Since        time.Time
}

func (f HistoryFilter) encode() (string, error) {
	var args []string
	if f.Limit > 0 {
		args = append(args, fmt.Sprintf("%s=%d", protocol.HistoryLimit, f.Limit))
	}
	if f.Offset > 0 {
		args = append(args, fmt.Sprintf("%s=%d", protocol.HistoryOffset, f.Offset))
	}
	if f.Command != "" {
		if !protocol.ValidMethod(f.Command) || strings.ContainsAny(f.Command, ",=") {
			return "", fmt.Errorf("invalid command filter %q", f.Command)
		}
		args = append(args, protocol.HistoryCommand+"="+f.Command)
	}
	if f.FailuresOnly {
		args = append(args, protocol.HistoryFailed+"=true")
	}
	if !f.Since.IsZero() {
		args = append(args, protocol.HistorySince+"="+f.Since.UTC().Format(time.RFC3339))
	}

	if len(args) == 0 {
		return protocol.CmdHistory, nil
	}
	return protocol.CmdHistory + ":" + strings.Join(args, ","), nil
}

// GetHistory gets recent command records
func (c *SocketClient) GetHistory(limit int) ([]protocol.CommandRecord, error) {
	return c.QueryHistory(HistoryFilter{Limit: limit})
}

// QueryHistory gets command records matching the filter, newest first
func (c *SocketClient) QueryHistory(filter HistoryFilter) ([]protocol.CommandRecord, error) {
	cmd, err := filter.encode()
	if err != nil {
		return nil, err
	}

	resp, err := c.SendCommand(cmd)
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, fmt.Errorf("history error: %s", resp.Error)
	}

	recordsData, ok := resp.Data["records"]
	if !ok {
		return []protocol.CommandRecord{}, nil
	}

	var records []protocol.CommandRecord
	if err := remarshal(recordsData, &records); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return records, nil
}

// GetRecord gets one command record by request id. A missing record is a
// *CommandError with code NOT_FOUND.
func (c *SocketClient) GetRecord(id string) (*protocol.CommandRecord, error) {
	if id == "" || !protocol.ValidMethod(id) {
		return nil, &CommandError{
			Code:    protocol.CodeNotFound,
			Message: fmt.Sprintf("no command record for request id %q", id),
		}
	}

	resp, err := c.SendCommand(fmt.Sprintf("%s:%s", protocol.CmdRecord, id))
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		if resp.Code != "" {
			return nil, &CommandError{Code: resp.Code, Message: resp.Error}
		}
		return nil, fmt.Errorf("record error: %s", resp.Error)
	}

	var record protocol.CommandRecord
	if err := remarshal(resp.Data["record"], &record); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	return &record, nil
}

// NotFound reports whether the daemon had no record for a lookup
func (e *CommandError) NotFound() bool {
	return e.Code == protocol.CodeNotFound
}

// GetStatus gets the current daemon status
func (c *SocketClient) GetStatus() (*protocol.Status, error) {
	resp, err := c.SendCommand(protocol.CmdStatus)
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, fmt.Errorf("status error: %s", resp.Error)
	}

	statusData, ok := resp.Data["status"]
	if !ok {
		return nil, fmt.Errorf("status not found in response")
	}

	var status protocol.Status
	if err := remarshal(statusData, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status: %w", err)
	}

	return &status, nil
}

// Ping tests the connection
func (c *SocketClient) Ping() error {
	resp, err := c.SendCommand(protocol.CmdPing)
	if err != nil {
		return err
	}

	if !resp.Success {
		return fmt.Errorf("ping error: %s", resp.Error)
	}

	return nil
}

// IsConnected tests if the daemon is reachable
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}

// remarshal converts a decoded JSON value into a typed one
func remarshal(in interface{}, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
