package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dougsko/audioroute/pkg/client"
	"github.com/dougsko/audioroute/pkg/logging"
)

const defaultHistoryLimit = 50

// handleGetStatus returns daemon status via socket
func (d *RouteDaemon) handleGetStatus(c *gin.Context) {
	status, err := d.socketClient.GetStatus()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "running",
		"version":  Version,
		"adapter":  status.Adapter,
		"platform": status.Platform,
		"uptime":   status.Uptime,
		"commands": status.Commands,
		"failures": status.Failures,
	})
}

// handleGetOutputs returns a fresh enumeration of attached outputs
func (d *RouteDaemon) handleGetOutputs(c *gin.Context) {
	outputs, err := d.socketClient.GetOutputs()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, outputs)
}

// handleGetHistory returns command records, newest first. Query parameters
// limit, offset, command, failed and since (RFC 3339) narrow the list.
func (d *RouteDaemon) handleGetHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		limit = defaultHistoryLimit
	}
	offset, err := strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	failed, _ := strconv.ParseBool(c.Query("failed"))

	filter := client.HistoryFilter{
		Limit:        limit,
		Offset:       offset,
		Command:      c.Query("command"),
		FailuresOnly: failed,
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "since must be an RFC 3339 time",
			})
			return
		}
		filter.Since = t
	}

	records, err := d.socketClient.QueryHistory(filter)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// handleGetRecord returns one command record by request id
func (d *RouteDaemon) handleGetRecord(c *gin.Context) {
	record, err := d.socketClient.GetRecord(c.Param("id"))
	if err != nil {
		var cmdErr *client.CommandError
		if errors.As(err, &cmdErr) && cmdErr.NotFound() {
			c.JSON(http.StatusNotFound, gin.H{"error": cmdErr.Message})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleInvoke runs a routing command named in the path
func (d *RouteDaemon) handleInvoke(c *gin.Context) {
	method := c.Param("method")

	result, err := d.socketClient.Invoke(method)
	if err != nil {
		status, body := invokeError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"method": method,
		"result": result,
	})
}

// invokeError maps a command failure to an HTTP status and body
func invokeError(err error) (int, gin.H) {
	var cmdErr *client.CommandError
	if !errors.As(err, &cmdErr) {
		return http.StatusServiceUnavailable, gin.H{"error": err.Error()}
	}

	status := http.StatusInternalServerError
	if cmdErr.Unsupported() {
		status = http.StatusNotImplemented
	}
	return status, gin.H{
		"code":    cmdErr.Code,
		"message": cmdErr.Message,
	}
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Local control clients
	},
}

// channelRequest is one method call on the WebSocket channel
type channelRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

type channelError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// channelResponse answers a channelRequest with the same id
type channelResponse struct {
	ID     json.RawMessage `json:"id"`
	Result *bool           `json:"result,omitempty"`
	Error  *channelError   `json:"error,omitempty"`
}

// handleMethodChannel serves routing commands over a WebSocket, one
// request at a time per connection.
func (d *RouteDaemon) handleMethodChannel(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("http", "WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	logging.Debug("http", "method channel client connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-d.ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon stopping"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		var req channelRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debugf("http", "method channel read error: %v", err)
			}
			return
		}

		if err := conn.WriteJSON(d.callMethod(req)); err != nil {
			logging.Debugf("http", "method channel write error: %v", err)
			return
		}
	}
}

func (d *RouteDaemon) callMethod(req channelRequest) channelResponse {
	resp := channelResponse{ID: req.ID}
	if len(resp.ID) == 0 {
		resp.ID = json.RawMessage("null")
	}

	result, err := d.socketClient.Invoke(req.Method)
	if err != nil {
		var cmdErr *client.CommandError
		if errors.As(err, &cmdErr) {
			resp.Error = &channelError{Code: cmdErr.Code, Message: cmdErr.Message}
		} else {
			resp.Error = &channelError{Code: "UNAVAILABLE", Message: err.Error()}
		}
		return resp
	}

	resp.Result = &result
	return resp
}
