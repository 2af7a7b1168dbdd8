package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/dougsko/audioroute/pkg/config"
	"github.com/dougsko/audioroute/pkg/gateway"
	"github.com/dougsko/audioroute/pkg/hardware"
	"github.com/dougsko/audioroute/pkg/logging"
	"github.com/dougsko/audioroute/pkg/protocol"
	"github.com/dougsko/audioroute/pkg/storage"
)

// Version is reported in STATUS responses
var Version = "0.1.0-dev"

const defaultHistoryLimit = 50

// CoreEngine owns the platform adapter and serves routing commands over a
// Unix socket. All routing goes through its single Gateway.
type CoreEngine struct {
	config     *config.Config
	socketPath string
	listener   net.Listener
	running    bool
	mutex      sync.RWMutex
	startTime  time.Time
	wg         sync.WaitGroup

	adapter      hardware.RoutingAdapter
	gateway      *gateway.Gateway
	historyStore *storage.HistoryStore
}

// NewCoreEngine creates a core engine with the adapter selected by the config
func NewCoreEngine(cfg *config.Config, socketPath string) (*CoreEngine, error) {
	adapter, err := hardware.NewAdapter(hardware.AdapterConfigFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create routing adapter: %w", err)
	}

	e, err := NewCoreEngineWithAdapter(cfg, socketPath, adapter)
	if err != nil {
		if c, ok := adapter.(io.Closer); ok {
			c.Close()
		}
		return nil, err
	}
	return e, nil
}

// NewCoreEngineWithAdapter creates a core engine around an existing adapter
func NewCoreEngineWithAdapter(cfg *config.Config, socketPath string, adapter hardware.RoutingAdapter) (*CoreEngine, error) {
	e := &CoreEngine{
		config:     cfg,
		socketPath: socketPath,
		startTime:  time.Now(),
		adapter:    adapter,
	}

	var recorder gateway.Recorder
	if cfg.Storage.DatabasePath != "" {
		store, err := storage.NewHistoryStore(cfg.Storage.DatabasePath, cfg.Storage.MaxRecords)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		// max_records may have been lowered since the last run
		if err := store.CleanupOldRecords(); err != nil {
			logging.Warnf("engine", "history cleanup failed: %v", err)
		}
		e.historyStore = store
		recorder = store
	} else {
		logging.Info("engine", "command history disabled (no database path)")
	}

	e.gateway = gateway.NewGateway(adapter, recorder)
	return e, nil
}

// Gateway returns the command gateway
func (e *CoreEngine) Gateway() *gateway.Gateway {
	return e.gateway
}

// Start starts the Unix socket server
func (e *CoreEngine) Start() error {
	os.Remove(e.socketPath)

	listener, err := net.Listen("unix", e.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}

	if err := os.Chmod(e.socketPath, 0660); err != nil {
		logging.Warnf("engine", "failed to set socket permissions: %v", err)
	}

	e.mutex.Lock()
	e.listener = listener
	e.running = true
	e.mutex.Unlock()

	logging.Infof("engine", "core engine listening on %s (adapter: %s)", e.socketPath, e.gateway.AdapterName())

	e.wg.Add(1)
	go e.acceptConnections()

	return nil
}

// Stop stops the socket server and releases the adapter and history store
func (e *CoreEngine) Stop() error {
	e.mutex.Lock()
	e.running = false
	listener := e.listener
	e.mutex.Unlock()

	if listener != nil {
		listener.Close()
		e.wg.Wait()
	}

	if c, ok := e.adapter.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logging.Warnf("engine", "failed to close adapter: %v", err)
		}
	}

	if e.historyStore != nil {
		if err := e.historyStore.Close(); err != nil {
			logging.Warnf("engine", "failed to close history store: %v", err)
		}
	}

	os.Remove(e.socketPath)
	return nil
}

func (e *CoreEngine) isRunning() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.running
}

func (e *CoreEngine) acceptConnections() {
	defer e.wg.Done()

	for {
		conn, err := e.listener.Accept()
		if err != nil {
			if !e.isRunning() {
				return
			}
			logging.Warnf("engine", "socket accept error: %v", err)
			continue
		}

		go e.handleConnection(conn)
	}
}

func (e *CoreEngine) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			response := protocol.NewErrorResponse(fmt.Sprintf("parse error: %v", err))
			if errors.Is(err, protocol.ErrInvalidMethod) {
				response.Code = gateway.CodeUnsupportedCommand
			}
			conn.Write([]byte(response.String() + "\n"))
			continue
		}

		response := e.handleCommand(cmd)
		if _, err := conn.Write([]byte(response.String() + "\n")); err != nil {
			logging.Debugf("engine", "socket write error: %v", err)
			return
		}

		if cmd.Type == protocol.CmdQuit {
			return
		}
	}
}

// handleCommand processes a single command
func (e *CoreEngine) handleCommand(cmd *protocol.Command) *protocol.Response {
	switch cmd.Type {
	case protocol.CmdInvoke:
		return e.handleInvoke(cmd)

	case protocol.CmdOutputs:
		return e.handleOutputs()

	case protocol.CmdHistory:
		return e.handleHistory(cmd)

	case protocol.CmdRecord:
		return e.handleRecord(cmd)

	case protocol.CmdStatus:
		return e.handleStatus()

	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"pong": time.Now().Unix(),
		})

	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "goodbye",
		})

	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

// handleInvoke runs a routing command through the gateway
func (e *CoreEngine) handleInvoke(cmd *protocol.Command) *protocol.Response {
	method := cmd.Method()
	result, err := e.gateway.Handle(method)
	if err != nil {
		return protocol.NewCodedErrorResponse(gateway.ErrorCode(err), err.Error())
	}

	return protocol.NewSuccessResponse(map[string]interface{}{
		"method": method,
		"result": result,
	})
}

// handleOutputs reports a fresh enumeration without changing routing
func (e *CoreEngine) handleOutputs() *protocol.Response {
	detection := e.gateway.Outputs()
	return protocol.NewSuccessResponse(map[string]interface{}{
		"adapter":             e.gateway.AdapterName(),
		"has_external_output": detection.HasExternalOutput,
		"devices":             detection.Devices,
	})
}

// handleHistory returns command records, newest first, narrowed by the
// optional HISTORY filters
func (e *CoreEngine) handleHistory(cmd *protocol.Command) *protocol.Response {
	if e.historyStore == nil {
		return protocol.NewErrorResponse("command history is disabled")
	}

	records, err := e.historyStore.GetRecords(storage.HistoryQuery{
		Limit:        cmd.Limit(defaultHistoryLimit),
		Offset:       cmd.Offset(),
		Since:        cmd.Since(),
		Command:      cmd.Arg(protocol.HistoryCommand),
		FailuresOnly: cmd.FailuresOnly(),
	})
	if err != nil {
		return protocol.NewErrorResponse(fmt.Sprintf("failed to read history: %v", err))
	}

	return protocol.NewSuccessResponse(map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// handleRecord returns one command record by request id
func (e *CoreEngine) handleRecord(cmd *protocol.Command) *protocol.Response {
	if e.historyStore == nil {
		return protocol.NewErrorResponse("command history is disabled")
	}

	id := cmd.Arg("id")
	if id == "" {
		return protocol.NewErrorResponse("request id required")
	}

	record, err := e.historyStore.GetRecord(id)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return protocol.NewCodedErrorResponse(protocol.CodeNotFound, err.Error())
		}
		return protocol.NewErrorResponse(fmt.Sprintf("failed to read record: %v", err))
	}

	return protocol.NewSuccessResponse(map[string]interface{}{
		"record": record,
	})
}

// handleStatus returns current daemon status
func (e *CoreEngine) handleStatus() *protocol.Response {
	commands, failures := e.gateway.Stats()
	status := protocol.Status{
		Adapter:   e.gateway.AdapterName(),
		Platform:  e.config.ResolvePlatform(),
		Commands:  commands,
		Failures:  failures,
		Uptime:    time.Since(e.startTime).Round(time.Second).String(),
		StartTime: e.startTime,
		Version:   Version,
	}

	data := map[string]interface{}{
		"status": status,
	}

	if e.historyStore != nil {
		if stats, err := e.historyStore.GetStats(); err == nil {
			data["history"] = stats
		} else {
			logging.Warnf("engine", "failed to read history stats: %v", err)
		}
	}

	return protocol.NewSuccessResponse(data)
}
