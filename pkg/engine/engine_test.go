package engine

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dougsko/audioroute/pkg/config"
	"github.com/dougsko/audioroute/pkg/hardware"
	"github.com/dougsko/audioroute/pkg/protocol"
	"github.com/dougsko/audioroute/pkg/routing"
)

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "routed-engine-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	cfg := config.Default()
	cfg.Adapter.Platform = config.PlatformMock
	cfg.Storage.DatabasePath = filepath.Join(tempDir, "history.db")
	cfg.Storage.MaxRecords = 100
	cfg.API.UnixSocket = filepath.Join(tempDir, "test.sock")
	return cfg, cfg.API.UnixSocket
}

func startEngine(t *testing.T, adapter hardware.RoutingAdapter) (*CoreEngine, string) {
	t.Helper()
	cfg, socketPath := testConfig(t)

	engine, err := NewCoreEngineWithAdapter(cfg, socketPath, adapter)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	if err := engine.Start(); err != nil {
		t.Fatalf("Failed to start engine: %v", err)
	}
	t.Cleanup(func() { engine.Stop() })
	return engine, socketPath
}

func roundTrip(t *testing.T, socketPath string, lines ...string) []protocol.Response {
	t.Helper()
	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	scanner := bufio.NewScanner(conn)
	var responses []protocol.Response
	for _, line := range lines {
		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("Failed to write %q: %v", line, err)
		}
		if !scanner.Scan() {
			t.Fatalf("No response for %q: %v", line, scanner.Err())
		}
		var resp protocol.Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("Invalid response for %q: %v", line, err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestNewCoreEngine(t *testing.T) {
	t.Run("Mock Platform From Config", func(t *testing.T) {
		cfg, socketPath := testConfig(t)
		cfg.Adapter.MockOutputs = []string{"speaker", "wired_headset"}

		engine, err := NewCoreEngine(cfg, socketPath)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		defer engine.Stop()

		if engine.socketPath != socketPath {
			t.Errorf("Expected socket path %s, got %s", socketPath, engine.socketPath)
		}
		if engine.historyStore == nil {
			t.Error("Expected history store to be initialized")
		}
		if engine.Gateway().AdapterName() != "mock" {
			t.Errorf("Expected mock adapter, got %s", engine.Gateway().AdapterName())
		}
	})

	t.Run("History Disabled", func(t *testing.T) {
		cfg, socketPath := testConfig(t)
		cfg.Storage.DatabasePath = ""

		engine, err := NewCoreEngineWithAdapter(cfg, socketPath, hardware.NewMockAdapter())
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if engine.historyStore != nil {
			t.Error("Expected no history store")
		}

		resp := engine.handleCommand(&protocol.Command{Type: protocol.CmdHistory})
		if resp.Success {
			t.Error("Expected HISTORY to fail when history is disabled")
		}
	})

	t.Run("Foreign Platform", func(t *testing.T) {
		cfg, socketPath := testConfig(t)
		cfg.Adapter.Platform = "plan9"

		if _, err := NewCoreEngine(cfg, socketPath); err == nil {
			t.Error("Expected error for unavailable platform")
		}
	})
}

func TestSocketCommands(t *testing.T) {
	adapter := hardware.NewMockAdapter(routing.Speaker, routing.BluetoothClassic)
	_, socketPath := startEngine(t, adapter)

	t.Run("Ping", func(t *testing.T) {
		resp := roundTrip(t, socketPath, "PING")[0]
		if !resp.Success {
			t.Fatalf("Expected PING success, got error %s", resp.Error)
		}
		if _, ok := resp.Data["pong"]; !ok {
			t.Error("Expected pong in response")
		}
	})

	t.Run("Invoke Query", func(t *testing.T) {
		resp := roundTrip(t, socketPath, "INVOKE:isHeadphonesConnected")[0]
		if !resp.Success {
			t.Fatalf("Expected success, got error %s", resp.Error)
		}
		if resp.Data["result"] != true {
			t.Errorf("Expected result true, got %v", resp.Data["result"])
		}
	})

	t.Run("Invoke Unsupported", func(t *testing.T) {
		before := len(adapter.Calls())
		resp := roundTrip(t, socketPath, "INVOKE:setVolume")[0]
		if resp.Success {
			t.Fatal("Expected failure for unsupported method")
		}
		if resp.Code != "UNSUPPORTED_COMMAND" {
			t.Errorf("Expected UNSUPPORTED_COMMAND, got %s", resp.Code)
		}
		if len(adapter.Calls()) != before {
			t.Error("Expected adapter not to be called")
		}
	})

	t.Run("Invoke Adapter Failure", func(t *testing.T) {
		adapter.SetForceSpeakerErr(errors.New("sink busy"))
		defer adapter.SetForceSpeakerErr(nil)

		resp := roundTrip(t, socketPath, "INVOKE:forceAudioToSpeaker")[0]
		if resp.Success {
			t.Fatal("Expected failure")
		}
		if resp.Code != hardware.CodeMockAdapter {
			t.Errorf("Expected code %s, got %s", hardware.CodeMockAdapter, resp.Code)
		}
		if resp.Error != "Error forcing audio to speaker: sink busy" {
			t.Errorf("Unexpected error message %q", resp.Error)
		}
	})

	t.Run("Outputs", func(t *testing.T) {
		resp := roundTrip(t, socketPath, "OUTPUTS")[0]
		if !resp.Success {
			t.Fatalf("Expected success, got error %s", resp.Error)
		}
		devices, ok := resp.Data["devices"].([]interface{})
		if !ok || len(devices) != 2 || devices[1] != "bluetooth_classic" {
			t.Errorf("Unexpected devices %v", resp.Data["devices"])
		}
		if resp.Data["has_external_output"] != true {
			t.Error("Expected external output present")
		}
	})

	t.Run("History And Status", func(t *testing.T) {
		responses := roundTrip(t, socketPath, "HISTORY:2", "STATUS")

		history := responses[0]
		if !history.Success {
			t.Fatalf("Expected HISTORY success, got %s", history.Error)
		}
		if history.Data["count"] != float64(2) {
			t.Errorf("Expected 2 records, got %v", history.Data["count"])
		}

		status := responses[1]
		if !status.Success {
			t.Fatalf("Expected STATUS success, got %s", status.Error)
		}
		fields, _ := status.Data["status"].(map[string]interface{})
		if fields["adapter"] != "mock" {
			t.Errorf("Expected adapter mock, got %v", fields["adapter"])
		}
		if fields["commands"] != float64(3) {
			t.Errorf("Expected 3 commands, got %v", fields["commands"])
		}
	})

	t.Run("History Filters And Record", func(t *testing.T) {
		responses := roundTrip(t, socketPath,
			"HISTORY:failed=true",
			"HISTORY:command=forceAudioToSpeaker,failed=true,limit=5")

		if responses[0].Data["count"] != float64(2) {
			t.Errorf("Expected 2 failed records, got %v", responses[0].Data["count"])
		}
		filtered := responses[1]
		if filtered.Data["count"] != float64(1) {
			t.Fatalf("Expected 1 filtered record, got %v", filtered.Data["count"])
		}
		records := filtered.Data["records"].([]interface{})
		first := records[0].(map[string]interface{})
		if first["command"] != "forceAudioToSpeaker" || first["success"] != false {
			t.Errorf("Unexpected record %v", first)
		}

		id, _ := first["id"].(string)
		responses = roundTrip(t, socketPath, "RECORD:"+id, "RECORD:no-such-id")
		if !responses[0].Success {
			t.Fatalf("Expected RECORD success, got %s", responses[0].Error)
		}
		record := responses[0].Data["record"].(map[string]interface{})
		if record["error_code"] != hardware.CodeMockAdapter {
			t.Errorf("Expected error code on record, got %v", record["error_code"])
		}
		if responses[1].Success || responses[1].Code != protocol.CodeNotFound {
			t.Errorf("Expected NOT_FOUND, got %+v", responses[1])
		}
	})

	t.Run("Invoke With Control Characters", func(t *testing.T) {
		before := len(adapter.Calls())
		resp := roundTrip(t, socketPath, "INVOKE:setVolume\rINVOKE:forceAudioToSpeaker")[0]
		if resp.Success {
			t.Fatal("Expected failure for method with control characters")
		}
		if resp.Code != "UNSUPPORTED_COMMAND" {
			t.Errorf("Expected UNSUPPORTED_COMMAND, got %s", resp.Code)
		}
		if len(adapter.Calls()) != before {
			t.Error("Expected adapter not to be called")
		}
	})

	t.Run("Unknown Verb", func(t *testing.T) {
		resp := roundTrip(t, socketPath, "VOLUME:11")[0]
		if resp.Success {
			t.Error("Expected unknown verb to fail")
		}
	})

	t.Run("Quit Closes Connection", func(t *testing.T) {
		conn, err := net.Dial("unix", socketPath)
		if err != nil {
			t.Fatalf("Failed to connect: %v", err)
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(2 * time.Second))

		conn.Write([]byte("QUIT\n"))
		reader := bufio.NewReader(conn)
		if _, err := reader.ReadString('\n'); err != nil {
			t.Fatalf("Expected goodbye response, got: %v", err)
		}
		if _, err := reader.ReadString('\n'); err == nil {
			t.Error("Expected connection closed after QUIT")
		}
	})
}

func TestHistoryTrimmedOnOpen(t *testing.T) {
	cfg, socketPath := testConfig(t)

	engine, err := NewCoreEngineWithAdapter(cfg, socketPath, hardware.NewMockAdapter())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	for i := 0; i < 6; i++ {
		engine.Gateway().Handle("isHeadphonesConnected")
	}
	engine.Stop()

	cfg.Storage.MaxRecords = 2
	engine, err = NewCoreEngineWithAdapter(cfg, socketPath, hardware.NewMockAdapter())
	if err != nil {
		t.Fatalf("Failed to reopen engine: %v", err)
	}
	defer engine.Stop()

	records, err := engine.historyStore.GetRecentRecords(0)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected history trimmed to 2 records, got %d", len(records))
	}
}

func TestCoreEngineStop(t *testing.T) {
	cfg, socketPath := testConfig(t)
	engine, err := NewCoreEngineWithAdapter(cfg, socketPath, hardware.NewMockAdapter())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	if err := engine.Start(); err != nil {
		t.Fatalf("Failed to start engine: %v", err)
	}

	if _, err := os.Stat(socketPath); err != nil {
		t.Fatalf("Expected socket file, got: %v", err)
	}

	if err := engine.Stop(); err != nil {
		t.Fatalf("Expected clean stop, got: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("Expected socket file removed after stop")
	}
	if _, err := net.Dial("unix", socketPath); err == nil {
		t.Error("Expected dial to fail after stop")
	}
}
