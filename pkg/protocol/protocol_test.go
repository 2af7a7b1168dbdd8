package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	t.Run("INVOKE Command", func(t *testing.T) {
		cmd, err := ParseCommand("INVOKE:forceAudioToSpeaker")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if cmd.Type != CmdInvoke {
			t.Errorf("Expected type INVOKE, got %s", cmd.Type)
		}
		if cmd.Method() != "forceAudioToSpeaker" {
			t.Errorf("Expected method forceAudioToSpeaker, got %q", cmd.Method())
		}
	})

	t.Run("INVOKE Keeps Method Case", func(t *testing.T) {
		cmd, _ := ParseCommand("invoke:IsHeadphonesConnected\n")

		if cmd.Type != CmdInvoke {
			t.Errorf("Expected type INVOKE, got %s", cmd.Type)
		}
		if cmd.Method() != "IsHeadphonesConnected" {
			t.Errorf("Expected method case preserved, got %q", cmd.Method())
		}
	})

	t.Run("INVOKE Without Method", func(t *testing.T) {
		cmd, _ := ParseCommand("INVOKE")
		if cmd.Method() != "" {
			t.Errorf("Expected empty method, got %q", cmd.Method())
		}
	})

	t.Run("HISTORY Command with Limit", func(t *testing.T) {
		cmd, err := ParseCommand("HISTORY:20")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if cmd.Type != CmdHistory {
			t.Errorf("Expected type HISTORY, got %s", cmd.Type)
		}
		if cmd.Limit(50) != 20 {
			t.Errorf("Expected limit 20, got %d", cmd.Limit(50))
		}
	})

	t.Run("HISTORY Command Default Limit", func(t *testing.T) {
		cmd, _ := ParseCommand("HISTORY")
		if cmd.Limit(50) != 50 {
			t.Errorf("Expected default limit 50, got %d", cmd.Limit(50))
		}

		cmd, _ = ParseCommand("HISTORY:lots")
		if cmd.Limit(50) != 50 {
			t.Errorf("Expected default limit for malformed value, got %d", cmd.Limit(50))
		}
	})

	t.Run("INVOKE Rejects Control Characters", func(t *testing.T) {
		for _, text := range []string{
			"INVOKE:setVolume\rINVOKE:forceAudioToSpeaker",
			"INVOKE:setVolume\nINVOKE:forceAudioToSpeaker",
			"INVOKE:force\x00AudioToSpeaker",
			"INVOKE:force\tAudioToSpeaker",
		} {
			cmd, err := ParseCommand(text)
			if !errors.Is(err, ErrInvalidMethod) {
				t.Errorf("Expected ErrInvalidMethod for %q, got %v", text, err)
			}
			if cmd != nil {
				t.Errorf("Expected no command for %q", text)
			}
		}
	})

	t.Run("HISTORY Filters", func(t *testing.T) {
		cmd, err := ParseCommand("HISTORY:limit=5,offset=2,command=forceAudioToSpeaker,failed=true,since=2024-05-01T12:00:00Z,color=red")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if cmd.Limit(50) != 5 {
			t.Errorf("Expected limit 5, got %d", cmd.Limit(50))
		}
		if cmd.Offset() != 2 {
			t.Errorf("Expected offset 2, got %d", cmd.Offset())
		}
		if cmd.Arg(HistoryCommand) != "forceAudioToSpeaker" {
			t.Errorf("Expected command filter, got %q", cmd.Arg(HistoryCommand))
		}
		if !cmd.FailuresOnly() {
			t.Error("Expected failures only")
		}
		since := cmd.Since()
		if since == nil || !since.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
			t.Errorf("Unexpected since %v", since)
		}
		if _, ok := cmd.Args["color"]; ok {
			t.Error("Expected unknown filter key dropped")
		}
	})

	t.Run("HISTORY Malformed Filters", func(t *testing.T) {
		cmd, _ := ParseCommand("HISTORY:offset=-1,failed=maybe,since=yesterday")
		if cmd.Offset() != 0 {
			t.Errorf("Expected offset 0, got %d", cmd.Offset())
		}
		if cmd.FailuresOnly() {
			t.Error("Expected failures only false")
		}
		if cmd.Since() != nil {
			t.Error("Expected no since bound")
		}
	})

	t.Run("RECORD Command", func(t *testing.T) {
		cmd, err := ParseCommand("RECORD:5f0c2b1e-7a61-4b8e-9a51-0d8a3b2f1c11")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Type != CmdRecord {
			t.Errorf("Expected type RECORD, got %s", cmd.Type)
		}
		if cmd.Arg("id") != "5f0c2b1e-7a61-4b8e-9a51-0d8a3b2f1c11" {
			t.Errorf("Unexpected id %q", cmd.Arg("id"))
		}
	})

	t.Run("Simple Commands", func(t *testing.T) {
		for _, text := range []string{"ping", "OUTPUTS", " status ", "QUIT"} {
			cmd, err := ParseCommand(text)
			if err != nil {
				t.Fatalf("Expected no error for %q, got: %v", text, err)
			}
			if cmd.Type != strings.ToUpper(strings.TrimSpace(text)) {
				t.Errorf("Expected type %s, got %s", strings.ToUpper(text), cmd.Type)
			}
			if len(cmd.Args) != 0 {
				t.Errorf("Expected no args for %s, got %d", cmd.Type, len(cmd.Args))
			}
		}
	})
}

func TestResponse(t *testing.T) {
	t.Run("Success Response", func(t *testing.T) {
		resp := NewSuccessResponse(map[string]interface{}{"result": true})

		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(resp.String()), &decoded); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if decoded["success"] != true {
			t.Errorf("Expected success true, got %v", decoded["success"])
		}
		if _, ok := decoded["code"]; ok {
			t.Error("Expected no code on success response")
		}
	})

	t.Run("Coded Error Response", func(t *testing.T) {
		resp := NewCodedErrorResponse("UNSUPPORTED_COMMAND", "unsupported command: setVolume")

		var decoded Response
		if err := json.Unmarshal([]byte(resp.String()), &decoded); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if decoded.Success {
			t.Error("Expected success false")
		}
		if decoded.Code != "UNSUPPORTED_COMMAND" {
			t.Errorf("Expected code UNSUPPORTED_COMMAND, got %s", decoded.Code)
		}
		if decoded.Error != "unsupported command: setVolume" {
			t.Errorf("Unexpected error text %q", decoded.Error)
		}
	})
}

func TestCommandRecordJSON(t *testing.T) {
	record := CommandRecord{
		ID:                "5f0c2b1e-7a61-4b8e-9a51-0d8a3b2f1c11",
		Command:           "isHeadphonesConnected",
		Success:           true,
		Result:            true,
		HasExternalOutput: true,
		Devices:           []string{"speaker", "wired_headset"},
		DurationMs:        3,
		Timestamp:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Failed to marshal record: %v", err)
	}
	if strings.Contains(string(data), "error_code") {
		t.Errorf("Expected error fields omitted on success, got %s", data)
	}
	if !strings.Contains(string(data), `"devices":["speaker","wired_headset"]`) {
		t.Errorf("Expected device list in JSON, got %s", data)
	}
}
