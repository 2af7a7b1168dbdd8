package client

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/audioroute/pkg/config"
	"github.com/dougsko/audioroute/pkg/engine"
	"github.com/dougsko/audioroute/pkg/hardware"
	"github.com/dougsko/audioroute/pkg/routing"
)

func startDaemon(t *testing.T, adapter *hardware.MockAdapter) *SocketClient {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "routectl-client-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	cfg := config.Default()
	cfg.Adapter.Platform = config.PlatformMock
	cfg.Storage.DatabasePath = filepath.Join(tempDir, "history.db")
	socketPath := filepath.Join(tempDir, "routed.sock")

	e, err := engine.NewCoreEngineWithAdapter(cfg, socketPath, adapter)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	t.Cleanup(func() { e.Stop() })

	c := NewSocketClient(socketPath)
	c.SetTimeout(5 * time.Second)
	return c
}

func TestSocketClientCommands(t *testing.T) {
	adapter := hardware.NewMockAdapter(routing.Speaker, routing.WiredHeadset)
	c := startDaemon(t, adapter)

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, c.Ping())
		assert.True(t, c.IsConnected())
	})

	t.Run("Headphones Connected", func(t *testing.T) {
		connected, err := c.IsHeadphonesConnected()
		require.NoError(t, err)
		assert.True(t, connected)
	})

	t.Run("Default Routing", func(t *testing.T) {
		ok, err := c.UseDefaultAudioRouting()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, routing.WiredHeadset, adapter.Active())
	})

	t.Run("Force Speaker", func(t *testing.T) {
		ok, err := c.ForceAudioToSpeaker()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, routing.Speaker, adapter.Active())
	})

	t.Run("Unsupported Method", func(t *testing.T) {
		_, err := c.Invoke("setVolume")
		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.True(t, cmdErr.Unsupported())
	})

	t.Run("Method With Line Break", func(t *testing.T) {
		forced := adapter.CallCount("ApplyForceSpeaker")
		calls := len(adapter.Calls())

		for _, method := range []string{
			"setVolume\nINVOKE:forceAudioToSpeaker",
			"setVolume\r\nINVOKE:forceAudioToSpeaker",
			"forceAudioToSpeaker\n",
		} {
			_, err := c.Invoke(method)
			var cmdErr *CommandError
			require.ErrorAs(t, err, &cmdErr)
			assert.True(t, cmdErr.Unsupported())
		}

		assert.Equal(t, forced, adapter.CallCount("ApplyForceSpeaker"))
		assert.Len(t, adapter.Calls(), calls)
	})

	t.Run("Adapter Failure", func(t *testing.T) {
		adapter.SetDefaultErr(errors.New("route change rejected"))
		defer adapter.SetDefaultErr(nil)

		_, err := c.UseDefaultAudioRouting()
		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.False(t, cmdErr.Unsupported())
		assert.Equal(t, hardware.CodeMockAdapter, cmdErr.Code)
		assert.Equal(t, "Error setting default audio routing: route change rejected", cmdErr.Message)
	})

	t.Run("Outputs", func(t *testing.T) {
		outputs, err := c.GetOutputs()
		require.NoError(t, err)
		assert.Equal(t, "mock", outputs.Adapter)
		assert.True(t, outputs.HasExternalOutput)
		assert.Equal(t, []routing.OutputDevice{routing.Speaker, routing.WiredHeadset}, outputs.Devices)
	})

	t.Run("History", func(t *testing.T) {
		records, err := c.GetHistory(3)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "useDefaultAudioRouting", records[0].Command)
		assert.False(t, records[0].Success)
		assert.Equal(t, "setVolume", records[1].Command)
		assert.Equal(t, "forceAudioToSpeaker", records[2].Command)
	})

	t.Run("Query History", func(t *testing.T) {
		failed, err := c.QueryHistory(HistoryFilter{FailuresOnly: true})
		require.NoError(t, err)
		require.Len(t, failed, 2)
		assert.Equal(t, "useDefaultAudioRouting", failed[0].Command)
		assert.Equal(t, "setVolume", failed[1].Command)

		forced, err := c.QueryHistory(HistoryFilter{Command: "forceAudioToSpeaker", Since: time.Now().Add(-time.Hour)})
		require.NoError(t, err)
		require.Len(t, forced, 1)
		assert.True(t, forced[0].Success)

		paged, err := c.QueryHistory(HistoryFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, paged, 1)
		assert.Equal(t, "setVolume", paged[0].Command)

		_, err = c.QueryHistory(HistoryFilter{Command: "speaker,failed=true"})
		assert.Error(t, err)
	})

	t.Run("Get Record", func(t *testing.T) {
		records, err := c.GetHistory(1)
		require.NoError(t, err)
		require.Len(t, records, 1)

		record, err := c.GetRecord(records[0].ID)
		require.NoError(t, err)
		assert.Equal(t, records[0].ID, record.ID)
		assert.Equal(t, hardware.CodeMockAdapter, record.ErrorCode)

		_, err = c.GetRecord("no-such-id")
		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.True(t, cmdErr.NotFound())
	})

	t.Run("Status", func(t *testing.T) {
		status, err := c.GetStatus()
		require.NoError(t, err)
		assert.Equal(t, "mock", status.Adapter)
		assert.Equal(t, int64(5), status.Commands)
		assert.Equal(t, int64(2), status.Failures)
	})
}

func TestSocketClientNoDaemon(t *testing.T) {
	c := NewSocketClient(filepath.Join(os.TempDir(), "routed-missing.sock"))
	c.SetTimeout(time.Second)

	assert.False(t, c.IsConnected())
	_, err := c.ForceAudioToSpeaker()
	assert.Error(t, err)
}
