package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/dougsko/audioroute/pkg/client"
)

// routingClient is the part of the socket client the MCP tools use
type routingClient interface {
	Invoke(method string) (bool, error)
	GetOutputs() (*client.Outputs, error)
}

var routingTools = []struct {
	method      string
	description string
}{
	{"forceAudioToSpeaker", "Route audio playback to the device's built-in speaker, even when headphones or another external output is attached."},
	{"useDefaultAudioRouting", "Restore default audio routing: keep an attached external output (wired, Bluetooth, AirPlay/Cast), otherwise use the built-in speaker."},
	{"isHeadphonesConnected", "Report whether headphones or another external audio output is currently attached."},
}

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the routing commands as MCP tools over stdio",
		Long: `Serve the routing commands as MCP tools over stdio

Each tool call is forwarded to the routed daemon, so the daemon must be
running and reachable on --socket.`,
		Example: `  # claude_desktop_config.json
  # {
  #   "mcpServers": {
  #     "audio-routing": {
  #       "command": "routectl",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
		Args: cobra.NoArgs,
		RunE: runMCP,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	server := newMCPServer(newClient())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol
	log.SetOutput(cmd.ErrOrStderr())
	log.Printf("routectl MCP server forwarding to %s", socketPath)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received")
		return nil
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

func newMCPServer(c routingClient) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer("routectl", versionInfo.Version)

	for _, tool := range routingTools {
		server.AddTool(mcp.Tool{
			Name:        tool.method,
			Description: tool.description,
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]interface{}{},
			},
		}, invokeTool(c, tool.method))
	}

	server.AddTool(mcp.Tool{
		Name:        "listAudioOutputs",
		Description: "List the audio outputs currently attached, with their kind.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, outputsTool(c))

	return server
}

func invokeTool(c routingClient, method string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := c.Invoke(method)
		if err != nil {
			var cmdErr *client.CommandError
			if errors.As(err, &cmdErr) {
				return mcp.NewToolResultError(fmt.Sprintf("%s: %s", cmdErr.Code, cmdErr.Message)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("routed unavailable: %v", err)), nil
		}
		return jsonResult(map[string]interface{}{
			"method": method,
			"result": result,
		})
	}
}

func outputsTool(c routingClient) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		outputs, err := c.GetOutputs()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list outputs: %v", err)), nil
		}
		return jsonResult(outputs)
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
