package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dougsko/audioroute/pkg/client"
	"github.com/dougsko/audioroute/pkg/verbose"
)

const defaultSocket = "/tmp/routed.sock"

var (
	socketPath string
	verboseOut bool
	jsonOut    bool
)

// NewRootCmd creates the routectl root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routectl",
		Short: "Control audio output routing through routed",
		Long: `routectl talks to the routed daemon over its Unix socket.

It can force playback to the built-in speaker, restore the platform
default routing, report whether headphones or another external output
is attached, and serve the same commands as MCP tools.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose.SetEnabled(verboseOut)
		},
	}

	def := defaultSocket
	if env := os.Getenv("ROUTED_SOCKET"); env != "" {
		def = env
	}

	cmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", def, "routed Unix socket path")
	cmd.PersistentFlags().BoolVarP(&verboseOut, "verbose", "v", false, "Trace socket traffic to stderr")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print results as JSON")

	cmd.AddCommand(NewSpeakerCmd())
	cmd.AddCommand(NewDefaultCmd())
	cmd.AddCommand(NewHeadphonesCmd())
	cmd.AddCommand(NewInvokeCmd())
	cmd.AddCommand(NewOutputsCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewPingCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// newClient is replaced in tests
var newClient = func() *client.SocketClient {
	return client.NewSocketClient(socketPath)
}
