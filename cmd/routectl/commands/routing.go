package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewSpeakerCmd creates the speaker command
func NewSpeakerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "speaker",
		Short: "Force audio output to the built-in speaker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd.OutOrStdout(), "forceAudioToSpeaker")
		},
	}
}

// NewDefaultCmd creates the default command
func NewDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Restore default routing, preferring an attached external output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd.OutOrStdout(), "useDefaultAudioRouting")
		},
	}
}

// NewHeadphonesCmd creates the headphones command
func NewHeadphonesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "headphones",
		Short: "Report whether an external audio output is attached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd.OutOrStdout(), "isHeadphonesConnected")
		},
	}
}

// NewInvokeCmd creates the invoke command
func NewInvokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invoke <method>",
		Short: "Invoke a routing command by method name",
		Example: `  routectl invoke forceAudioToSpeaker
  routectl invoke isHeadphonesConnected --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd.OutOrStdout(), args[0])
		},
	}
}

func runInvoke(out io.Writer, method string) error {
	result, err := newClient().Invoke(method)
	if err != nil {
		return err
	}

	if jsonOut {
		return writeJSON(out, map[string]interface{}{
			"method": method,
			"result": result,
		})
	}

	fmt.Fprintf(out, "%t\n", result)
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
