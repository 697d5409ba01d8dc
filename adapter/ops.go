package adapter

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/sergev/geiger/protocol"
	"github.com/spf13/cobra"
)

var opsCmd = &cobra.Command{
	Use:         "ops",
	Short:       "List the counter operations",
	Long:        "List every operation of the counter protocol with its command, reply size and how well it is tested.",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{offlineAnnotation: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		bold := color.New(color.Bold)
		bold.Printf("%-16s %-18s %5s  %s\n", "OPERATION", "COMMAND", "REPLY", "STABILITY")
		for _, op := range protocol.Operations {
			reply := "-"
			if op.ReplySize > 0 {
				reply = fmt.Sprintf("%d", op.ReplySize)
			}
			command := "(parameterized)"
			if op.Command != "" {
				command = fmt.Sprintf("%q", string(op.Command))
			}
			fmt.Printf("%-16s %-18s %5s  %s\n", op.Name, command, reply, stabilityColor(op.Stability).Sprint(op.Stability))
		}
		return nil
	},
}

// stabilityColor picks a color for a stability tag
func stabilityColor(s protocol.Stability) *color.Color {
	switch s {
	case protocol.StabilityStable:
		return color.New(color.FgGreen)
	case protocol.StabilityUntested:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func init() {
	rootCmd.AddCommand(opsCmd)
}
