package adapter

import (
	"fmt"

	"github.com/spf13/cobra"
)

var powerCmd = &cobra.Command{
	Use:       "power on|off",
	Short:     "Turn the counter on or off",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireCounter()
		if err != nil {
			return err
		}

		if args[0] == "on" {
			err = c.PowerOn()
		} else {
			err = c.PowerOff()
		}
		if err != nil {
			return fmt.Errorf("failed to power %s: %w", args[0], err)
		}
		fmt.Printf("Counter powered %s.\n", args[0])
		return nil
	},
}

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Restart the counter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireCounter()
		if err != nil {
			return err
		}
		err = c.Reboot()
		if err != nil {
			return fmt.Errorf("failed to reboot: %w", err)
		}
		fmt.Printf("Counter rebooted.\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(rebootCmd)
}
