package adapter

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var syncTimeCmd = &cobra.Command{
	Use:   "sync-time",
	Short: "Set the counter clock to the host time",
	Long: `Set the clock of the counter to the current host time in the configured
time zone, then read it back and show the remaining drift.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireCounter()
		if err != nil {
			return err
		}

		before, err := c.DateTime()
		if err != nil {
			return err
		}
		fmt.Printf("Counter clock: %s (drift %s)\n", before.Format(time.DateTime), drift(before))

		err = c.SetDateTime(time.Now())
		if err != nil {
			return err
		}

		after, err := c.DateTime()
		if err != nil {
			return err
		}
		fmt.Printf("Counter clock: %s (drift %s)\n", after.Format(time.DateTime), drift(after))
		return nil
	},
}

// drift formats the offset of a counter clock reading from the host clock
func drift(t time.Time) string {
	d := t.Sub(time.Now()).Round(time.Second)
	if d >= -2*time.Second && d <= 2*time.Second {
		return color.GreenString("%s", d)
	}
	return color.YellowString("%s", d)
}

func init() {
	rootCmd.AddCommand(syncTimeCmd)
}
