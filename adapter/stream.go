package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var streamCount int

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Show counts per second as the counter reports them",
	Long: `Turn on the heartbeat of the counter and print every count-per-second
sample it pushes. Runs until -n samples were received or Ctrl-C is pressed;
the heartbeat is turned off in both cases.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireCounter()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		count := streamCount
		if count <= 0 {
			count = -1 // unbounded
		}
		n := 0
		for rate, err := range c.Rates(ctx, count) {
			if errors.Is(err, context.Canceled) {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to stream count rate: %w", err)
			}
			n++
			fmt.Printf("%s  %4d  CPS %s\n", time.Now().Format(time.TimeOnly), n, rateColor(int(rate)).Sprintf("%6d", rate))
		}
		fmt.Printf("Received %d samples.\n", n)
		return nil
	},
}

// rateColor picks a color for a count rate
func rateColor(rate int) *color.Color {
	switch {
	case rate >= 0x1000:
		return color.New(color.FgRed, color.Bold)
	case rate >= 0x0400:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func init() {
	streamCmd.Flags().IntVarP(&streamCount, "count", "n", 0, "number of samples, 0 streams until interrupted")
	rootCmd.AddCommand(streamCmd)
}
