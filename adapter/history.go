package adapter

import (
	"fmt"
	"iter"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/sergev/geiger/config"
	"github.com/sergev/geiger/history"
	"github.com/spf13/cobra"
)

var (
	historyRawFile     string
	historyFromRawFile string
)

var historyCmd = &cobra.Command{
	Use:   "history [DEST.csv]",
	Short: "Download the history log of the counter",
	Long: `Read the history region of the counter, decode it into timestamped
count-rate samples and write them as CSV to DEST.csv, or to stdout.
With --raw the undecoded region is saved as well.
With --from-raw a previously saved region is decoded and no counter is used.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{offlineAnnotation: "from-raw"},
	RunE: func(cmd *cobra.Command, args []string) error {
		anomalies := 0
		opts := []history.Option{
			history.WithLocation(config.Location),
			history.WithLogger(log.Logger),
			history.WithAnomalyHandler(func(*history.Anomaly) {
				anomalies++
			}),
		}

		samples, err := historySamples(opts)
		if err != nil {
			return err
		}

		// Count while writing
		total := 0
		counted := func(yield func(history.Sample) bool) {
			for s := range samples {
				total++
				if !yield(s) {
					return
				}
			}
		}

		if len(args) > 0 {
			err = writeHistoryFile(args[0], counted)
		} else {
			err = history.WriteCSV(os.Stdout, counted)
		}
		if err != nil {
			return fmt.Errorf("failed to save history: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Decoded %d samples", total)
		if anomalies > 0 {
			fmt.Fprintf(os.Stderr, ", %s", color.YellowString("%d malformed records skipped", anomalies))
		}
		fmt.Fprintf(os.Stderr, ".\n")
		if len(args) > 0 {
			fmt.Fprintf(os.Stderr, "History saved to file '%s'.\n", args[0])
		}
		return nil
	},
}

// historySamples loads the history region from a saved file or from the counter
func historySamples(opts []history.Option) (iter.Seq[history.Sample], error) {
	if historyFromRawFile != "" {
		blob, err := os.ReadFile(historyFromRawFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", historyFromRawFile, err)
		}
		return history.Decode(blob, opts...), nil
	}

	c, err := requireCounter()
	if err != nil {
		return nil, err
	}

	if historyRawFile == "" {
		samples, err := c.History(opts...)
		fmt.Fprintf(os.Stderr, "\n")
		if err != nil {
			return nil, fmt.Errorf("failed to read history: %w", err)
		}
		return samples, nil
	}

	blob, err := c.ReadHistory()
	fmt.Fprintf(os.Stderr, "\n")
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	err = os.WriteFile(historyRawFile, blob, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to write file %s: %w", historyRawFile, err)
	}
	fmt.Fprintf(os.Stderr, "Raw history saved to file '%s'.\n", historyRawFile)
	return history.Decode(blob, opts...), nil
}

// writeHistoryFile writes samples as CSV to the named file
func writeHistoryFile(filename string, samples iter.Seq[history.Sample]) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filename, err)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
	}()
	return history.WriteCSV(f, samples)
}

func init() {
	historyCmd.Flags().StringVar(&historyRawFile, "raw", "", "also save the undecoded history region to `FILE`")
	historyCmd.Flags().StringVar(&historyFromRawFile, "from-raw", "", "decode a saved history region from `FILE` instead of the counter")
	historyCmd.MarkFlagsMutuallyExclusive("raw", "from-raw")
	rootCmd.AddCommand(historyCmd)
}
