package adapter

import (
	"fmt"

	"github.com/sergev/geiger/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the radiation counter",
	Long:  "Query identity, battery, clock and current count rates of the counter.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireCounter()
		if err != nil {
			return err
		}

		// Print status information
		c.PrintStatus()

		fmt.Printf("\nConfiguration script: %s\n", config.Path)
		fmt.Printf("History: %d bytes in pages of %d bytes\n", config.UserDataSize, config.PageSize)
		if config.MaxPageRetries == 0 {
			fmt.Printf("Page Retries: unlimited\n")
		} else {
			fmt.Printf("Page Retries: %d\n", config.MaxPageRetries)
		}
		fmt.Printf("Time Zone: %s\n", config.Location)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
