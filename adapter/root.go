package adapter

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/sergev/geiger/config"
	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

// Commands carrying this annotation work without a counter attached
const offlineAnnotation = "offline"

var counter Counter

var (
	configFlag   string
	portFlag     string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "geiger",
	Short: "A CLI program which works with GQ GMC radiation counters",
	Long:  "The geiger tool is a CLI program which talks to GQ GMC radiation counters over USB serial.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize configuration
		var err error
		if configFlag != "" {
			err = config.InitializeFrom(configFlag)
		} else {
			err = config.Initialize()
		}
		if err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if portFlag != "" {
			config.Port = portFlag
		}
		level := config.LogLevel
		if logLevelFlag != "" {
			level = logLevelFlag
		}
		setupLogging(level)

		if isOffline(cmd) {
			return nil
		}
		counter, err = findCounter()
		return err
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", "", "configuration file (default ~/.geiger)")
	flags.StringVarP(&portFlag, "port", "p", "", "serial port of the counter, overrides discovery")
	flags.StringVar(&logLevelFlag, "log-level", "", "trace, debug, info, warn, error or off")
}

// isOffline reports whether cmd runs without a counter. An empty annotation
// value marks the command as always offline; otherwise the value names the
// flag that makes it offline when set.
func isOffline(cmd *cobra.Command) bool {
	flag, ok := cmd.Annotations[offlineAnnotation]
	if !ok {
		return false
	}
	return flag == "" || cmd.Flags().Changed(flag)
}

// findCounter attempts to find and initialize a registered counter.
// An explicit port from the config or the command line is tried with every
// registered factory; otherwise serial ports are matched by VID/PID.
func findCounter() (Counter, error) {
	if len(registeredCounters) == 0 {
		return nil, errors.New("no counter types registered")
	}

	if config.Port != "" {
		port := &enumerator.PortDetails{Name: config.Port, IsUSB: true}
		var errs []error
		for _, info := range registeredCounters {
			c, err := info.Factory(port)
			if err == nil {
				return c, nil
			}
			errs = append(errs, err)
		}
		return nil, fmt.Errorf("no counter responding on %s: %w", config.Port, errors.Join(errs...))
	}

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	for _, port := range ports {
		portVID, err := strconv.ParseUint(port.VID, 16, 16)
		if err != nil {
			continue
		}
		portPID, err := strconv.ParseUint(port.PID, 16, 16)
		if err != nil {
			continue
		}

		// Check each registered counter type
		for _, info := range matchCounter(uint16(portVID), uint16(portPID)) {
			c, err := info.Factory(port)
			if err != nil {
				log.Debug().Err(err).Str("port", port.Name).Msg("counter probe failed")
				continue // Try next port
			}
			return c, nil
		}
	}

	return nil, fmt.Errorf("no supported radiation counter found")
}

// requireCounter returns the counter found for this command
func requireCounter() (Counter, error) {
	if counter == nil {
		return nil, errors.New("counter not available")
	}
	return counter, nil
}

// closeCounter releases the serial port, if a counter was opened
func closeCounter() {
	if counter == nil {
		return
	}
	err := counter.Close()
	if err != nil {
		log.Warn().Err(err).Msg("failed to close counter")
	}
	counter = nil
}

// run executes the command tree with args and closes the counter however
// the command ended.
func run(args []string) error {
	defer closeCounter()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(run(os.Args[1:]))
}
