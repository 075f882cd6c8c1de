package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "httpretry",
	Short: "Send HTTP requests with per-status retry budgets",
	Long: `httpretry sends HTTP requests and retries them with a configurable policy.

Every failure category has its own retry budget:
  - exact status codes ("503") and status classes ("5XX", "4XX")
  - TIMEOUT for attempts that hit the per-attempt deadline
  - NETWORK_ISSUE for other transport failures

Waits grow exponentially (coefficient^attempt * initial, clamped to the
maximum) or stay constant. The final response is printed whatever its
status; use --fail to turn non-2xx results into exit code 22.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.httpretry.yaml or ~/.config/httpretry/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, off)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress status output except errors")

	rootCmd.SetVersionTemplate(`httpretry {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "httpretry %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", gitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", buildDate)
		fmt.Fprintf(cmd.OutOrStdout(), "  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
