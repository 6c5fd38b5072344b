// Command rvwatch follows the event stream of an RV telemetry server and prints what it receives.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
	apiKey     string
	logLevel   string
	logFormat  string

	rootCmd = &cobra.Command{
		Use:   "rvwatch",
		Short: "Follow the live event stream of an RV telemetry server",
		Long: `rvwatch connects to the websocket event stream of an RV telemetry server,
keeps the connection alive with exponential backoff and prints every event.
Type 'h' for the interactive commands.

Every setting of the config file can also be set with an RVWATCH_ environment
variable named after its section and key, e.g. RVWATCH_SERVER_URL or
RVWATCH_RECONNECT_MAX_ATTEMPTS. RVWATCH_API_KEY is short for RVWATCH_SERVER_API_KEY.
Unknown RVWATCH_ variables are rejected. Flags take precedence over both.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runWatch,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", "", "server base URL, e.g. http://192.168.1.50:3000")
	rootCmd.Flags().StringVarP(&apiKey, "api-key", "k", "", "API key sent in the Authorization header")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "", "json, console or plain")
}

// overrides collects the flags that were set explicitly, keyed like the config file.
func overrides(cmd *cobra.Command) map[string]any {
	values := map[string]any{}
	if cmd.Flags().Changed("server") {
		values["server.url"] = serverURL
	}
	if cmd.Flags().Changed("api-key") {
		values["server.api_key"] = apiKey
	}
	if cmd.Flags().Changed("log-level") {
		values["logging.level"] = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		values["logging.format"] = logFormat
	}
	return values
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
