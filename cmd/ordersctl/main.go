// Package main provides ordersctl, a command line client that logs in to the
// ordering server and keeps the session's access token fresh.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jrsteele09/go-ordering-server/client"
	"github.com/jrsteele09/go-ordering-server/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:3001"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli holds the persistent flags shared by every subcommand.
type cli struct {
	serverURL   string
	sessionPath string
	timeout     time.Duration
	verbose     bool
}

func rootCmd() *cobra.Command {
	c := &cli{}

	sessionPath, err := client.DefaultSessionPath()
	if err != nil {
		sessionPath = "ordersctl-session.json"
	}

	cmd := &cobra.Command{
		Use:   "ordersctl",
		Short: "Log in to the ordering server and keep the session alive",
		Long: `ordersctl manages a session against the ordering server.

Examples:
  ordersctl login -u alice@example.com   # log in, prompting for the password
  ordersctl whoami                       # show the stored session
  ordersctl refresh                      # rotate the access token now
  ordersctl keepalive                    # refresh in the background until interrupted
  ordersctl logout
`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(cmd, c.verbose)
		},
	}

	cmd.PersistentFlags().StringVar(&c.serverURL, "server", config.GetEnv("ORDERS_SERVER", defaultServerURL), "Ordering server base URL")
	cmd.PersistentFlags().StringVar(&c.sessionPath, "session", sessionPath, "Session file")
	cmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 10*time.Second, "Per-request timeout")
	cmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(
		loginCmd(c),
		logoutCmd(c),
		whoamiCmd(c),
		refreshCmd(c),
		keepaliveCmd(c),
	)
	return cmd
}

func (c *cli) orchestrator(opts ...client.Option) *client.Orchestrator {
	api := client.NewAPI(c.serverURL, client.WithRequestTimeout(c.timeout))
	return client.NewOrchestrator(api, client.NewFileStore(c.sessionPath), opts...)
}

func setupLogger(cmd *cobra.Command, verbose bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
