package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jrsteele09/go-ordering-server/client"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func loginCmd(c *cli) *cobra.Command {
	var identifier, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with an email address or phone number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if identifier == "" {
				if identifier, err = prompt(cmd.OutOrStdout(), in, "Email or phone: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(cmd.OutOrStdout(), in, "Password: "); err != nil {
					return err
				}
			}

			o := c.orchestrator()
			defer o.Close()

			profile, err := o.Login(cmd.Context(), identifier, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", displayName(profile), profile.UserType)
			return nil
		},
	}

	cmd.Flags().StringVarP(&identifier, "identifier", "u", "", "Email address or phone number")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted for when empty)")
	return cmd
}

func logoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.orchestrator().Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := restore(c)
			if err != nil {
				return err
			}
			defer o.Close()

			s, _ := o.Session()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:       %s\n", displayName(&s.User))
			fmt.Fprintf(out, "Role:       %s\n", s.User.UserType)
			fmt.Fprintf(out, "Refreshed:  %s\n", s.LoginTimestamp.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Expires:    %s\n", s.LoginTimestamp.Add(client.DefaultSessionTTL).Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func refreshCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the access token for a new one now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := restore(c)
			if err != nil {
				return err
			}
			defer o.Close()

			if err := o.Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Access token refreshed")
			return nil
		},
	}
}

func keepaliveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "keepalive",
		Short: "Keep refreshing the access token until interrupted or the session expires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ended := make(chan client.LogoutReason, 1)
			o := c.orchestrator(client.OnLogout(func(r client.LogoutReason) {
				select {
				case ended <- r:
				default:
				}
			}))

			ok, err := o.Restore()
			if err != nil {
				return err
			}
			if !ok {
				return client.ErrNotLoggedIn
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info().Str("server", c.serverURL).Msg("Keeping session alive, press Ctrl+C to stop")
			select {
			case <-ctx.Done():
				o.Close()
				log.Info().Msg("Stopped, session kept")
				return nil
			case r := <-ended:
				o.Close()
				return fmt.Errorf("session ended: %s", r)
			}
		},
	}
}

// restore loads the stored session and starts its refresh tasks.
func restore(c *cli) (*client.Orchestrator, error) {
	o := c.orchestrator()
	ok, err := o.Restore()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, client.ErrNotLoggedIn
	}
	return o, nil
}

func prompt(out io.Writer, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%s is required", strings.TrimSuffix(label, ": "))
	}
	return line, nil
}

func displayName(p *client.Profile) string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Email
	}
	return fmt.Sprintf("%s <%s>", name, p.Email)
}
