package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/msalah0e/kgraph/internal/activity"
	"github.com/msalah0e/kgraph/internal/api"
	"github.com/msalah0e/kgraph/internal/cache"
	"github.com/msalah0e/kgraph/internal/ui"
	"github.com/msalah0e/kgraph/internal/vault"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func loginCmd() *cobra.Command {
	var access, refresh string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store backend access and refresh tokens in the vault",
		Long: "Store the JWT pair issued by the LMS backend. When --access is omitted\n" +
			"the token is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if access == "" {
				fmt.Printf("  Enter %s: ", ui.Brand.Sprint("access token"))
				reader := bufio.NewReader(os.Stdin)
				line, _ := reader.ReadString('\n')
				access = strings.TrimSpace(line)
			}
			if access == "" {
				return errors.New("empty access token, nothing stored")
			}

			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			if err := client.SetTokens(access, refresh); err != nil {
				return err
			}

			ui.Good.Printf("  %s Tokens stored in %s vault\n", ui.StatusIcon(true), cfg.Vault.Backend)
			if exp, ok := api.TokenExpiry(access); ok {
				fmt.Printf("  Access token expires %s\n", describeExpiry(exp))
			}
			if refresh == "" {
				ui.Warn.Printf("  %s No refresh token given, the session ends when the access token expires\n", ui.WarnIcon())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&access, "access", "", "Access token")
	cmd.Flags().StringVar(&refresh, "refresh", "", "Refresh token")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			client.ClearTokens()
			ui.Good.Printf("  %s Logged out\n", ui.StatusIcon(true))
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend, session, cache and last refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			ui.Banner("status")

			v, err := vault.New(cfg.Vault.Backend)
			if err != nil {
				return err
			}

			session, err := vault.LoadSession(v)
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Backend", cfg.API.BaseURL},
				{"Vault", cfg.Vault.Backend},
				{"Access token", tokenStatus(session.Access)},
				{"Refresh token", tokenStatus(session.Refresh)},
			}
			if fv, ok := v.(*vault.FileVault); ok && session.LoggedIn() {
				if _, savedAt, err := fv.Session(); err == nil && !savedAt.IsZero() {
					rows = append(rows, []string{"Tokens saved", savedAt.Local().Format("Jan 02 15:04")})
				}
			}

			if entry, err := cache.LoadEntry(); err != nil {
				rows = append(rows, []string{"Cache", ui.Bad.Sprintf("unreadable: %v", err)})
			} else if entry != nil {
				rows = append(rows, []string{"Cache", fmt.Sprintf("%d nodes, saved %s",
					len(entry.Snapshot.Nodes), entry.SavedAt.Local().Format("Jan 02 15:04"))})
			} else {
				rows = append(rows, []string{"Cache", "empty"})
			}

			if last, _ := activity.Read(1); len(last) > 0 {
				e := last[0]
				rows = append(rows, []string{"Last refresh", fmt.Sprintf("%s %s (%s)",
					stateIcon(e.State), e.State, e.Timestamp.Local().Format("Jan 02 15:04"))})
			} else {
				rows = append(rows, []string{"Last refresh", "never"})
			}

			ui.Table([]string{"Item", "Value"}, rows)
			return nil
		},
	}
}

func tokenStatus(token string) string {
	if token == "" {
		return "not set"
	}
	status := vault.Mask(token)
	if exp, ok := api.TokenExpiry(token); ok {
		status += ", expires " + describeExpiry(exp)
	}
	return status
}

func describeExpiry(exp time.Time) string {
	d := time.Until(exp).Round(time.Minute)
	if d <= 0 {
		return "now (expired " + exp.Local().Format("Jan 02 15:04") + ")"
	}
	return "in " + d.String()
}

func stateIcon(state string) string {
	switch state {
	case "ready":
		return ui.StatusIcon(true)
	case "failed":
		return ui.StatusIcon(false)
	default:
		return ui.WarnIcon()
	}
}
