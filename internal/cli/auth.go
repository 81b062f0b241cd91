package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/agentloop/internal/tools"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to external services",
	}
	cmd.AddCommand(newAuthDriveCmd())
	return cmd
}

func newAuthDriveCmd() *cobra.Command {
	var credentials string

	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Authorize read-only Google Drive access for the drive_search tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				if credentials == "" {
					credentials = a.cfg.Tools.Drive.CredentialsFile
				}
				if credentials == "" {
					return errors.New("no OAuth client credentials: set tools.drive.credentialsFile or pass --credentials")
				}
				oc, err := tools.DriveOAuthConfig(credentials)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				authURL := oc.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
				fmt.Fprintf(out, "Open this link in your browser, then paste the authorization code:\n\n%s\n\ncode: ", authURL)

				code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				code = strings.TrimSpace(code)
				if code == "" {
					if err != nil {
						return fmt.Errorf("reading authorization code: %w", err)
					}
					return errors.New("empty authorization code")
				}

				tok, err := oc.Exchange(ctx, code)
				if err != nil {
					return fmt.Errorf("exchanging authorization code: %w", err)
				}
				if err := tools.SaveToken(a.cfg.Tools.Drive.TokenFile, tok); err != nil {
					return err
				}
				fmt.Fprintf(out, "Token saved to %s\n", a.cfg.Tools.Drive.TokenFile)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&credentials, "credentials", "", "OAuth client credentials JSON (default tools.drive.credentialsFile)")
	return cmd
}
