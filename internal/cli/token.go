package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/exam-timetable-api/internal/models"
	"github.com/noah-isme/exam-timetable-api/internal/service"
)

func newTokenCommand(a *app) *cobra.Command {
	var subject, role, name string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth := service.NewAuthService(a.logger, service.AuthConfig{
				AccessTokenSecret: a.cfg.JWT.Secret,
				AccessTokenExpiry: a.cfg.JWT.Expiration,
			})
			issued, err := auth.IssueToken(subject, models.UserRole(strings.ToUpper(role)), name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), issued.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "operator id written to the token")
	cmd.Flags().StringVarP(&role, "role", "r", string(models.RoleViewer), "COORDINATOR or VIEWER")
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
