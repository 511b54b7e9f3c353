package cli

import (
	"context"
	"time"

	"github.com/rpggio/marginalia/internal/domain/project"
	"github.com/rpggio/marginalia/internal/workbench"
	"github.com/spf13/cobra"
)

// NewInviteCommand creates the invite command group.
func NewInviteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Create and redeem invite links",
	}

	var (
		projectID string
		role      string
		ttl       time.Duration
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an invite link for a project you own",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, api *workbench.API) (any, error) {
				return api.CreateInviteLink(ctx, projectID, project.Role(role), ttl)
			})
		},
	}
	create.Flags().StringVarP(&projectID, "project", "p", "", "project id")
	create.Flags().StringVar(&role, "role", string(project.RoleEditor), "role granted (editor|viewer)")
	create.Flags().DurationVar(&ttl, "ttl", 0, "link lifetime; zero uses the server default")
	_ = create.MarkFlagRequired("project")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "join <token-or-link>",
		Short: "Join a project through an invite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, api *workbench.API) (any, error) {
				return api.JoinProjectByInvite(ctx, args[0])
			})
		},
	})

	return cmd
}
