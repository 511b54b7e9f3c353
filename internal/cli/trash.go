package cli

import (
	"context"

	"github.com/rpggio/marginalia/internal/workbench"
	"github.com/spf13/cobra"
)

// NewTrashCommand creates the trash command group.
func NewTrashCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trash",
		Short: "Inspect and manage trashed projects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List trashed projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, api *workbench.API) (any, error) {
				return api.ListTrash(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <project-id>",
		Short: "Restore a trashed project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, api *workbench.API) (any, error) {
				if err := api.RestoreProject(ctx, args[0]); err != nil {
					return nil, err
				}
				return map[string]string{"restored": args[0]}, nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge <project-id>",
		Short: "Permanently delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, api *workbench.API) (any, error) {
				if err := api.PermanentlyDeleteProject(ctx, args[0]); err != nil {
					return nil, err
				}
				return map[string]string{"deleted": args[0]}, nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "empty",
		Short: "Permanently delete every trashed project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, api *workbench.API) (any, error) {
				return api.EmptyTrash(ctx)
			})
		},
	})

	return cmd
}
