package cli

import (
	"context"

	"github.com/rpggio/marginalia/internal/workbench"
	"github.com/spf13/cobra"
)

// NewProjectsCommand creates the projects command group.
func NewProjectsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List, create, rename and delete projects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the user's projects and library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, api *workbench.API) (any, error) {
				return api.ListProjects(ctx)
			})
		},
	})

	var mode string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, api *workbench.API) (any, error) {
				return api.CreateProject(ctx, args[0], mode)
			})
		},
	}
	create.Flags().StringVar(&mode, "mode", "", "project mode")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <project-id> <name>",
		Short: "Rename a project you own",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, api *workbench.API) (any, error) {
				return api.RenameProject(ctx, args[0], args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <project-id>",
		Short: "Fork the project for its members and move it to trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, api *workbench.API) (any, error) {
				return api.DeleteProject(ctx, args[0])
			})
		},
	})

	return cmd
}
