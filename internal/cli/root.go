package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rpggio/marginalia/internal/auth"
	"github.com/rpggio/marginalia/internal/workbench"
	"github.com/spf13/cobra"
)

// Opener builds the workbench a command runs against. The returned close
// func releases it.
type Opener func(ctx context.Context) (*workbench.API, func() error, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	User string
	Name string
	open Opener
}

// NewRootCommand creates the root command for the marginalia CLI.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:           "marginctl",
		Short:         "Administer marginalia projects",
		Long:          "Manage projects, trash and invites of a marginalia store as a given user.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.User == "" {
				return fmt.Errorf("--user is required")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.User, "user", "u", "", "user id to act as")
	cmd.PersistentFlags().StringVar(&opts.Name, "name", "", "display name of the user")

	cmd.AddCommand(NewProjectsCommand(opts))
	cmd.AddCommand(NewTrashCommand(opts))
	cmd.AddCommand(NewInviteCommand(opts))

	return cmd
}

// run opens the workbench as the flagged user and calls fn.
func (o *RootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, api *workbench.API) (any, error)) error {
	ctx := auth.WithIdentity(cmd.Context(), auth.Identity{
		UserID:   o.User,
		Name:     o.Name,
		Initials: auth.InitialsFor(o.Name),
	})
	api, closeFn, err := o.open(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeFn()

	out, err := fn(ctx, api)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
