package cli

import (
	"fmt"

	"motorlist-chat/internal/chatclient"

	"github.com/spf13/cobra"
)

func newGuestCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Inspect or change the local guest identity",
	}

	idCmd := &cobra.Command{
		Use:   "id",
		Short: "Print the guest id, creating it when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.store()
			if err != nil {
				return err
			}
			tr, err := g.transport(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			id, err := guestID(cmd.Context(), g, store, tr)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	nameCmd := &cobra.Command{
		Use:   "name [nombre]",
		Short: "Print or set the guest display name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.store()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return chatclient.SetGuestName(store, args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), chatclient.GuestName(store))
			return nil
		},
	}

	forgetCmd := &cobra.Command{
		Use:   "forget",
		Short: "Forget the guest display name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.store()
			if err != nil {
				return err
			}
			chatclient.ClearIdentity(store)
			return nil
		},
	}

	cmd.AddCommand(idCmd, nameCmd, forgetCmd)
	return cmd
}
