package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRoomsCommand(g *globals) *cobra.Command {
	var productID int64

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List the conversations of one of your listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !g.loggedIn() {
				return errors.New("inicia sesión para ver tus conversaciones (--session)")
			}

			tr, err := g.transport(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			rooms, err := tr.ListProductRooms(cmd.Context(), productID)
			if err != nil {
				return err
			}
			if len(rooms) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Sin conversaciones todavía.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROOM\tVIEWER\tMENSAJES\tÚLTIMO")
			for _, r := range rooms {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.RoomKey, r.ViewerID, r.MessageCount, r.LastMessageAt)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Int64VarP(&productID, "product", "p", 0, "listing id")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}
