package cli

import (
	"errors"
	"strings"

	"motorlist-chat/internal/chatclient"

	"github.com/spf13/cobra"
)

func newSendCommand(g *globals) *cobra.Command {
	var room roomFlags

	cmd := &cobra.Command{
		Use:   "send <mensaje>",
		Short: "Send one message to a conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			selected, err := room.resolve(ctx, g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			session := chatclient.NewSession(selected.api, chatclient.SessionOptions{MaxLength: selected.maxLength})
			defer session.Close()

			if err := session.SendMessage(ctx, strings.Join(args, " ")); err != nil {
				if msg := session.Snapshot().Error; msg != "" {
					return errors.New(msg)
				}
				return err
			}

			for _, m := range session.Snapshot().Messages {
				printMessage(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}

	room.register(cmd)
	return cmd
}
