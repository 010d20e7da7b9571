package cli

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"motorlist-chat/internal/chatclient"

	"github.com/spf13/cobra"
)

func newWatchCommand(g *globals) *cobra.Command {
	var (
		room     roomFlags
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a conversation and print new messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			selected, err := room.resolve(ctx, g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var (
				mu      sync.Mutex
				printed = make(map[string]bool)
				lastErr string
				locked  = make(chan string, 1)
			)
			session := chatclient.NewSession(selected.api, chatclient.SessionOptions{
				PollInterval: interval,
				OnChange: func(snap chatclient.Snapshot) {
					mu.Lock()
					defer mu.Unlock()

					for _, m := range snap.Messages {
						if !printed[m.ID] {
							printed[m.ID] = true
							printMessage(out, m)
						}
					}
					if snap.Error != "" && snap.Error != lastErr {
						fmt.Fprintln(cmd.ErrOrStderr(), snap.Error)
					}
					lastErr = snap.Error
					if snap.State == chatclient.StateLocked {
						select {
						case locked <- snap.Error:
						default:
						}
					}
				},
			})
			defer session.Close()

			fmt.Fprintf(out, "Conversación %s\n", selected.label)
			err = session.LoadInitial(ctx, chatclient.LoadOptions{})
			if snap := session.Snapshot(); err != nil && snap.State == chatclient.StateLocked {
				return errors.New(snap.Error)
			}
			session.SetupPolling(ctx)

			select {
			case <-ctx.Done():
				return nil
			case msg := <-locked:
				return errors.New(msg)
			}
		},
	}

	room.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", chatclient.DefaultPollInterval, "polling interval")
	return cmd
}
