package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"motorlist-chat/internal/chatclient"
	"motorlist-chat/internal/domain"

	"github.com/spf13/cobra"
)

// roomFlags select the conversation a command works on
type roomFlags struct {
	productID  int64
	roomKey    string
	purchaseID string
	name       string
}

func (f *roomFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64VarP(&f.productID, "product", "p", 0, "listing id of a product chat")
	cmd.Flags().StringVarP(&f.roomKey, "room-key", "k", "", "product room key, e.g. pub-42-viewer-7")
	cmd.Flags().StringVar(&f.purchaseID, "purchase", "", "purchase id of a purchase chat")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "display name used as a guest")
	cmd.MarkFlagsMutuallyExclusive("product", "purchase")
}

// selectedRoom is a resolved conversation plus what is needed to talk to it
type selectedRoom struct {
	api       chatclient.RoomAPI
	label     string
	maxLength int
}

func (f *roomFlags) resolve(ctx context.Context, g *globals, errOut io.Writer) (*selectedRoom, error) {
	tr, err := g.transport(errOut)
	if err != nil {
		return nil, err
	}

	if f.purchaseID != "" {
		return &selectedRoom{
			api:       tr.PurchaseRoom(f.purchaseID),
			label:     "compra " + f.purchaseID,
			maxLength: domain.PurchaseMessageMaxLength,
		}, nil
	}
	if f.productID <= 0 {
		return nil, errors.New("indica --product o --purchase")
	}

	key, name := f.roomKey, strings.TrimSpace(f.name)
	if !g.loggedIn() {
		store, err := g.store()
		if err != nil {
			fmt.Fprintf(errOut, "no se pudo abrir el estado local: %v\n", err)
			store = chatclient.DisabledStore{}
		}

		if key == "" {
			guestID, err := guestID(ctx, g, store, tr)
			if err != nil {
				return nil, err
			}
			key = domain.NewProductRoomKey(f.productID, guestID).String()
		}
		if name != "" {
			_ = chatclient.SetGuestName(store, name)
		} else {
			name = chatclient.GuestName(store)
		}
	}

	label := fmt.Sprintf("producto %d", f.productID)
	if key != "" {
		label += " (" + key + ")"
	}
	return &selectedRoom{api: tr.ProductRoom(f.productID, key, name), label: label}, nil
}

func guestID(ctx context.Context, g *globals, store chatclient.GuestStore, tr *chatclient.Transport) (string, error) {
	if g.strictGuest {
		return chatclient.GetOrIssueGuestID(ctx, store, tr)
	}
	return chatclient.GetOrCreateGuestID(store), nil
}

func printMessage(w io.Writer, m chatclient.Message) {
	who := m.DisplayName
	if m.IsCurrentUser {
		who = "tú"
	}
	fmt.Fprintf(w, "[%s] %s (%s): %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"), who, m.SenderRole, m.Body)
}
