// Package cli implements chatctl, a terminal client for marketplace chats
// built on the same sync protocol as the web widget.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"motorlist-chat/internal/chatclient"

	"github.com/spf13/cobra"
)

// globals holds the persistent flags shared by every subcommand
type globals struct {
	apiURL      string
	session     string
	cookieName  string
	nonce       string
	stateDir    string
	strictGuest bool
	timeout     time.Duration
}

// NewRootCommand builds the chatctl command tree writing to out
func NewRootCommand(out io.Writer) *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "chatctl",
		Short: "chatctl - Motorlist chat from the terminal",
		Long: `chatctl talks to the Motorlist chat API the same way the listing widget does.
Use it to follow a conversation, reply to buyers or check a seller inbox.

Without --session you act as a guest; the guest id lives in --state-dir.`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&g.apiURL, "api", envOr("ML_API_URL", "http://localhost:8080/api/v1"), "chat API base URL")
	flags.StringVar(&g.session, "session", os.Getenv("ML_SESSION"), "session cookie value of a logged-in user")
	flags.StringVar(&g.cookieName, "cookie-name", "ml_session", "session cookie name")
	flags.StringVar(&g.nonce, "nonce", os.Getenv("ML_NONCE"), "CSRF nonce sent with writes")
	flags.StringVar(&g.stateDir, "state-dir", defaultStateDir(), "directory holding the guest identity")
	flags.BoolVar(&g.strictGuest, "strict-guest", false, "ask the server for a signed guest id")
	flags.DurationVar(&g.timeout, "timeout", 15*time.Second, "per request timeout")

	root.AddCommand(
		newWatchCommand(g),
		newSendCommand(g),
		newRoomsCommand(g),
		newGuestCommand(g),
	)
	return root
}

func (g *globals) transport(errOut io.Writer) (*chatclient.Transport, error) {
	opts := []chatclient.TransportOption{
		chatclient.WithTimeout(g.timeout),
		chatclient.WithNonce(g.nonce),
		chatclient.WithOnSessionExpired(func() {
			if store, err := g.store(); err == nil {
				chatclient.ClearIdentity(store)
			}
			fmt.Fprintln(errOut, "Tu sesión ha expirado. Inicia sesión de nuevo.")
		}),
	}
	if g.session != "" {
		opts = append(opts, chatclient.WithSessionCookie(g.cookieName, g.session))
	}
	return chatclient.NewTransport(g.apiURL, opts...)
}

// store falls back to disabled storage so guests still get an id
func (g *globals) store() (chatclient.GuestStore, error) {
	if g.stateDir == "" {
		return chatclient.DisabledStore{}, nil
	}
	return chatclient.NewFileStore(g.stateDir)
}

func (g *globals) loggedIn() bool {
	return g.session != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "motorlist-chat")
	}
	return ""
}
