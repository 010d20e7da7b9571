package chatclient

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"motorlist-chat/internal/observability"

	"github.com/google/uuid"
)

// State is the lifecycle position of a Session
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateLocked:
		return "locked"
	default:
		return "idle"
	}
}

// errLocked short-circuits scheduled fetches once the room is locked
var errLocked = errors.New("chat room locked")

// SessionOptions configures a Session
type SessionOptions struct {
	PollInterval time.Duration
	// MaxLength caps message length in runes; zero disables the local check
	MaxLength int
	// OnChange receives a snapshot after every visible change
	OnChange func(Snapshot)
}

// LoadOptions controls LoadInitial
type LoadOptions struct {
	Reset bool
}

// Snapshot is a consistent copy of the session's observable state
type Snapshot struct {
	Messages   []Message
	State      State
	Error      string
	Cursor     string
	ViewerID   int64
	ViewerRole string
	Sending    bool
}

// Session keeps a deduplicated, ordered view of one room in sync with the
// server. Callers keep a single Session per room.
type Session struct {
	room RoomAPI
	opts SessionOptions

	mu          sync.Mutex
	state       State
	initialLoad bool
	sending     bool
	active      bool
	messages    *MessageSet
	mine        map[string]bool
	viewerID    int64
	viewerRole  string
	cursor      string
	errMsg      string
	pollErr     bool
	poller      *Poller
}

func NewSession(room RoomAPI, opts SessionOptions) *Session {
	return &Session{
		room:     room,
		opts:     opts,
		active:   true,
		messages: NewMessageSet(),
		mine:     make(map[string]bool),
	}
}

// LoadInitial fetches the full history and replaces the local view.
// Failures are reflected in the snapshot and also returned.
func (s *Session) LoadInitial(ctx context.Context, opts LoadOptions) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.initialLoad {
		s.mu.Unlock()
		return nil
	}
	if opts.Reset {
		s.resetLocked()
	}
	if s.state == StateLocked {
		s.mu.Unlock()
		return nil
	}
	s.initialLoad = true
	s.state = StateLoading
	s.mu.Unlock()
	s.notify()

	page, err := s.room.Fetch(ctx, "")

	s.mu.Lock()
	s.initialLoad = false
	if !s.active {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.failLoadLocked(ctx, err)
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.messages.Merge(page.Data, true)
	s.applyMetaLocked(page.Meta, true)
	s.attributeLocked()
	s.errMsg = ""
	s.pollErr = false
	s.state = StateReady
	if s.poller != nil {
		s.poller.SetSince(s.cursor)
	}
	s.mu.Unlock()

	observability.FromContext(ctx).Debug("chat history loaded",
		slog.Int("messages", len(page.Data)),
		slog.String("cursor", page.Meta.ServerTimestamp),
	)
	s.notify()
	return nil
}

// ApplyIncoming merges items by id; replace clears the view first.
// Attribution is recomputed for every message.
func (s *Session) ApplyIncoming(items []Message, replace bool) {
	s.mu.Lock()
	if !s.active || s.state == StateLocked {
		s.mu.Unlock()
		return
	}
	s.mergeLocked(items, replace)
	s.mu.Unlock()
	s.notify()
}

// SendMessage posts body and merges the stored message once confirmed.
// It does nothing while another send is in flight or the room is locked.
func (s *Session) SendMessage(ctx context.Context, body string) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.sending || s.state == StateLocked {
		s.mu.Unlock()
		return nil
	}

	body = strings.TrimSpace(body)
	var invalid *Error
	switch {
	case body == "":
		invalid = ErrEmptyMessage
	case s.opts.MaxLength > 0 && utf8.RuneCountInString(body) > s.opts.MaxLength:
		invalid = tooLongError(s.opts.MaxLength)
	}
	if invalid != nil {
		s.errMsg = invalid.Message
		s.pollErr = false
		s.mu.Unlock()
		s.notify()
		return invalid
	}

	s.sending = true
	s.mu.Unlock()
	s.notify()

	result, err := s.room.Send(ctx, SendInput{Body: body, MessageKey: uuid.NewString()})

	s.mu.Lock()
	s.sending = false
	if !s.active {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.failSendLocked(ctx, err)
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.mine[result.Message.ID] = true
	// the send meta must not move the cursor past other users' messages
	s.applyMetaLocked(result.Meta, false)
	s.mergeLocked([]Message{result.Message}, false)
	s.errMsg = ""
	s.pollErr = false
	s.mu.Unlock()

	s.notify()
	return nil
}

// SetupPolling starts the room's single poller, resuming from the last
// known cursor. It does nothing once the room is locked or closed.
func (s *Session) SetupPolling(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.state == StateLocked {
		return
	}
	if s.poller == nil {
		s.poller = NewPoller(s.pollFetch, s.onPollData, PollerOptions{
			Interval: s.opts.PollInterval,
			OnError:  s.onPollError,
			OnDrop:   s.onPollDrop,
		})
	}
	s.poller.SetSince(s.cursor)
	s.poller.Start(ctx)
}

// Close stops polling; responses that arrive afterwards are discarded
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
	if s.poller != nil {
		s.poller.Stop()
	}
}

// Snapshot returns a copy of the observable state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Messages:   s.messages.Items(),
		State:      s.state,
		Error:      s.errMsg,
		Cursor:     s.cursor,
		ViewerID:   s.viewerID,
		ViewerRole: s.viewerRole,
		Sending:    s.sending,
	}
}

func (s *Session) notify() {
	if s.opts.OnChange == nil {
		return
	}
	s.opts.OnChange(s.Snapshot())
}

func (s *Session) pollFetch(ctx context.Context, since string) (*Page, error) {
	s.mu.Lock()
	if !s.active || s.state == StateLocked {
		s.mu.Unlock()
		return nil, errLocked
	}
	if s.state == StateReady {
		s.state = StateLoading
	}
	s.mu.Unlock()

	return s.room.Fetch(ctx, since)
}

func (s *Session) onPollData(page *Page) {
	s.mu.Lock()
	if !s.active || s.state == StateLocked {
		s.mu.Unlock()
		return
	}
	s.messages.Merge(page.Data, false)
	s.applyMetaLocked(page.Meta, true)
	s.attributeLocked()
	if s.pollErr {
		s.errMsg = ""
		s.pollErr = false
	}
	s.state = StateReady
	s.mu.Unlock()

	s.notify()
}

// onPollDrop settles a room left loading by a poll whose result was discarded
func (s *Session) onPollDrop() {
	s.mu.Lock()
	if s.state != StateLoading || s.initialLoad {
		s.mu.Unlock()
		return
	}
	s.state = StateReady
	active := s.active
	s.mu.Unlock()

	if active {
		s.notify()
	}
}

func (s *Session) onPollError(err error) {
	if errors.Is(err, errLocked) {
		return
	}

	s.mu.Lock()
	if !s.active || s.state == StateLocked {
		s.mu.Unlock()
		return
	}
	switch KindOf(err) {
	case KindForbidden:
		s.lockLocked(msgLoadForbidden)
	case KindNotFound:
		s.lockLocked(msgNotFound)
	case KindSessionExpired:
		s.errMsg = msgSessionExpired
		s.pollErr = true
		s.state = StateReady
	default:
		s.errMsg = msgLoadFailed
		s.pollErr = true
		s.state = StateReady
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Session) failLoadLocked(ctx context.Context, err error) {
	log := observability.FromContext(ctx)

	switch KindOf(err) {
	case KindForbidden:
		s.lockLocked(msgLoadForbidden)
	case KindNotFound:
		s.lockLocked(msgNotFound)
	case KindSessionExpired:
		s.errMsg = msgSessionExpired
		s.state = StateIdle
	case KindValidation:
		s.errMsg = serverMessage(err, msgLoadFailed)
		s.state = StateIdle
	default:
		if ctx.Err() == nil {
			log.Warn("chat history load failed", slog.String("error", err.Error()))
		}
		s.errMsg = msgLoadFailed
		s.state = StateIdle
	}
	s.pollErr = false
}

func (s *Session) failSendLocked(ctx context.Context, err error) {
	switch KindOf(err) {
	case KindForbidden:
		s.lockLocked(msgSendForbidden)
	case KindNotFound:
		s.lockLocked(msgNotFound)
	case KindSessionExpired:
		s.errMsg = msgSessionExpired
	case KindValidation:
		s.errMsg = serverMessage(err, msgSendFailed)
	default:
		if ctx.Err() == nil {
			observability.FromContext(ctx).Warn("chat message send failed", slog.String("error", err.Error()))
		}
		s.errMsg = msgSendFailed
	}
	s.pollErr = false
}

func (s *Session) lockLocked(msg string) {
	s.state = StateLocked
	s.errMsg = msg
	s.pollErr = false
	if s.poller != nil {
		s.poller.Stop()
	}
}

func (s *Session) resetLocked() {
	s.messages.Reset()
	s.cursor = ""
	s.errMsg = ""
	s.pollErr = false
	s.state = StateIdle
	if s.poller != nil {
		s.poller.Stop()
		s.poller.Reset()
	}
}

func (s *Session) mergeLocked(items []Message, replace bool) {
	s.messages.Merge(items, replace)
	s.attributeLocked()
}

// applyMetaLocked records the viewer. The cursor only moves forward and
// only when advance is set.
func (s *Session) applyMetaLocked(meta Meta, advance bool) {
	s.viewerID = meta.CurrentUserID
	if meta.ViewerRole != "" {
		s.viewerRole = meta.ViewerRole
	}
	if advance && laterCursor(meta.ServerTimestamp, s.cursor) {
		s.cursor = meta.ServerTimestamp
	}
}

// attributeLocked re-derives IsCurrentUser from the latest viewer id and
// the messages this viewer is known to have written
func (s *Session) attributeLocked() {
	viewerID := s.viewerID
	s.messages.Update(func(m *Message) {
		m.IsCurrentUser = s.mine[m.ID] || (viewerID > 0 && m.UserID == viewerID)
	})
}

// serverMessage prefers the server's user-facing text for err
func serverMessage(err error, fallback string) string {
	var chatErr *Error
	if errors.As(err, &chatErr) && chatErr.Message != "" {
		return chatErr.Message
	}
	return fallback
}
