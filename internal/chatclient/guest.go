package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Keys persisted for anonymous participants
const (
	GuestIDKey   = "ml_guest_id"
	GuestNameKey = "ml_guest_name"
)

// ErrStorageDisabled is returned by stores that cannot persist anything
var ErrStorageDisabled = errors.New("guest storage disabled")

// GuestStore persists small string values across runs.
// Get returns "" without error for a missing key.
type GuestStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStore keeps values for the lifetime of the process
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// DisabledStore models a context where storage is unavailable
type DisabledStore struct{}

func (DisabledStore) Get(string) (string, error) { return "", ErrStorageDisabled }
func (DisabledStore) Set(string, string) error   { return ErrStorageDisabled }
func (DisabledStore) Delete(string) error        { return ErrStorageDisabled }

const guestStateFile = "guest.json"

// FileStore keeps values as a JSON object in a state directory
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates the state directory when needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, guestStateFile)}, nil
}

func (s *FileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

func (s *FileStore) load() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read guest state: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode guest state: %w", err)
	}
	return values, nil
}

// save writes through a temp file so a crash never leaves half a file
func (s *FileStore) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode guest state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), guestStateFile+".*")
	if err != nil {
		return fmt.Errorf("failed to write guest state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write guest state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write guest state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace guest state: %w", err)
	}
	return nil
}

// NewGuestID returns a random device id, "g" followed by 32 hex digits
func NewGuestID() string {
	return "g" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GetOrCreateGuestID returns the persisted device id, creating it on first
// use. Storage failures never surface: the caller gets a fresh id instead.
func GetOrCreateGuestID(store GuestStore) string {
	if store == nil {
		return NewGuestID()
	}
	if id, err := store.Get(GuestIDKey); err == nil && id != "" {
		return id
	}

	id := NewGuestID()
	_ = store.Set(GuestIDKey, id)
	return id
}

// GetOrIssueGuestID is the strict-mode variant: the id comes signed from the
// server and is only reused when it still carries a signature.
func GetOrIssueGuestID(ctx context.Context, store GuestStore, t *Transport) (string, error) {
	if store != nil {
		if id, err := store.Get(GuestIDKey); err == nil && strings.Contains(id, ".") {
			return id, nil
		}
	}

	id, err := t.IssueGuestID(ctx)
	if err != nil {
		return "", err
	}
	if store != nil {
		_ = store.Set(GuestIDKey, id)
	}
	return id, nil
}

// GuestName returns the remembered display name, "" when unknown
func GuestName(store GuestStore) string {
	if store == nil {
		return ""
	}
	name, err := store.Get(GuestNameKey)
	if err != nil {
		return ""
	}
	return name
}

// SetGuestName remembers the display name; an empty name forgets it
func SetGuestName(store GuestStore, name string) error {
	if store == nil {
		return ErrStorageDisabled
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Delete(GuestNameKey)
	}
	return store.Set(GuestNameKey, name)
}

// ClearIdentity forgets the display name on logout. The device id stays so
// the guest keeps finding their rooms.
func ClearIdentity(store GuestStore) {
	if store != nil {
		_ = store.Delete(GuestNameKey)
	}
}
