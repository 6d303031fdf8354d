package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Keys the session is persisted under.
const (
	TokenKey = "auth_token"
	UserKey  = "user"
)

// Session is the signed-in state: a bearer token and the user it belongs to.
type Session struct {
	Token string
	User  *User
}

// Store persists a Session. Save and Clear always write both keys together.
type Store interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mutex  sync.RWMutex
	values map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]json.RawMessage)}
}

func (m *MemoryStore) Load() (Session, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return decodeSession(m.values)
}

func (m *MemoryStore) Save(s Session) error {
	values, err := encodeSession(s)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.values = values
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.values = make(map[string]json.RawMessage)
	return nil
}

// FileStore keeps the session in a JSON file readable only by its owner.
// A missing file is an empty session.
type FileStore struct {
	mutex sync.Mutex
	path  string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() (Session, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("client: read session: %w", err)
	}

	values := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &values); err != nil {
		return Session{}, fmt.Errorf("client: decode session: %w", err)
	}
	return decodeSession(values)
}

func (f *FileStore) Save(s Session) error {
	values, err := encodeSession(s)
	if err != nil {
		return err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.write(values)
}

func (f *FileStore) Clear() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("client: clear session: %w", err)
	}
	return nil
}

func (f *FileStore) write(values map[string]json.RawMessage) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("client: encode session: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("client: write session: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("client: write session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("client: write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("client: write session: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("client: write session: %w", err)
	}

	return os.Rename(tmp.Name(), f.path)
}

func encodeSession(s Session) (map[string]json.RawMessage, error) {
	token, err := json.Marshal(s.Token)
	if err != nil {
		return nil, fmt.Errorf("client: encode token: %w", err)
	}
	user, err := json.Marshal(s.User)
	if err != nil {
		return nil, fmt.Errorf("client: encode user: %w", err)
	}

	return map[string]json.RawMessage{
		TokenKey: token,
		UserKey:  user,
	}, nil
}

func decodeSession(values map[string]json.RawMessage) (Session, error) {
	var s Session

	if raw, ok := values[TokenKey]; ok {
		if err := json.Unmarshal(raw, &s.Token); err != nil {
			return Session{}, fmt.Errorf("client: decode %s: %w", TokenKey, err)
		}
	}
	if raw, ok := values[UserKey]; ok {
		if err := json.Unmarshal(raw, &s.User); err != nil {
			return Session{}, fmt.Errorf("client: decode %s: %w", UserKey, err)
		}
	}

	return s, nil
}
