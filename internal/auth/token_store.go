package auth

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// tokenFileName is the fixed well-known key the durable token lives under.
const tokenFileName = "token"

// TokenStore persists the single auth-token string that survives a restart.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileTokenStore keeps the token in a file inside the state directory.
type FileTokenStore struct {
	path string
}

func NewFileTokenStore(dir string) (*FileTokenStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileTokenStore{path: filepath.Join(dir, tokenFileName)}, nil
}

func (s *FileTokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileTokenStore) Save(token string) error {
	return os.WriteFile(s.path, []byte(token), 0o600)
}

func (s *FileTokenStore) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// MemoryTokenStore holds the token in memory only; used in tests and in
// ephemeral sessions that must not touch the disk.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func (s *MemoryTokenStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// TokenCache fronts a TokenStore with the current in-memory token. It is
// the gateway's token source; all access goes through the mutex because
// callers are not single-threaded.
type TokenCache struct {
	mu    sync.Mutex
	store TokenStore
	token string
}

func NewTokenCache(store TokenStore) (*TokenCache, error) {
	token, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &TokenCache{store: store, token: token}, nil
}

func (c *TokenCache) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *TokenCache) Set(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Save(token); err != nil {
		return err
	}
	c.token = token
	return nil
}

func (c *TokenCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Clear(); err != nil {
		return err
	}
	c.token = ""
	return nil
}
