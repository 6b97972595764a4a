package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"learnpath-quiz/internal/domain"

	"gopkg.in/yaml.v3"
)

// ErrNoUser is returned when no one is logged in.
var ErrNoUser = errors.New("no user logged in")

type file struct {
	User  *domain.User `yaml:"user,omitempty"`
	Token string       `yaml:"token,omitempty"`
}

// Context holds the current user for the lifetime of the application.
// It is loaded from and saved to a YAML file explicitly.
type Context struct {
	path string

	mu    sync.RWMutex
	user  *domain.User
	token string
}

func NewContext(path string) *Context {
	return &Context{path: path}
}

// DefaultPath is ~/.learnpath/profile.yaml, or a relative fallback.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".learnpath-profile.yaml"
	}
	return filepath.Join(home, ".learnpath", "profile.yaml")
}

// Load reads the profile file. A missing file leaves the context empty.
func (c *Context) Load() error {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse profile %s: %w", c.path, err)
	}
	c.mu.Lock()
	c.user, c.token = f.User, f.Token
	c.mu.Unlock()
	return nil
}

// Save writes the current state to the profile file.
func (c *Context) Save() error {
	c.mu.RLock()
	f := file{User: c.user, Token: c.token}
	c.mu.RUnlock()

	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// Login sets the user and persists it.
func (c *Context) Login(user domain.User, token string) error {
	if user.Role == "" {
		user.Role = domain.RoleStudent
	}
	c.mu.Lock()
	c.user, c.token = &user, token
	c.mu.Unlock()
	return c.Save()
}

// Logout clears the user and removes the profile file.
func (c *Context) Logout() error {
	c.mu.Lock()
	c.user, c.token = nil, ""
	c.mu.Unlock()
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// User returns the current user.
func (c *Context) User() (domain.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return domain.User{}, ErrNoUser
	}
	return *c.user, nil
}

// UserID returns the current user's ID or an empty string.
func (c *Context) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return ""
	}
	return c.user.ID
}

// Token returns the bearer token, if any.
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}
