package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
)

// DefaultReloadDelay debounces bursts of write events into one reload.
const DefaultReloadDelay = 500 * time.Millisecond

// FileConfig configures a FileDirectory.
type FileConfig struct {
	Path        string
	Hasher      password.Hasher
	ReloadDelay time.Duration
	Logger      *zerolog.Logger
	// OnReload, when set, is called after every reload attempt.
	OnReload func(users int, err error)
}

// fileFormat is the on-disk layout: {"users": [{"id":..., "password_hash":..., "roles": [...]}]}.
type fileFormat struct {
	Users []User `json:"users"`
}

// FileDirectory serves users from a JSON file and reloads it when the file
// changes. A file that fails to parse leaves the previous table in place.
type FileDirectory struct {
	mem    *MemoryDirectory
	cfg    FileConfig
	log    zerolog.Logger
	w      *fsnotify.Watcher
	mu     sync.Mutex
	timer  *time.Timer
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

var _ goSession.IdentityResolver = (*FileDirectory)(nil)

// OpenFileDirectory loads cfg.Path and starts watching its directory.
func OpenFileDirectory(cfg FileConfig) (*FileDirectory, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("credentials: file path is required")
	}
	if cfg.ReloadDelay <= 0 {
		cfg.ReloadDelay = DefaultReloadDelay
	}
	mem, err := NewMemoryDirectory(cfg.Hasher)
	if err != nil {
		return nil, err
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	d := &FileDirectory{
		mem:  mem,
		cfg:  cfg,
		log:  log.With().Str("component", "credentials").Str("path", cfg.Path).Logger(),
		done: make(chan struct{}),
	}
	users, err := loadUsers(cfg.Path)
	if err != nil {
		return nil, err
	}
	mem.replace(users)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("credentials: create watcher: %w", err)
	}
	// Watch the directory so editors that rename over the file are seen.
	if err := w.Add(filepath.Dir(cfg.Path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("credentials: watch %s: %w", cfg.Path, err)
	}
	d.w = w
	d.wg.Add(1)
	go d.watch()
	return d, nil
}

func (d *FileDirectory) ResolveIdentity(ctx context.Context, creds goSession.Credentials) (goSession.Principal, error) {
	return d.mem.ResolveIdentity(ctx, creds)
}

func (d *FileDirectory) LookupIdentity(ctx context.Context, identity string) (goSession.Principal, error) {
	return d.mem.LookupIdentity(ctx, identity)
}

// Len reports the number of users currently loaded.
func (d *FileDirectory) Len() int { return d.mem.Len() }

// Reload reads the file now. On error the current table is kept.
func (d *FileDirectory) Reload() error {
	users, err := loadUsers(d.cfg.Path)
	if err != nil {
		d.log.Error().Err(err).Msg("user file reload failed, keeping previous table")
	} else {
		d.mem.replace(users)
		d.log.Info().Int("users", len(users)).Msg("user file reloaded")
	}
	if d.cfg.OnReload != nil {
		d.cfg.OnReload(d.mem.Len(), err)
	}
	return err
}

// Close stops the watcher. It is safe to call more than once.
func (d *FileDirectory) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.done)
	d.mu.Unlock()

	err := d.w.Close()
	d.wg.Wait()
	return err
}

func (d *FileDirectory) watch() {
	defer d.wg.Done()
	target := filepath.Clean(d.cfg.Path)
	for {
		select {
		case <-d.done:
			return
		case event, ok := <-d.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				d.scheduleReload()
			}
		case err, ok := <-d.w.Errors:
			if !ok {
				return
			}
			d.log.Warn().Err(err).Msg("user file watcher error")
		}
	}
}

func (d *FileDirectory) scheduleReload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.cfg.ReloadDelay, func() {
		select {
		case <-d.done:
			return
		default:
		}
		_ = d.Reload()
	})
}

func loadUsers(path string) (map[string]User, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("credentials: read %s: %w", path, err)
	}
	var f fileFormat
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("credentials: parse %s: %w", path, err)
	}
	users := make(map[string]User, len(f.Users))
	for _, u := range f.Users {
		if err := u.validate(); err != nil {
			return nil, err
		}
		if _, dup := users[u.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidUser, u.ID)
		}
		users[u.ID] = u
	}
	return users, nil
}

// WriteFile writes users in the format OpenFileDirectory reads.
func WriteFile(path string, users []User) error {
	raw, err := json.MarshalIndent(fileFormat{Users: users}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}
