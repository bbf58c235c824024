package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	AppName      = "paper-trade"
	lockFileName = "instance.lock"
)

// ErrAlreadyRunning means another engine holds the data directory.
var ErrAlreadyRunning = errors.New("another paper-trade instance owns this data directory")

// workspaceDir is ./_workspace when it exists (portable mode), else the per-user data dir.
func workspaceDir() string {
	const portable = "_workspace"
	if _, err := os.Stat(portable); err == nil {
		return portable
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	if runtime.GOOS == "windows" {
		// %AppData%
		if dir, err := os.UserConfigDir(); err == nil {
			return filepath.Join(dir, AppName)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return portable
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", AppName)
	}
	return filepath.Join(home, ".local", "share", AppName)
}

// EnsureDir creates path and its parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// DataDir returns where the simulation database lives: the configured
// storage.data_dir when set, otherwise <workspace>/data.
func DataDir(cfg *Config) string {
	if cfg != nil && cfg.Storage.DataDir != "" {
		return cfg.Storage.DataDir
	}
	return filepath.Join(workspaceDir(), "data")
}

// InstanceLock records which engine process owns a data directory. Two engines
// writing the same snapshot keys would overwrite each other's ledger.
type InstanceLock struct {
	PID       int       `json:"pid"`
	Host      string    `json:"host"`
	StartedAt time.Time `json:"started_at"`

	path string
}

// AcquireLock claims dataDir. An existing lock file is reported with its holder;
// a lock left behind by a crash must be removed by hand.
func AcquireLock(dataDir string) (*InstanceLock, error) {
	path := filepath.Join(dataDir, lockFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, fs.ErrExist) {
		if holder, rerr := ReadLock(dataDir); rerr == nil {
			return nil, fmt.Errorf("%w: pid %d on %s since %s (%s)",
				ErrAlreadyRunning, holder.PID, holder.Host, holder.StartedAt.Format(time.RFC3339), path)
		}
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	host, _ := os.Hostname()
	lock := &InstanceLock{PID: os.Getpid(), Host: host, StartedAt: time.Now().UTC(), path: path}
	if err := jsoniter.NewEncoder(f).Encode(lock); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return lock, nil
}

// ReadLock returns the current holder of dataDir.
func ReadLock(dataDir string) (*InstanceLock, error) {
	path := filepath.Join(dataDir, lockFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lock InstanceLock
	if err := jsoniter.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("corrupt lock %s: %w", path, err)
	}
	lock.path = path
	return &lock, nil
}

// Release removes the lock file. Releasing twice is harmless.
func (l *InstanceLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ResolveConfigPath returns configs/config.yaml, or the copy under the OS
// config dir when only that one exists. The local path is the fallback so a
// missing file surfaces from LoadConfig.
func ResolveConfigPath() string {
	local := filepath.Join("configs", "config.yaml")
	candidates := []string{local}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, AppName, "config.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return local
}
