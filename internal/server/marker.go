package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var ErrServerRunning = errors.New("server already running")

// Sentinel file names inside the server directory.
const (
	ServerMarker = "server"
	ReloadMarker = "server_marked_for_reload"
)

// Marker is an empty sentinel file used to talk to a server process.
// Markers are advisory, nothing guards against two processes racing on them.
type Marker struct {
	path string
}

func NewMarker(dir, name string) Marker {
	return Marker{path: filepath.Join(dir, name)}
}

func (m Marker) Path() string {
	return m.path
}

func (m Marker) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Create creates or truncates the marker.
func (m Marker) Create() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("creating marker directory: %w", err)
	}
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating marker: %w", err)
	}
	return f.Close()
}

// Acquire creates the marker exclusively. An existing marker which was not
// touched for staleAfter is considered left behind by a dead process and is
// replaced. A zero staleAfter never replaces a marker.
func (m Marker) Acquire(staleAfter time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("creating marker directory: %w", err)
	}
	for range 2 {
		f, err := os.OpenFile(m.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f.Close()
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("acquiring marker: %w", err)
		}
		if !m.stale(staleAfter) {
			return fmt.Errorf("%w: %s", ErrServerRunning, m.path)
		}
		if err := m.Release(); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s", ErrServerRunning, m.path)
}

func (m Marker) stale(staleAfter time.Duration) bool {
	if staleAfter <= 0 {
		return false
	}
	info, err := os.Stat(m.path)
	if err != nil {
		// removed meanwhile
		return errors.Is(err, os.ErrNotExist)
	}
	return time.Since(info.ModTime()) > staleAfter
}

// Touch updates the modification time, so the marker is not stale.
func (m Marker) Touch() error {
	now := time.Now()
	if err := os.Chtimes(m.path, now, now); err != nil {
		return fmt.Errorf("touching marker: %w", err)
	}
	return nil
}

// Release removes the marker. A missing marker is not an error.
func (m Marker) Release() error {
	err := os.Remove(m.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing marker: %w", err)
	}
	return nil
}

// RequestReload asks the server running in dir to reload the definitions.
func RequestReload(dir string) error {
	return NewMarker(dir, ReloadMarker).Create()
}

// RequestStop asks the server running in dir to stop.
func RequestStop(dir string) error {
	return NewMarker(dir, ServerMarker).Release()
}

// Running reports if a server runs in dir.
func Running(dir string) bool {
	return NewMarker(dir, ServerMarker).Exists()
}
