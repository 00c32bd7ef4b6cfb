// Package overlay draws an emoji for the dominant expression over the
// detected face.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register decoders for emoji assets
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/teslashibe/go-tango/internal/log"
	"github.com/teslashibe/go-tango/pkg/expression"
)

// ErrUnknownLabel is returned for labels with no emoji.
var ErrUnknownLabel = errors.New("overlay: unknown label")

// AssetLoadError means the emoji for a label could not be loaded.
// The frame is drawn without overlay.
type AssetLoadError struct {
	Label expression.Label
	Path  string
	Err   error
}

// Error implements the error interface.
func (e *AssetLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("overlay [%s]: %v", e.Label, e.Err)
	}
	return fmt.Sprintf("overlay [%s]: load %s: %v", e.Label, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *AssetLoadError) Unwrap() error {
	return e.Err
}

// Assets resolves a label to its emoji image.
type Assets interface {
	Get(label expression.Label) (image.Image, error)
}

// Store loads emoji images from {root}/{label}.{ext} and keeps them in memory.
// Only successful loads are cached; Watch drops entries whose file changes.
type Store struct {
	root string
	ext  string

	mu    sync.RWMutex
	cache map[expression.Label]image.Image
	loads atomic.Int64
}

// NewStore creates a store. ext defaults to "png".
func NewStore(root, ext string) *Store {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "png"
	}
	return &Store{
		root:  root,
		ext:   ext,
		cache: make(map[expression.Label]image.Image),
	}
}

// Path returns where the emoji for label lives.
func (s *Store) Path(label expression.Label) string {
	return filepath.Join(s.root, string(label)+"."+s.ext)
}

// Get returns the emoji for label, loading it on first use.
func (s *Store) Get(label expression.Label) (image.Image, error) {
	if !label.Known() {
		return nil, &AssetLoadError{Label: label, Err: ErrUnknownLabel}
	}

	s.mu.RLock()
	img, ok := s.cache[label]
	s.mu.RUnlock()
	if ok {
		return img, nil
	}

	path := s.Path(label)
	img, err := decodeFile(path)
	if err != nil {
		return nil, &AssetLoadError{Label: label, Path: path, Err: err}
	}
	s.loads.Add(1)

	s.mu.Lock()
	s.cache[label] = img
	s.mu.Unlock()

	log.Debug("emoji loaded", "label", label, "path", path)
	return img, nil
}

// Loads returns how many times an asset was read from disk.
func (s *Store) Loads() int64 {
	return s.loads.Load()
}

// Invalidate drops the cached emoji for label.
func (s *Store) Invalidate(label expression.Label) {
	s.mu.Lock()
	delete(s.cache, label)
	s.mu.Unlock()
}

// Watch invalidates cached emoji when their files change, until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.root); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.root, err)
	}

	go s.watchLoop(ctx, watcher)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			label, ok := s.labelFor(event.Name)
			if !ok {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.Invalidate(label)
			log.Debug("emoji invalidated", "label", label, "op", event.Op.String())

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("emoji watcher error", "error", err)
		}
	}
}

// labelFor maps a file path back to its label.
func (s *Store) labelFor(path string) (expression.Label, bool) {
	base := filepath.Base(path)
	suffix := "." + s.ext
	if !strings.HasSuffix(base, suffix) {
		return expression.None, false
	}
	label := expression.Label(strings.TrimSuffix(base, suffix))
	return label, label.Known()
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}
