package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const fileExt = ".json"

// FileStore keeps one JSON document per session in a directory. Every write
// goes to a temp file in the same directory and is renamed over the target,
// so a crash never leaves a half-written document.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*idLock
}

// idLock serializes writers of one session. It is dropped from the map once
// no caller holds or waits on it.
type idLock struct {
	mu   sync.Mutex
	refs int
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &FileStore{dir: dir, locks: make(map[string]*idLock)}, nil
}

// path maps id to a file name. A leading dot is escaped so session files
// never collide with temp files.
func (f *FileStore) path(id string) string {
	name := url.PathEscape(id)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return filepath.Join(f.dir, name+fileExt)
}

func (f *FileStore) lock(id string) func() {
	f.mu.Lock()
	l, ok := f.locks[id]
	if !ok {
		l = &idLock{}
		f.locks[id] = l
	}
	l.refs++
	f.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		f.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(f.locks, id)
		}
		f.mu.Unlock()
	}
}

func (f *FileStore) read(id string) (*Session, error) {
	b, err := os.ReadFile(f.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if s.Events == nil {
		s.Events = []Event{}
	}
	return &s, nil
}

func (f *FileStore) write(s *Session) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write session %s: %w", s.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync session %s: %w", s.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path(s.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename session %s: %w", s.ID, err)
	}
	return nil
}

func (f *FileStore) Start(_ context.Context, id string, at time.Time) error {
	defer f.lock(id)()
	if _, err := os.Stat(f.path(id)); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat session %s: %w", id, err)
	}
	return f.write(&Session{ID: id, StartedAt: at, Events: []Event{}})
}

func (f *FileStore) Append(_ context.Context, id string, ev Event) error {
	defer f.lock(id)()
	s, err := f.read(id)
	if errors.Is(err, ErrNotFound) {
		s = &Session{ID: id, StartedAt: ev.TS, Events: []Event{}}
	} else if err != nil {
		return err
	}
	s.Events = append(s.Events, ev)
	return f.write(s)
}

func (f *FileStore) End(_ context.Context, id string, at time.Time) error {
	defer f.lock(id)()
	s, err := f.read(id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.EndedAt != nil {
		return nil
	}
	s.EndedAt = &at
	return f.write(s)
}

func (f *FileStore) Get(_ context.Context, id string) (*Session, error) {
	defer f.lock(id)()
	return f.read(id)
}

func (f *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read transcript dir: %w", err)
	}
	list := make([]Summary, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		s, err := f.Get(ctx, id)
		if err != nil {
			// Removed or corrupt between ReadDir and Get.
			continue
		}
		list = append(list, s.summary())
	}
	sortNewestFirst(list)
	return list, nil
}

func (f *FileStore) Delete(_ context.Context, id string) (bool, error) {
	unlock := f.lock(id)
	err := os.Remove(f.path(id))
	unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", id, err)
	}
	return true, nil
}

func (f *FileStore) Prune(ctx context.Context, max int) ([]string, error) {
	list, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, id := range oldest(list, max) {
		ok, err := f.Delete(ctx, id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed = append(removed, id)
		}
	}
	return removed, nil
}
