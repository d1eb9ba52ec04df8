package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/retrosync/retrosync/internal/blob"
	"github.com/retrosync/retrosync/internal/fingerprint"
	"github.com/retrosync/retrosync/internal/syncerr"
	"github.com/retrosync/retrosync/internal/synclog"
	"github.com/stretchr/testify/require"
)

const (
	owner  = "alice"
	device = "deviceA"
)

// recorder keeps every appended event.
type recorder struct {
	mu     sync.Mutex
	events []synclog.Event
	err    error
}

func (r *recorder) Append(_ context.Context, ev synclog.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) all() []synclog.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]synclog.Event(nil), r.events...)
}

func (r *recorder) count(action synclog.Action, status synclog.Status) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Action == action && ev.Status == status {
			n++
		}
	}
	return n
}

// faultStore wraps a MemStore, counts puts and fails selected calls.
type faultStore struct {
	*blob.MemStore

	mu      sync.Mutex
	puts    map[string]int
	failPut func(key string) error
	failGet func(key string) error
	failLst error
}

func newFaultStore() *faultStore {
	return &faultStore{MemStore: blob.NewMemStore(), puts: make(map[string]int)}
}

func (f *faultStore) PutObject(ctx context.Context, p *blob.PutObjectParams) (*blob.PutObjectResponse, error) {
	f.mu.Lock()
	fail := f.failPut
	f.mu.Unlock()
	if fail != nil {
		if err := fail(p.Key); err != nil {
			return nil, err
		}
	}

	resp, err := f.MemStore.PutObject(ctx, p)
	if err == nil {
		f.mu.Lock()
		f.puts[p.Key]++
		f.mu.Unlock()
	}
	return resp, err
}

func (f *faultStore) GetObject(ctx context.Context, key string) (*blob.GetObjectResponse, error) {
	if f.failGet != nil {
		if err := f.failGet(key); err != nil {
			return nil, err
		}
	}
	return f.MemStore.GetObject(ctx, key)
}

func (f *faultStore) ListObjects(ctx context.Context, prefix string) ([]*blob.ObjectInfo, error) {
	if f.failLst != nil {
		return nil, f.failLst
	}
	return f.MemStore.ListObjects(ctx, prefix)
}

func (f *faultStore) putCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts[key]
}

func (f *faultStore) totalPuts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.puts {
		n += v
	}
	return n
}

// seed stores content as if another device had uploaded it.
func (f *faultStore) seed(t *testing.T, key, content string, modified time.Time) {
	t.Helper()
	fp := fingerprint.OfBytes([]byte(content))
	_, err := f.MemStore.PutObject(context.Background(), &blob.PutObjectParams{
		Key:  key,
		Hash: fp.Hash,
		Size: fp.Size,
		Body: strings.NewReader(content),
	})
	require.NoError(t, err)
	if !modified.IsZero() {
		require.True(t, f.SetLastModified(key, modified))
	}
}

var errBoom = syncerr.Network("put", "", errors.New("connection reset"))

// ignoreLog records IgnoreOnce calls.
type ignoreLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *ignoreLog) IgnoreOnce(path string, _ time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
}

func (l *ignoreLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

type fixture struct {
	c       *Coordinator
	store   *faultStore
	log     *recorder
	ignored *ignoreLog
	root    string
}

func newFixture(t *testing.T, roots ...string) *fixture {
	t.Helper()
	if len(roots) == 0 {
		dir, err := filepath.EvalSymlinks(t.TempDir())
		require.NoError(t, err)
		roots = []string{dir}
	}

	f := &fixture{store: newFaultStore(), log: &recorder{}, ignored: &ignoreLog{}, root: roots[0]}
	c, err := New(Config{OwnerID: owner, DeviceID: device, WatchRoots: roots, Concurrency: 3},
		f.store, f.log, WithIgnorer(f.ignored))
	require.NoError(t, err)
	f.c = c
	return f
}

func writeSave(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func bytesReader(s string) *strings.Reader {
	return strings.NewReader(s)
}

func readFileOK(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
