package filewatcher_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/core/filewatcher"
)

type recorder struct {
	mutex  sync.Mutex
	events []filewatcher.Event
}

func (r *recorder) handle(event filewatcher.Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) paths() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	paths := make([]string, 0, len(r.events))
	for _, e := range r.events {
		paths = append(paths, filepath.Base(e.Path))
	}
	return paths
}

func (r *recorder) has(name string, op filewatcher.Op) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, e := range r.events {
		if filepath.Base(e.Path) == name && e.Op == op {
			return true
		}
	}
	return false
}

func TestFileWatcher_ReportsMatchingFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	fw, err := filewatcher.NewFileWatcher(dir, nil, api.NewLogger("filewatcher"))
	require.NoError(t, err)

	rec := &recorder{}
	fw.Subscribe(rec.handle)
	require.NoError(t, fw.Start())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.json"), []byte("{}"), 0o644))

	require.Eventually(t, func() bool {
		return rec.has("scene.json", filewatcher.OpCreate) || rec.has("scene.json", filewatcher.OpWrite)
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(dir, "scene.json")))
	require.Eventually(t, func() bool {
		return rec.has("scene.json", filewatcher.OpRemove)
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, fw.Stop())
	require.NoError(t, fw.Stop())

	for _, p := range rec.paths() {
		assert.False(t, strings.HasSuffix(p, ".txt"), "unexpected event for %s", p)
	}
}

func TestFileWatcher_CustomMatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	fw, err := filewatcher.NewFileWatcher(dir, func(name string) bool {
		return strings.HasPrefix(name, "keep")
	}, api.NewLogger("filewatcher"))
	require.NoError(t, err)

	rec := &recorder{}
	fw.Subscribe(rec.handle)
	require.NoError(t, fw.Start())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "drop.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return rec.has("keep.txt", filewatcher.OpCreate) || rec.has("keep.txt", filewatcher.OpWrite)
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, fw.Stop())

	assert.NotContains(t, rec.paths(), "drop.json")
}

func TestFileWatcher_StartMissingDir(t *testing.T) {
	defer goleak.VerifyNone(t)

	fw, err := filewatcher.NewFileWatcher(filepath.Join(t.TempDir(), "absent"), nil, api.NewLogger("filewatcher"))
	require.NoError(t, err)

	assert.Error(t, fw.Start())
	assert.NoError(t, fw.Stop())
}
