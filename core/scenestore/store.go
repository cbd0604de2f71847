// Package scenestore persists named scenes as JSON documents in a directory.
package scenestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sammwyy/easel/api"
)

// Error codes
const (
	CodeNotFound = "SCENE_NOT_FOUND"
	CodeInvalid  = "SCENE_INVALID"
)

var (
	// ErrNotFound is returned when no scene has the requested id
	ErrNotFound = errors.New("scene not found")

	// ErrInvalid is returned for scenes that cannot be stored
	ErrInvalid = errors.New("invalid scene")
)

const fileExt = ".json"

// Scene is one saved canvas snapshot
type Scene struct {
	ID        ulid.ULID     `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"createdAt"`
	Elements  []api.Element `json:"elements"`
	AppState  api.AppState  `json:"appState"`
}

// Summary describes a scene without its content
type Summary struct {
	ID        ulid.ULID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Elements  int       `json:"elements"`
}

// Store keeps scenes under a directory, one file per scene
type Store struct {
	dir    string
	logger api.Logger
	mutex  sync.Mutex
}

// Open creates the directory if needed and returns a store over it
func Open(dir string, logger api.Logger) (*Store, error) {
	if dir == "" {
		return nil, oops.Code(CodeInvalid).In("scenestore").Wrapf(ErrInvalid, "scene directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scene directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the store directory
func (s *Store) Dir() string {
	return s.dir
}

// Save stores a deep copy of the given scene content under a new id
func (s *Store) Save(name string, elements []api.Element, appState api.AppState) (Scene, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Scene{}, oops.Code(CodeInvalid).In("scenestore").Wrapf(ErrInvalid, "scene name is required")
	}
	if elements == nil {
		elements = []api.Element{}
	}

	scene := Scene{
		ID:        ulid.Make(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Elements:  elements,
		AppState:  appState,
	}

	data, err := json.MarshalIndent(scene, "", "  ")
	if err != nil {
		return Scene{}, oops.Code(CodeInvalid).In("scenestore").With("name", name).Wrapf(err, "encode scene")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.writeFile(scene.ID, data); err != nil {
		return Scene{}, err
	}

	// the returned scene shares nothing with the caller's slices
	var stored Scene
	if err := json.Unmarshal(data, &stored); err != nil {
		return Scene{}, oops.Code(CodeInvalid).In("scenestore").Wrapf(err, "decode scene")
	}

	s.logger.Info("Scene saved", "id", stored.ID.String(), "name", name, "elements", len(stored.Elements))
	return stored, nil
}

// Load returns the scene with the given id
func (s *Store) Load(id string) (Scene, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return Scene{}, notFound(id)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.read(s.path(parsed))
}

// Delete removes the scene with the given id
func (s *Store) Delete(id string) error {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return notFound(id)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.Remove(s.path(parsed)); err != nil {
		if os.IsNotExist(err) {
			return notFound(id)
		}
		return fmt.Errorf("failed to delete scene: %w", err)
	}

	s.logger.Info("Scene deleted", "id", id)
	return nil
}

// List returns summaries of all scenes, newest first. Unreadable files are
// logged and skipped.
func (s *Store) List() ([]Summary, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene directory: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsSceneFile(entry.Name()) {
			continue
		}
		scene, err := s.read(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("Skipping unreadable scene file", "file", entry.Name(), "error", err)
			continue
		}
		summaries = append(summaries, Summary{
			ID:        scene.ID,
			Name:      scene.Name,
			CreatedAt: scene.CreatedAt,
			Elements:  len(scene.Elements),
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID.Compare(summaries[j].ID) > 0
	})
	return summaries, nil
}

// IsSceneFile reports whether name looks like a stored scene file
func IsSceneFile(name string) bool {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, fileExt) {
		return false
	}
	_, err := ulid.ParseStrict(strings.TrimSuffix(base, fileExt))
	return err == nil
}

func (s *Store) path(id ulid.ULID) string {
	return filepath.Join(s.dir, id.String()+fileExt)
}

func (s *Store) read(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Scene{}, notFound(strings.TrimSuffix(filepath.Base(path), fileExt))
		}
		return Scene{}, fmt.Errorf("failed to read scene: %w", err)
	}

	var scene Scene
	if err := json.Unmarshal(data, &scene); err != nil {
		return Scene{}, oops.Code(CodeInvalid).In("scenestore").
			With("file", filepath.Base(path)).
			Wrapf(ErrInvalid, "decode scene: %v", err)
	}
	if scene.Elements == nil {
		scene.Elements = []api.Element{}
	}
	return scene, nil
}

// writeFile writes through a temp file and renames it into place
func (s *Store) writeFile(id ulid.ULID, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".scene-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write scene: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close scene file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move scene into place: %w", err)
	}
	return nil
}

func notFound(id string) error {
	return oops.Code(CodeNotFound).In("scenestore").
		With("scene_id", id).
		Wrapf(ErrNotFound, "scene %s", id)
}
