package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"wiffecg/internal/faults"
	"wiffecg/internal/fileutil"
	"wiffecg/internal/stage"
)

// StateEntry is the reserved container entry holding the state record.
const StateEntry = "state.json"

// Archive is an open, exclusively held archive.
type Archive struct {
	path   string
	state  *State
	files  map[string][]byte
	closed bool
}

// Open acquires the archive at path, creating it with an EMPTY record when it
// does not exist. A path that is already open fails with ErrAlreadyOpen; a
// container that cannot be decoded fails with ErrCorruptArchive. The handle
// is released whenever Open fails.
func Open(archivePath string) (*Archive, error) {
	abs, err := canonicalPath(archivePath)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}
	if _, err := acquire(abs); err != nil {
		return nil, err
	}

	a := &Archive{path: abs, files: make(map[string][]byte)}
	if err := a.load(); err != nil {
		_ = release(abs)
		return nil, err
	}
	return a, nil
}

// canonicalPath makes archivePath absolute and resolves symlinks so every
// alias of one container shares a handle. For a container that does not exist
// yet only its directory is resolved.
func canonicalPath(archivePath string) (string, error) {
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		// Missing directory; SaveState reports it.
		return abs, nil
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}

func (a *Archive) load() error {
	_, err := os.Stat(a.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		a.state = newState()
		return a.SaveState()
	case err != nil:
		return fmt.Errorf("stat archive %s: %w", a.path, err)
	}

	state, files, err := read(a.path)
	if err != nil {
		return err
	}
	a.state = state
	a.files = files
	return nil
}

func newState() *State {
	now := time.Now().UTC()
	return &State{
		SchemaVersion: SchemaVersion,
		ArchiveID:     uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
		Stage:         stage.Empty,
		History:       []HistoryEntry{},
	}
}

// Path returns the absolute container path.
func (a *Archive) Path() string { return a.path }

// State returns the live record. Mutations are persisted by SaveState.
func (a *Archive) State() *State { return a.state }

// SaveState atomically rewrites the container with the current record and
// every auxiliary file.
func (a *Archive) SaveState() error {
	if a.closed {
		return faults.Wrap(faults.ErrNotOpen, "", "save", a.path, nil)
	}
	a.state.UpdatedAt = time.Now().UTC()
	payload, err := json.MarshalIndent(a.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state record: %w", err)
	}

	names := a.Files()
	err = fileutil.WriteAtomic(a.path, 0o644, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		if err := writeEntry(zw, StateEntry, payload); err != nil {
			return err
		}
		for _, name := range names {
			if err := writeEntry(zw, name, a.files[name]); err != nil {
				return err
			}
		}
		return zw.Close()
	})
	if err != nil {
		return fmt.Errorf("save archive %s: %w", a.path, err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

// WriteFile stores an auxiliary file. It is persisted by the next SaveState.
func (a *Archive) WriteFile(name string, data []byte) error {
	if a.closed {
		return faults.Wrap(faults.ErrNotOpen, "", "write file", a.path, nil)
	}
	clean, err := entryName(name)
	if err != nil {
		return err
	}
	a.files[clean] = bytes.Clone(data)
	return nil
}

// ReadFile returns a copy of an auxiliary file.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	if a.closed {
		return nil, faults.Wrap(faults.ErrNotOpen, "", "read file", a.path, nil)
	}
	data, ok := a.files[path.Clean(name)]
	if !ok {
		return nil, fmt.Errorf("archive entry %s: %w", name, fs.ErrNotExist)
	}
	return bytes.Clone(data), nil
}

// Files lists auxiliary file names in lexical order.
func (a *Archive) Files() []string {
	names := make([]string, 0, len(a.files))
	for name := range a.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close releases the handle. Unsaved changes are discarded.
func (a *Archive) Close() error {
	if a.closed {
		return faults.Wrap(faults.ErrNotOpen, "", "close", a.path, nil)
	}
	a.closed = true
	return release(a.path)
}

func entryName(name string) (string, error) {
	clean := path.Clean(strings.TrimSpace(name))
	switch {
	case clean == "." || clean == "":
		return "", errors.New("archive entry name is empty")
	case clean == StateEntry:
		return "", fmt.Errorf("archive entry %s is reserved", StateEntry)
	case path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../"):
		return "", fmt.Errorf("archive entry %q escapes the container", name)
	}
	return clean, nil
}

// FileInfo describes an auxiliary file inside a container.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Inspect decodes the record and lists the auxiliary files of an archive
// without taking the handle.
func Inspect(archivePath string) (*State, []FileInfo, error) {
	state, files, err := read(archivePath)
	if err != nil {
		return nil, nil, err
	}
	infos := make([]FileInfo, 0, len(files))
	for name, data := range files {
		infos = append(infos, FileInfo{Name: name, Size: int64(len(data))})
	}
	slices.SortFunc(infos, func(x, y FileInfo) int { return strings.Compare(x.Name, y.Name) })
	return state, infos, nil
}

func read(archivePath string) (*State, map[string][]byte, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("open archive %s: %w", archivePath, err)
		}
		return nil, nil, corrupt(archivePath, "not a zip container", err)
	}
	defer zr.Close()

	var (
		state *State
		files = make(map[string][]byte)
	)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, nil, corrupt(archivePath, "unreadable entry "+f.Name, err)
		}
		if f.Name == StateEntry {
			state, err = decodeState(data)
			if err != nil {
				return nil, nil, corrupt(archivePath, "invalid state record", err)
			}
			continue
		}
		files[f.Name] = data
	}
	if state == nil {
		return nil, nil, corrupt(archivePath, "missing "+StateEntry, nil)
	}
	return state, files, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func decodeState(data []byte) (*State, error) {
	var probe struct {
		SchemaVersion *int            `json:"schema_version"`
		Stage         json.RawMessage `json:"stage"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if probe.SchemaVersion == nil {
		return nil, errors.New("schema_version missing")
	}
	if *probe.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %d (expected %d)", *probe.SchemaVersion, SchemaVersion)
	}
	if len(probe.Stage) == 0 || string(probe.Stage) == "null" {
		return nil, errors.New("stage missing")
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Stage == stage.Error && state.Error == nil {
		return nil, errors.New("stage ERROR without error details")
	}
	return &state, nil
}

func corrupt(archivePath, message string, err error) error {
	return faults.Wrap(faults.ErrCorruptArchive, "", archivePath, message, err)
}
