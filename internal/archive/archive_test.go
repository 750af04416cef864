package archive_test

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"wiffecg/internal/analysis"
	"wiffecg/internal/archive"
	"wiffecg/internal/faults"
	"wiffecg/internal/stage"
	"wiffecg/internal/testsupport"
)

func openArchive(t *testing.T, path string) *archive.Archive {
	t.Helper()
	a, err := archive.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	return a
}

func TestOpenCreatesEmptyArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.zip")
	a := openArchive(t, path)
	state := a.State()
	if state.Stage != stage.Empty {
		t.Fatalf("expected EMPTY, got %s", state.Stage)
	}
	if state.SchemaVersion != archive.SchemaVersion || state.ArchiveID == "" {
		t.Fatalf("unexpected fresh record %+v", state)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected container on disk: %v", err)
	}

	reopened := openArchive(t, path)
	defer reopened.Close()
	if reopened.State().ArchiveID != state.ArchiveID {
		t.Fatalf("archive id changed across reopen")
	}
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.zip")
	a := openArchive(t, path)
	st := a.State()
	st.Stage = stage.KeepKeys
	st.Channels = []string{"Lead I", "Lead II"}
	st.Potentials = analysis.Potentials{"Lead I": {{Frame: 10, Value: 0.9}}, "Lead II": {}}
	st.Peaks = analysis.Peaks{"Lead I": {10}, "Lead II": {}}
	st.Correlate = &analysis.Correlation{Pairs: []analysis.Pair{{A: "Lead I", B: "Lead II", Score: 0, Matched: 0}}}
	st.Remove = []int64{}
	if err := a.SaveState(); err != nil {
		t.Fatalf("save: %v", err)
	}
	want := *st
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	b := openArchive(t, path)
	defer b.Close()
	got := b.State()
	if got.Stage != stage.KeepKeys {
		t.Fatalf("expected KEEPKEYS, got %s", got.Stage)
	}
	for _, field := range []struct {
		name      string
		got, want any
	}{
		{"channels", got.Channels, want.Channels},
		{"potentials", got.Potentials, want.Potentials},
		{"peaks", got.Peaks, want.Peaks},
		{"correlate", got.Correlate, want.Correlate},
		{"points", got.Points, want.Points},
		{"remove", got.Remove, want.Remove},
	} {
		if !reflect.DeepEqual(field.got, field.want) {
			t.Fatalf("%s: expected %#v, got %#v", field.name, field.want, field.got)
		}
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("updated_at: expected %v, got %v", want.UpdatedAt, got.UpdatedAt)
	}
}

func TestErrorRecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.zip")
	a := openArchive(t, path)
	a.State().Stage = stage.Error
	a.State().Error = &archive.Failure{
		Stage:   stage.Correlate,
		Kind:    "stage_failure",
		Fault:   "*errors.errorString",
		Message: "boom",
		Trace:   []string{"*errors.errorString: boom"},
		Data:    map[string]any{"lead": "II"},
	}
	if err := a.SaveState(); err != nil {
		t.Fatal(err)
	}
	_ = a.Close()

	b := openArchive(t, path)
	defer b.Close()
	failure := b.State().Error
	if b.State().Stage != stage.Error || failure == nil {
		t.Fatalf("expected ERROR record, got %+v", b.State())
	}
	if failure.Stage != stage.Correlate || failure.Message != "boom" || failure.Data["lead"] != "II" {
		t.Fatalf("unexpected failure %+v", failure)
	}
}

func TestAlreadyOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.zip")
	a := openArchive(t, path)
	defer a.Close()

	if _, err := archive.Open(path); !errors.Is(err, faults.ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}
	rel, err := filepath.Rel(mustGetwd(t), path)
	if err == nil {
		if _, err := archive.Open(rel); !errors.Is(err, faults.ErrAlreadyOpen) {
			t.Fatalf("expected ErrAlreadyOpen through relative path, got %v", err)
		}
	}
}

func TestAlreadyOpenThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.zip")
	a := openArchive(t, path)
	defer a.Close()

	fileLink := filepath.Join(t.TempDir(), "alias.zip")
	if err := os.Symlink(path, fileLink); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	dirLink := filepath.Join(t.TempDir(), "archives")
	if err := os.Symlink(dir, dirLink); err != nil {
		t.Fatal(err)
	}
	for _, alias := range []string{fileLink, filepath.Join(dirLink, "run.zip")} {
		if _, err := archive.Open(alias); !errors.Is(err, faults.ErrAlreadyOpen) {
			t.Fatalf("expected ErrAlreadyOpen through %s, got %v", alias, err)
		}
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := archive.Open(fileLink)
	if err != nil {
		t.Fatalf("open through link: %v", err)
	}
	if err := b.SaveState(); err != nil {
		t.Fatalf("save through link: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	info, err := os.Lstat(fileLink)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("expected save to keep %s a symlink", fileLink)
	}
}

func mustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	return wd
}

func TestCloseTwiceFails(t *testing.T) {
	a := openArchive(t, filepath.Join(t.TempDir(), "run.zip"))
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); !errors.Is(err, faults.ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	if err := a.SaveState(); !errors.Is(err, faults.ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen from save, got %v", err)
	}
	if err := a.WriteFile("x/y.bin", nil); !errors.Is(err, faults.ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen from write, got %v", err)
	}
}

func TestReopenAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.zip")
	for i := 0; i < 3; i++ {
		a := openArchive(t, path)
		if err := a.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
}

func TestCorruptArchives(t *testing.T) {
	cases := []struct {
		name  string
		plant func(t *testing.T, path string)
	}{
		{"not a zip", func(t *testing.T, path string) { testsupport.WriteFile(t, path, 128) }},
		{"empty file", func(t *testing.T, path string) {
			if err := os.WriteFile(path, nil, 0o644); err != nil {
				t.Fatal(err)
			}
		}},
		{"missing state", func(t *testing.T, path string) { writeZip(t, path, map[string]string{"savepng/waveform.png": "x"}) }},
		{"malformed json", func(t *testing.T, path string) { writeZip(t, path, map[string]string{archive.StateEntry: "{"}) }},
		{"unknown version", func(t *testing.T, path string) {
			writeZip(t, path, map[string]string{archive.StateEntry: `{"schema_version": 99, "stage": "EMPTY"}`})
		}},
		{"missing version", func(t *testing.T, path string) {
			writeZip(t, path, map[string]string{archive.StateEntry: `{"stage": "EMPTY"}`})
		}},
		{"missing stage", func(t *testing.T, path string) {
			writeZip(t, path, map[string]string{archive.StateEntry: `{"schema_version": 1, "channels": ["I", "II"], "peaks": {"I": [1]}}`})
		}},
		{"null stage", func(t *testing.T, path string) {
			writeZip(t, path, map[string]string{archive.StateEntry: `{"schema_version": 1, "stage": null, "channels": ["I", "II"]}`})
		}},
		{"unknown stage", func(t *testing.T, path string) {
			writeZip(t, path, map[string]string{archive.StateEntry: `{"schema_version": 1, "stage": "SAVEGIF"}`})
		}},
		{"error without details", func(t *testing.T, path string) {
			writeZip(t, path, map[string]string{archive.StateEntry: `{"schema_version": 1, "stage": "ERROR"}`})
		}},
		{"truncated", func(t *testing.T, path string) {
			a := openArchive(t, path)
			_ = a.Close()
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path, data[:len(data)/2], 0o644); err != nil {
				t.Fatal(err)
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "run.zip")
			tc.plant(t, path)
			if _, err := archive.Open(path); !errors.Is(err, faults.ErrCorruptArchive) {
				t.Fatalf("expected ErrCorruptArchive, got %v", err)
			}
			// The handle must have been released.
			writeZip(t, path, map[string]string{archive.StateEntry: `{"schema_version": 1, "stage": "EMPTY"}`})
			a, err := archive.Open(path)
			if err != nil {
				t.Fatalf("expected reopen after corrupt failure, got %v", err)
			}
			_ = a.Close()
		})
	}
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestAuxiliaryFilesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.zip")
	a := openArchive(t, path)
	if err := a.WriteFile("savepdf/waveform.pdf", []byte("%PDF-1.3")); err != nil {
		t.Fatal(err)
	}
	if err := a.WriteFile("savepng/waveform.png", []byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatal(err)
	}
	if err := a.SaveState(); err != nil {
		t.Fatal(err)
	}
	_ = a.Close()

	b := openArchive(t, path)
	defer b.Close()
	if got := b.Files(); !reflect.DeepEqual(got, []string{"savepdf/waveform.pdf", "savepng/waveform.png"}) {
		t.Fatalf("unexpected files %v", got)
	}
	data, err := b.ReadFile("savepdf/waveform.pdf")
	if err != nil || string(data) != "%PDF-1.3" {
		t.Fatalf("unexpected pdf content %q (%v)", data, err)
	}
	if _, err := b.ReadFile("missing.bin"); err == nil {
		t.Fatal("expected missing entry error")
	}
}

func TestWriteFileRejectsReservedNames(t *testing.T) {
	a := openArchive(t, filepath.Join(t.TempDir(), "run.zip"))
	defer a.Close()
	for _, name := range []string{archive.StateEntry, "", "../escape", "/abs"} {
		if err := a.WriteFile(name, []byte("x")); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

func TestUnsavedFilesAreDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.zip")
	a := openArchive(t, path)
	if err := a.WriteFile("savepng/waveform.png", []byte("x")); err != nil {
		t.Fatal(err)
	}
	_ = a.Close()

	b := openArchive(t, path)
	defer b.Close()
	if len(b.Files()) != 0 {
		t.Fatalf("expected no files without save, got %v", b.Files())
	}
}

func TestInspectDoesNotTakeHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.zip")
	a := openArchive(t, path)
	defer a.Close()
	if err := a.WriteFile("savepng/waveform.png", []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if err := a.SaveState(); err != nil {
		t.Fatal(err)
	}

	state, files, err := archive.Inspect(path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if state.Stage != stage.Empty || len(files) != 1 || files[0].Size != 3 {
		t.Fatalf("unexpected inspect result %+v %+v", state, files)
	}
	if _, _, err := archive.Inspect(filepath.Join(t.TempDir(), "missing.zip")); err == nil || errors.Is(err, faults.ErrCorruptArchive) {
		t.Fatalf("expected plain not-exist error, got %v", err)
	}
}

func TestOpenInMissingDirectoryReleasesHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "run.zip")
	if _, err := archive.Open(path); err == nil {
		t.Fatal("expected error for missing directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	a := openArchive(t, path)
	_ = a.Close()
}
