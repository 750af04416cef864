package signal_test

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wiffecg/internal/signal"
)

const sampleCSV = `# sampling_rate=500
# Recording.Type=EKG limb leads
# description=bench capture
index,Lead I,Lead II
0,0.1,0.2
1,0.3,0.4
2, 0.5, 0.6
`

func TestImportCSVRoundTrip(t *testing.T) {
	ctx := context.Background()
	dst := filepath.Join(t.TempDir(), "rec.db")
	summary, err := signal.ImportCSV(ctx, strings.NewReader(sampleCSV), dst, signal.ImportOptions{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.Frames != 3 || summary.SamplingRate != 500 || len(summary.Leads) != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	store, err := signal.Open(ctx, dst)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := signal.Validate(ctx, store); err != nil {
		t.Fatalf("imported recording should validate: %v", err)
	}
	rec, err := store.Recording(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Description() != "bench capture" {
		t.Fatalf("unexpected description %q", rec.Description())
	}
	reader, err := rec.Frames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	var last signal.Frame
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		last = frame
	}
	if last.Index != 2 || last.Values[0] != 0.5 || last.Values[1] != 0.6 {
		t.Fatalf("unexpected last frame %+v", last)
	}
}

func TestImportCSVRateOverride(t *testing.T) {
	body := "index,II\n0,1\n1,2\n"
	dst := filepath.Join(t.TempDir(), "rec.db")
	summary, err := signal.ImportCSV(context.Background(), strings.NewReader(body), dst, signal.ImportOptions{SamplingRate: 1000})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.SamplingRate != 1000 {
		t.Fatalf("expected override rate, got %v", summary.SamplingRate)
	}
}

func TestImportCSVErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing rate", "index,II\n0,1\n"},
		{"bad header", "# sampling_rate=500\ntime,II\n0,1\n"},
		{"bad value", "# sampling_rate=500\nindex,II\n0,abc\n"},
		{"short row", "# sampling_rate=500\nindex,I,II\n0,1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dst := filepath.Join(t.TempDir(), "rec.db")
			if _, err := signal.ImportCSV(context.Background(), strings.NewReader(tc.body), dst, signal.ImportOptions{}); err == nil {
				t.Fatal("expected import error")
			}
			if _, err := os.Stat(dst); !errors.Is(err, fs.ErrNotExist) {
				t.Fatalf("expected failed import to leave no store, got %v", err)
			}
		})
	}
}
