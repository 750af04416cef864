package stage_test

import (
	"encoding/json"
	"testing"

	"wiffecg/internal/stage"
)

func TestSequenceLengthsFollowOutputSelection(t *testing.T) {
	cases := []struct {
		name        string
		outputs     stage.OutputSet
		transitions int
		last        stage.Stage
	}{
		{"none", stage.OutputsFromFlags(false, false), 7, stage.CalculateRR},
		{"png", stage.OutputsFromFlags(true, false), 8, stage.SavePNG},
		{"pdf", stage.OutputsFromFlags(false, true), 8, stage.SavePDF},
		{"both", stage.OutputsFromFlags(true, true), 9, stage.SavePDF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seq := stage.Sequence(tc.outputs)
			if got := len(seq) - 1; got != tc.transitions {
				t.Fatalf("expected %d transitions, got %d (%v)", tc.transitions, got, seq)
			}
			if seq[0] != stage.Empty || seq[len(seq)-1] != stage.Completed {
				t.Fatalf("unexpected endpoints %v", seq)
			}
			if seq[len(seq)-2] != tc.last {
				t.Fatalf("expected %s before COMPLETED, got %s", tc.last, seq[len(seq)-2])
			}
		})
	}
}

func TestSequenceIsStrictlyOrdered(t *testing.T) {
	seq := stage.Sequence(stage.NewOutputSet(stage.OutputPNG, stage.OutputPDF))
	for i := 1; i < len(seq); i++ {
		if !seq[i-1].Before(seq[i]) {
			t.Fatalf("expected %s before %s", seq[i-1], seq[i])
		}
	}
}

func TestTerminalStagesDoNotAdvance(t *testing.T) {
	outputs := stage.NewOutputSet(stage.OutputPDF)
	if stage.Completed.Next(outputs) != stage.Completed {
		t.Fatal("expected COMPLETED to be absorbing")
	}
	if stage.Error.Next(outputs) != stage.Error {
		t.Fatal("expected ERROR to be absorbing")
	}
	if !stage.Completed.Terminal() || !stage.Error.Terminal() || stage.SavePDF.Terminal() {
		t.Fatal("unexpected terminal classification")
	}
	if stage.Error.Before(stage.Empty) || stage.Empty.Before(stage.Error) {
		t.Fatal("ERROR must be outside the total order")
	}
}

func TestStageTextRoundTrip(t *testing.T) {
	for _, s := range stage.All() {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("marshal %v: %v", s, err)
		}
		var decoded stage.Stage
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if decoded != s {
			t.Fatalf("round trip mismatch: %v != %v", decoded, s)
		}
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	if _, err := stage.Parse("SAVEGIF"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
	s, err := stage.Parse(" keepkeys ")
	if err != nil || s != stage.KeepKeys {
		t.Fatalf("expected KEEPKEYS, got %v (%v)", s, err)
	}
	if _, err := json.Marshal(stage.Stage(42)); err == nil {
		t.Fatal("expected marshal error for invalid stage")
	}
}

func TestOutputSetString(t *testing.T) {
	if got := stage.NewOutputSet().String(); got != "none" {
		t.Fatalf("unexpected empty set string %q", got)
	}
	if got := stage.OutputsFromFlags(true, true).String(); got != "png,pdf" {
		t.Fatalf("unexpected set string %q", got)
	}
}
