package signal

import (
	"context"
	"fmt"
	"strings"

	"wiffecg/internal/faults"
)

// MetaRecordingType is the meta key describing what a recording captured.
const MetaRecordingType = "Recording.Type"

var limbLeads = map[string]struct{}{
	"I": {}, "II": {}, "III": {}, "aVR": {}, "aVL": {}, "aVF": {},
}

// LeadLabel strips the "Lead " prefix used by device exports.
func LeadLabel(name string) string {
	return strings.TrimPrefix(name, "Lead ")
}

// Validate checks that a store describes a single standard limb-lead ECG
// recording. Failures carry faults.ErrValidation.
func Validate(ctx context.Context, s *Store) error {
	count, err := s.RecordingCount(ctx)
	if err != nil {
		return err
	}
	if count != 1 {
		return faults.WithData(
			faults.Wrap(faults.ErrValidation, "", "validate recording",
				fmt.Sprintf("%d recordings found in a single file, exactly one is supported", count), nil),
			map[string]any{"recordings": count},
		)
	}

	rec, err := s.Recording(ctx)
	if err != nil {
		return err
	}
	for _, lead := range rec.Leads() {
		if _, ok := limbLeads[LeadLabel(lead)]; !ok {
			return faults.WithData(
				faults.Wrap(faults.ErrValidation, "", "validate recording",
					fmt.Sprintf("lead %q not acceptable for ECG", lead), nil),
				map[string]any{"lead": lead},
			)
		}
	}

	types, err := s.Meta(ctx, MetaRecordingType)
	if err != nil {
		return err
	}
	if len(types) == 0 {
		return faults.Wrap(faults.ErrValidation, "", "validate recording",
			"no meta value for "+MetaRecordingType, nil)
	}
	if !strings.HasPrefix(types[0], "EKG") {
		return faults.WithData(
			faults.Wrap(faults.ErrValidation, "", "validate recording",
				fmt.Sprintf("%s meta %q does not start with EKG", MetaRecordingType, types[0]), nil),
			map[string]any{"recording_type": types[0]},
		)
	}
	return nil
}
