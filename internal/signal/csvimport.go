package signal

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Meta keys the importer understands besides free-form meta.
const (
	MetaSamplingRate = "sampling_rate"
	MetaDescription  = "description"
	MetaUnit         = "unit"
)

// ImportOptions tunes CSV import.
type ImportOptions struct {
	// SamplingRate overrides the sampling_rate meta line when positive.
	SamplingRate float64
	Description  string
}

// ImportSummary reports what an import wrote.
type ImportSummary struct {
	Leads        []string
	SamplingRate float64
	Frames       int64
	Meta         map[string]string
}

// ImportCSV converts a CSV export into a new recording store at dst.
//
// Leading lines of the form "# key=value" become meta values. The first
// non-comment line is the header "index,<lead>,...", and each following row
// holds one frame.
func ImportCSV(ctx context.Context, r io.Reader, dst string, opts ImportOptions) (summary ImportSummary, err error) {
	br := bufio.NewReader(r)
	meta, order, err := readMetaLines(br)
	if err != nil {
		return ImportSummary{}, err
	}

	rate := opts.SamplingRate
	if rate <= 0 {
		raw, ok := meta[MetaSamplingRate]
		if !ok {
			return ImportSummary{}, errors.New("sampling rate missing: pass one or add a '# sampling_rate=' line")
		}
		rate, err = strconv.ParseFloat(raw, 64)
		if err != nil || rate <= 0 {
			return ImportSummary{}, fmt.Errorf("invalid sampling rate %q", raw)
		}
	}
	description := opts.Description
	if description == "" {
		description = meta[MetaDescription]
	}
	if description == "" {
		description = "CSV import"
	}

	cr := csv.NewReader(br)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return ImportSummary{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "index") {
		return ImportSummary{}, fmt.Errorf("header must start with index and name at least one lead, got %v", header)
	}
	leads := make([]string, 0, len(header)-1)
	channels := make([]Channel, 0, len(header)-1)
	for _, name := range header[1:] {
		name = strings.TrimSpace(name)
		leads = append(leads, name)
		channels = append(channels, Channel{Name: name, Unit: meta[MetaUnit]})
	}

	store, err := Create(ctx, dst)
	if err != nil {
		return ImportSummary{}, err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	recID, err := store.AddRecording(ctx, RecordingInfo{
		SamplingRate: rate,
		Description:  description,
		Channels:     channels,
	})
	if err != nil {
		return ImportSummary{}, err
	}
	for _, key := range order {
		switch key {
		case MetaSamplingRate, MetaDescription, MetaUnit:
			continue
		}
		if err := store.SetMeta(ctx, key, meta[key]); err != nil {
			return ImportSummary{}, err
		}
	}

	batch := make([]Frame, 0, appendBatchSize)
	var count int64
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return ImportSummary{}, err
		}
		record, readErr := cr.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		line++
		if readErr != nil {
			return ImportSummary{}, fmt.Errorf("row %d: %w", line, readErr)
		}
		frame, parseErr := parseRow(record, len(leads))
		if parseErr != nil {
			return ImportSummary{}, fmt.Errorf("row %d: %w", line, parseErr)
		}
		batch = append(batch, frame)
		if len(batch) == appendBatchSize {
			if err := store.AppendFrames(ctx, recID, batch); err != nil {
				return ImportSummary{}, err
			}
			count += int64(len(batch))
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := store.AppendFrames(ctx, recID, batch); err != nil {
			return ImportSummary{}, err
		}
		count += int64(len(batch))
	}

	return ImportSummary{Leads: leads, SamplingRate: rate, Frames: count, Meta: meta}, nil
}

func readMetaLines(br *bufio.Reader) (map[string]string, []string, error) {
	meta := make(map[string]string)
	var order []string
	for {
		peek, err := br.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return meta, order, nil
			}
			return nil, nil, err
		}
		if peek[0] != '#' {
			return meta, order, nil
		}
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, nil, err
		}
		key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "#")), "=")
		if ok {
			key = strings.TrimSpace(key)
			if _, seen := meta[key]; !seen {
				order = append(order, key)
			}
			meta[key] = strings.TrimSpace(value)
		}
		if errors.Is(err, io.EOF) {
			return meta, order, nil
		}
	}
}

func parseRow(record []string, leads int) (Frame, error) {
	if len(record) != leads+1 {
		return Frame{}, fmt.Errorf("expected %d columns, got %d", leads+1, len(record))
	}
	idx, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return Frame{}, fmt.Errorf("index: %w", err)
	}
	values := make([]float64, leads)
	for i, field := range record[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return Frame{}, fmt.Errorf("lead %d: %w", i, err)
		}
		values[i] = v
	}
	return Frame{Index: idx, Values: values}, nil
}
