package bayespam

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// Samples reads a two-column csv dataset, first column text, second column
// label, with a header row. Labels are trimmed of surrounding whitespace
// here at the boundary; Train matches them exactly after that. Extra columns
// are ignored, rows with fewer than two columns abort the iteration with an
// error.
func Samples(r io.Reader) iter.Seq2[Sample, error] {
	return func(yield func(Sample, error) bool) {
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1 // column count is validated per row below

		header := true
		for {
			rec, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Sample{}, fmt.Errorf("failed to read dataset row: %w", err))
				return
			}
			if header {
				header = false
				continue
			}
			if len(rec) < 2 {
				yield(Sample{}, fmt.Errorf("dataset row has %d columns, expected text and label", len(rec)))
				return
			}
			if !yield(Sample{Text: rec[0], Label: strings.TrimSpace(rec[1])}, nil) {
				return
			}
		}
	}
}

// SamplesFromSlice adapts an in-memory slice to the Train input format.
func SamplesFromSlice(samples []Sample) iter.Seq2[Sample, error] {
	return func(yield func(Sample, error) bool) {
		for _, s := range samples {
			if !yield(s, nil) {
				return
			}
		}
	}
}

// ChainSamples concatenates multiple sample sequences, e.g. several dataset files.
func ChainSamples(seqs ...iter.Seq2[Sample, error]) iter.Seq2[Sample, error] {
	return func(yield func(Sample, error) bool) {
		for _, seq := range seqs {
			for s, err := range seq {
				if !yield(s, err) {
					return
				}
			}
		}
	}
}
