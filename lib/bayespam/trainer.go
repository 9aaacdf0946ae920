package bayespam

import (
	"errors"
	"fmt"
	"iter"
	"sort"
)

// sample labels, matched exactly. case normalization is a dataset boundary
// concern, see Samples.
const (
	LabelSpam = "spam"
	LabelHam  = "ham"
)

// ErrInvalidLabel is returned by Train for a sample with an unrecognized label.
// such a run fails instead of silently training on mislabeled data.
var ErrInvalidLabel = errors.New("invalid label")

// Sample is a single labeled training input, consumed during training only.
type Sample struct {
	Text  string
	Label string
}

// TrainingStats describes the model produced by a training run. For an
// incremental run the totals are cumulative, i.e. they include everything
// merged in from the existing model.
type TrainingStats struct {
	TotalSamples       int
	SpamSamples        int
	HamSamples         int
	TotalTokens        int
	UniqueTokens       int
	AvgTokensPerSample float64
	ModelSizeBytes     int
	PriorSpam          float64
	PriorHam           float64
}

func (s TrainingStats) String() string {
	return fmt.Sprintf("samples: %d (spam: %d, ham: %d), tokens: %d, unique: %d, avg per sample: %.1f, "+
		"model size: %d bytes, priors: spam %.3f, ham %.3f",
		s.TotalSamples, s.SpamSamples, s.HamSamples, s.TotalTokens, s.UniqueTokens,
		s.AvgTokensPerSample, s.ModelSizeBytes, s.PriorSpam, s.PriorHam)
}

type tokenCounts struct{ spam, ham uint64 }

// Train builds a new model from labeled samples. If existing is not nil its
// per-token counts and scalar aggregates seed the aggregation, so chaining
// runs over disjoint datasets is equivalent to one run over the concatenation.
// The input iterator may yield an error to abort the run, e.g. a failed
// dataset read. A run with zero samples still produces a valid empty model.
func Train(samples iter.Seq2[Sample, error], existing *Model) (*Model, TrainingStats, error) {
	counts := map[string]tokenCounts{}
	agg := Aggregates{}

	if existing != nil {
		agg = existing.Aggregates()
		err := existing.walk(func(token string, c Counter) error {
			counts[token] = tokenCounts{spam: uint64(c.Spam), ham: uint64(c.Ham)}
			return nil
		})
		if err != nil {
			return nil, TrainingStats{}, fmt.Errorf("failed to read existing model: %w", err)
		}
	}

	row := 0
	for s, err := range samples {
		row++
		if err != nil {
			return nil, TrainingStats{}, fmt.Errorf("failed to read sample %d: %w", row, err)
		}
		if s.Label != LabelSpam && s.Label != LabelHam {
			return nil, TrainingStats{}, fmt.Errorf("%w %q in sample %d", ErrInvalidLabel, s.Label, row)
		}

		tokens := Tokenize(s.Text)
		if s.Label == LabelSpam {
			agg.SpamDocs++
			agg.SpamTokens += uint64(len(tokens))
		} else {
			agg.HamDocs++
			agg.HamTokens += uint64(len(tokens))
		}
		for _, token := range tokens {
			tc := counts[token]
			if s.Label == LabelSpam {
				tc.spam++
			} else {
				tc.ham++
			}
			counts[token] = tc
		}
	}

	// the transducer builder demands strictly ascending keys
	tokens := make([]string, 0, len(counts))
	for token := range counts {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	packed := make([]uint64, len(tokens))
	for i, token := range tokens {
		tc := counts[token]
		v, err := packCounts(tc.spam, tc.ham)
		if err != nil {
			return nil, TrainingStats{}, fmt.Errorf("token %q: %w", token, err)
		}
		packed[i] = v
	}

	model, err := buildModel(tokens, packed, agg)
	if err != nil {
		return nil, TrainingStats{}, fmt.Errorf("failed to build model: %w", err)
	}
	return model, makeStats(model), nil
}

// makeStats derives training statistics from a finished model.
func makeStats(m *Model) TrainingStats {
	agg := m.Aggregates()
	res := TrainingStats{
		TotalSamples:   int(agg.SpamDocs + agg.HamDocs),
		SpamSamples:    int(agg.SpamDocs),
		HamSamples:     int(agg.HamDocs),
		TotalTokens:    int(agg.SpamTokens + agg.HamTokens),
		UniqueTokens:   m.Len(),
		ModelSizeBytes: len(m.Bytes()),
		PriorSpam:      0.5,
		PriorHam:       0.5,
	}
	if res.TotalSamples > 0 {
		res.AvgTokensPerSample = float64(res.TotalTokens) / float64(res.TotalSamples)
		res.PriorSpam = float64(agg.SpamDocs) / float64(res.TotalSamples)
		res.PriorHam = float64(agg.HamDocs) / float64(res.TotalSamples)
	}
	return res
}
