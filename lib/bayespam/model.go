package bayespam

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/blevesearch/vellum"
)

// ErrCorruptModel is returned by LoadModel when the blob fails structural validation.
var ErrCorruptModel = errors.New("corrupt model")

// model blob layout: 4 bytes magic, 1 byte version, four big-endian uint64 aggregates
// (spam tokens, ham tokens, spam docs, ham docs), followed by the vellum FST bytes.
var modelMagic = [4]byte{'b', 's', 'p', 'm'}

const (
	modelVersion    = 1
	modelHeaderSize = 4 + 1 + 4*8
)

// Counter holds per-token occurrence counts for both classes.
// Stored in the FST as a single uint64, spam in the upper 32 bits, ham in the lower.
type Counter struct {
	Spam uint32
	Ham  uint32
}

func counterFromUint64(v uint64) Counter {
	return Counter{Spam: uint32(v >> 32), Ham: uint32(v & math.MaxUint32)}
}

func (c Counter) asUint64() uint64 {
	return uint64(c.Spam)<<32 | uint64(c.Ham)
}

// packCounts validates both counts fit their 32-bit slots and packs them.
// overflow is rejected, never silently wrapped.
func packCounts(spam, ham uint64) (uint64, error) {
	if spam > math.MaxUint32 || ham > math.MaxUint32 {
		return 0, fmt.Errorf("counter overflow: spam=%d, ham=%d", spam, ham)
	}
	return Counter{Spam: uint32(spam), Ham: uint32(ham)}.asUint64(), nil
}

// Aggregates are the scalar totals carried by a model along with per-token counts.
type Aggregates struct {
	SpamTokens uint64 // sum of spam counts over all tokens
	HamTokens  uint64 // sum of ham counts over all tokens
	SpamDocs   uint64 // number of spam documents the model was trained on
	HamDocs    uint64 // number of ham documents the model was trained on
}

// Model is an immutable token to counts mapping backed by an FST, plus scalar aggregates.
// Safe for unsynchronized concurrent reads, never mutated after construction.
type Model struct {
	blob []byte
	fst  *vellum.FST
	agg  Aggregates
}

// LoadModel parses a model blob. It validates the header and the transducer
// structure and fails with ErrCorruptModel if either can't be parsed.
func LoadModel(data []byte) (*Model, error) {
	if len(data) < modelHeaderSize {
		return nil, fmt.Errorf("%w: blob too short, %d bytes", ErrCorruptModel, len(data))
	}
	if !bytes.Equal(data[:4], modelMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptModel, data[:4])
	}
	if data[4] != modelVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptModel, data[4])
	}

	agg := Aggregates{
		SpamTokens: binary.BigEndian.Uint64(data[5:]),
		HamTokens:  binary.BigEndian.Uint64(data[13:]),
		SpamDocs:   binary.BigEndian.Uint64(data[21:]),
		HamDocs:    binary.BigEndian.Uint64(data[29:]),
	}

	fst, err := vellum.Load(data[modelHeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load transducer: %v", ErrCorruptModel, err)
	}
	return &Model{blob: data, fst: fst, agg: agg}, nil
}

// buildModel makes a model from strictly ascending (token, packed counts) pairs.
// sorting is the caller's precondition, out-of-order keys fail the build.
func buildModel(tokens []string, packed []uint64, agg Aggregates) (*Model, error) {
	var buf bytes.Buffer
	buf.Grow(modelHeaderSize)
	buf.Write(modelMagic[:])
	buf.WriteByte(modelVersion)
	for _, v := range []uint64{agg.SpamTokens, agg.HamTokens, agg.SpamDocs, agg.HamDocs} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, fmt.Errorf("failed to write model header: %w", err)
		}
	}

	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to make transducer builder: %w", err)
	}
	for i, token := range tokens {
		if err := builder.Insert([]byte(token), packed[i]); err != nil {
			return nil, fmt.Errorf("failed to insert token %q: %w", token, err)
		}
	}
	if err := builder.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish transducer: %w", err)
	}

	return LoadModel(buf.Bytes())
}

// Bytes returns the serialized model blob, suitable for LoadModel round-trip.
func (m *Model) Bytes() []byte { return m.blob }

// Aggregates returns the model's scalar totals.
func (m *Model) Aggregates() Aggregates { return m.agg }

// Len returns the vocabulary size, i.e. the number of unique tokens.
func (m *Model) Len() int { return m.fst.Len() }

// Lookup returns the counts for a token and whether the token is present.
func (m *Model) Lookup(token string) (Counter, bool) {
	v, ok, err := m.fst.Get([]byte(token))
	if err != nil || !ok {
		return Counter{}, false
	}
	return counterFromUint64(v), true
}

// Priors returns log-priors for both classes, derived from document counts.
// If the model carries no documents of either class the split falls back to 0.5/0.5
// instead of taking log(0).
func (m *Model) Priors() (logSpam, logHam float64) {
	total := m.agg.SpamDocs + m.agg.HamDocs
	if total == 0 || m.agg.SpamDocs == 0 || m.agg.HamDocs == 0 {
		return math.Log(0.5), math.Log(0.5)
	}
	return math.Log(float64(m.agg.SpamDocs) / float64(total)), math.Log(float64(m.agg.HamDocs) / float64(total))
}

// walk streams all (token, counts) pairs in ascending key order.
func (m *Model) walk(fn func(token string, c Counter) error) error {
	itr, err := m.fst.Iterator(nil, nil)
	for err == nil {
		key, val := itr.Current()
		if e := fn(string(key), counterFromUint64(val)); e != nil {
			return e
		}
		err = itr.Next()
	}
	if !errors.Is(err, vellum.ErrIteratorDone) {
		return fmt.Errorf("failed to iterate model: %w", err)
	}
	return nil
}
