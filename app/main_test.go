package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/bayespam/lib/bayespam"
)

func TestTrainCmd_Execute(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "dataset.csv")
	require.NoError(t, os.WriteFile(dataset, []byte(`text,label
"FREE MONEY! Click here now!",spam
"Hello, how are you today?",ham
"URGENT: Your account will be closed!",spam
"Meeting scheduled for tomorrow at 3pm",ham
`), 0o600))

	out := filepath.Join(dir, "out.model")
	cmd := trainCmd{Output: out}
	cmd.Args.Datasets = []string{dataset}
	require.NoError(t, cmd.Execute(nil))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	model, err := bayespam.LoadModel(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), model.Aggregates().SpamDocs)
	assert.Equal(t, uint64(2), model.Aggregates().HamDocs)

	res := bayespam.NewClassifier(model).Classify("FREE MONEY win now")
	assert.True(t, res.IsSpam)
}

func TestTrainCmd_ExecuteUpdate(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.csv")
	second := filepath.Join(dir, "second.csv")
	require.NoError(t, os.WriteFile(first, []byte("text,label\nfree money now,spam\n"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("text,label\nmeeting tomorrow,ham\n"), 0o600))

	out := filepath.Join(dir, "out.model")

	cmd := trainCmd{Output: out}
	cmd.Args.Datasets = []string{first}
	require.NoError(t, cmd.Execute(nil))

	upd := trainCmd{Output: out, Update: true}
	upd.Args.Datasets = []string{second}
	require.NoError(t, upd.Execute(nil))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	model, err := bayespam.LoadModel(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), model.Aggregates().SpamDocs)
	assert.Equal(t, uint64(1), model.Aggregates().HamDocs)

	_, ok := model.Lookup("money")
	assert.True(t, ok, "token from the first run should survive the update")
}

func TestTrainCmd_ExecuteMissingDataset(t *testing.T) {
	cmd := trainCmd{Output: filepath.Join(t.TempDir(), "out.model")}
	cmd.Args.Datasets = []string{"no-such-file.csv", "another-missing.csv"}
	err := cmd.Execute(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-file.csv")
	assert.Contains(t, err.Error(), "another-missing.csv")
}

func TestTrainCmd_ExecuteInvalidLabel(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "dataset.csv")
	require.NoError(t, os.WriteFile(dataset, []byte("text,label\nsome text,junk\n"), 0o600))

	out := filepath.Join(dir, "out.model")
	cmd := trainCmd{Output: out}
	cmd.Args.Datasets = []string{dataset}
	err := cmd.Execute(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, bayespam.ErrInvalidLabel)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "failed run should not publish a model")
}

func TestWriteModel_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.model")

	require.NoError(t, writeModel(path, []byte("first")))
	require.NoError(t, writeModel(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	// no temp leftovers
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestServerCmd_LoadModelSeed(t *testing.T) {
	cmd := serverCmd{Model: filepath.Join(t.TempDir(), "missing.model")}
	model, err := cmd.loadModel()
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Positive(t, model.Len())
	assert.Positive(t, model.Aggregates().SpamDocs)
	assert.Positive(t, model.Aggregates().HamDocs)

	c := bayespam.NewClassifier(model)
	assert.True(t, c.Classify("FREE MONEY! Click here now to win a prize!").IsSpam)
}

func TestServerCmd_LoadModelFromFile(t *testing.T) {
	dir := t.TempDir()
	m, _, err := bayespam.Train(bayespam.SamplesFromSlice([]bayespam.Sample{
		{Text: "free money", Label: bayespam.LabelSpam},
		{Text: "meeting notes", Label: bayespam.LabelHam},
	}), nil)
	require.NoError(t, err)

	path := filepath.Join(dir, "m.model")
	require.NoError(t, writeModel(path, m.Bytes()))

	cmd := serverCmd{Model: path}
	loaded, err := cmd.loadModel()
	require.NoError(t, err)
	assert.Equal(t, m.Len(), loaded.Len())
	assert.Equal(t, m.Aggregates(), loaded.Aggregates())
}
