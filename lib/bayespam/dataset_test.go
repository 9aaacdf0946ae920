package bayespam

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamples(t *testing.T) {
	data := `text,label
"FREE MONEY! Click here now!",spam
"Hello, how are you today?",ham
plain text without quotes,spam
`
	var got []Sample
	for s, err := range Samples(strings.NewReader(data)) {
		require.NoError(t, err)
		got = append(got, s)
	}

	assert.Equal(t, []Sample{
		{Text: "FREE MONEY! Click here now!", Label: "spam"},
		{Text: "Hello, how are you today?", Label: "ham"},
		{Text: "plain text without quotes", Label: "spam"},
	}, got)
}

func TestSamples_TrimsLabels(t *testing.T) {
	data := "text,label\nhello there, ham \n"
	var got []Sample
	for s, err := range Samples(strings.NewReader(data)) {
		require.NoError(t, err)
		got = append(got, s)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "ham", got[0].Label)
}

func TestSamples_ShortRow(t *testing.T) {
	data := "text,label\nonly one column\n"
	var gotErr error
	for _, err := range Samples(strings.NewReader(data)) {
		if err != nil {
			gotErr = err
		}
	}
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "columns")
}

func TestSamples_HeaderOnly(t *testing.T) {
	count := 0
	for _, err := range Samples(strings.NewReader("text,label\n")) {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 0, count)
}

func TestSamples_ExtraColumnsIgnored(t *testing.T) {
	data := "text,label,extra\nsome text,spam,whatever\n"
	var got []Sample
	for s, err := range Samples(strings.NewReader(data)) {
		require.NoError(t, err)
		got = append(got, s)
	}
	require.Len(t, got, 1)
	assert.Equal(t, Sample{Text: "some text", Label: "spam"}, got[0])
}

func TestChainSamples(t *testing.T) {
	a := SamplesFromSlice([]Sample{{Text: "one", Label: LabelSpam}})
	b := SamplesFromSlice([]Sample{{Text: "two", Label: LabelHam}, {Text: "three", Label: LabelHam}})

	var got []Sample
	for s, err := range ChainSamples(a, b) {
		require.NoError(t, err)
		got = append(got, s)
	}
	assert.Equal(t, []Sample{
		{Text: "one", Label: LabelSpam},
		{Text: "two", Label: LabelHam},
		{Text: "three", Label: LabelHam},
	}, got)
}
