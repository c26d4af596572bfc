package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourPointScale() []ScalePoint {
	return []ScalePoint{
		{Score: 0, Short: "Not at all"},
		{Score: 1, Short: "Several days"},
		{Score: 2, Short: "More than half the days"},
		{Score: 3, Short: "Nearly every day"},
	}
}

func items(n int) []Item {
	out := make([]Item, n)
	for i := range out {
		out[i] = Item{Ordinal: i + 1, Text: "item"}
	}
	return out
}

// testInstrument has three items on a 0..3 scale, so totals run 0..9.
func testInstrument() Instrument {
	return Instrument{
		ID:      "TEST-3",
		Version: "1",
		Title:   "Test instrument",
		Items:   items(3),
		Scale:   fourPointScale(),
		Bands: []SeverityBand{
			{Lower: 0, Upper: 2, Key: "low", Label: "Low"},
			{Lower: 3, Upper: 5, Key: "mid", Label: "Mid"},
			{Lower: 6, Upper: 9, Key: "high", Label: "High"},
		},
		Domains: []Domain{{Name: "first_two", Items: []int{1, 2}}},
		Rules: []DecisionRule{
			{Flag: "elevated", Threshold: 6},
			{Flag: "item_three", Item: 3, Threshold: 1},
		},
	}
}

func TestNewInstrument_Valid(t *testing.T) {
	inst, err := NewInstrument(testInstrument())
	require.NoError(t, err)

	assert.Equal(t, 3, inst.MaxScore())
	assert.Equal(t, 9, inst.MaxTotal())
	assert.Equal(t, 3, inst.ItemCount())
	assert.True(t, inst.HasScore(2))
	assert.False(t, inst.HasScore(4))
	assert.False(t, inst.HasScore(-1))
	assert.Equal(t, "Several days", inst.ScaleLabel(1))
}

func TestNewInstrument_SortsUnorderedDefinitions(t *testing.T) {
	def := testInstrument()
	def.Items = []Item{{Ordinal: 3}, {Ordinal: 1}, {Ordinal: 2}}
	def.Bands = []SeverityBand{def.Bands[2], def.Bands[0], def.Bands[1]}

	inst, err := NewInstrument(def)
	require.NoError(t, err)
	assert.Equal(t, 1, inst.Items[0].Ordinal)
	assert.Equal(t, "Low", inst.Bands[0].Label)
}

func TestNewInstrument_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Instrument)
	}{
		{"empty id", func(i *Instrument) { i.ID = " " }},
		{"no items", func(i *Instrument) { i.Items = nil }},
		{"empty scale", func(i *Instrument) { i.Scale = nil }},
		{"duplicate ordinal", func(i *Instrument) { i.Items[2].Ordinal = 2 }},
		{"ordinal gap", func(i *Instrument) { i.Items[2].Ordinal = 4 }},
		{"duplicate scale score", func(i *Instrument) { i.Scale[1].Score = 0 }},
		{"negative scale score", func(i *Instrument) { i.Scale[0].Score = -1 }},
		{"no bands", func(i *Instrument) { i.Bands = nil }},
		{"gap between bands", func(i *Instrument) { i.Bands[1].Lower = 4 }},
		{"overlapping bands", func(i *Instrument) { i.Bands[1].Lower = 2 }},
		{"bands not starting at zero", func(i *Instrument) { i.Bands[0].Lower = 1 }},
		{"bands short of maximum", func(i *Instrument) { i.Bands[2].Upper = 8 }},
		{"bands beyond maximum", func(i *Instrument) { i.Bands[2].Upper = 10 }},
		{"inverted band", func(i *Instrument) { i.Bands[1] = SeverityBand{Lower: 5, Upper: 3, Label: "Mid"} }},
		{"unlabelled band", func(i *Instrument) { i.Bands[1].Label = "" }},
		{"domain with unknown item", func(i *Instrument) { i.Domains[0].Items = []int{1, 7} }},
		{"duplicate domain", func(i *Instrument) { i.Domains = append(i.Domains, i.Domains[0]) }},
		{"rule with unknown item", func(i *Instrument) { i.Rules[1].Item = 12 }},
		{"duplicate flag", func(i *Instrument) { i.Rules[1].Flag = "elevated" }},
		{"supplementary without options", func(i *Instrument) {
			i.Supplementary = []SupplementaryQuestion{{Key: "difficulty"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := testInstrument()
			tt.mutate(&def)

			inst, err := NewInstrument(def)
			assert.Nil(t, inst)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
		})
	}
}

func TestClassify_CoversEveryTotal(t *testing.T) {
	inst, err := NewInstrument(testInstrument())
	require.NoError(t, err)

	for total := 0; total <= inst.MaxTotal(); total++ {
		matches := 0
		for _, b := range inst.Bands {
			if b.Contains(total) {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "total %d must fall in exactly one band", total)

		band, ok := inst.Classify(total)
		require.True(t, ok)
		assert.True(t, band.Contains(total))
	}

	_, ok := inst.Classify(-1)
	assert.False(t, ok)
	_, ok = inst.Classify(inst.MaxTotal() + 1)
	assert.False(t, ok)
}

func TestClassify_InclusiveBounds(t *testing.T) {
	inst, err := NewInstrument(testInstrument())
	require.NoError(t, err)

	tests := []struct {
		total int
		label string
	}{
		{0, "Low"}, {2, "Low"}, {3, "Mid"}, {5, "Mid"}, {6, "High"}, {9, "High"},
	}
	for _, tt := range tests {
		band, ok := inst.Classify(tt.total)
		require.True(t, ok)
		assert.Equal(t, tt.label, band.Label, "total %d", tt.total)
	}
}

func TestFlags(t *testing.T) {
	inst, err := NewInstrument(testInstrument())
	require.NoError(t, err)

	complete := Responses{1: 3, 2: 3, 3: 0}
	flags := inst.Flags(6, complete, true)
	assert.True(t, flags["elevated"])
	assert.False(t, flags["item_three"])

	flags = inst.Flags(6, Responses{1: 3, 2: 3}, false)
	assert.False(t, flags["elevated"], "total based flags wait for a complete set")
	assert.False(t, flags["item_three"])

	flags = inst.Flags(8, Responses{1: 3, 2: 3, 3: 2}, true)
	assert.True(t, flags["elevated"])
	assert.True(t, flags["item_three"])

	flags = inst.Flags(2, Responses{3: 2}, false)
	assert.True(t, flags["item_three"], "item based flags fire once the item is answered")
}

func TestDomainScores(t *testing.T) {
	inst, err := NewInstrument(testInstrument())
	require.NoError(t, err)

	scores := inst.DomainScores(Responses{1: 2, 3: 3})
	assert.Equal(t, map[string]int{"first_two": 2}, scores)
	assert.Equal(t, map[string]int{"first_two": 6}, inst.DomainMax())
}

func TestMissing(t *testing.T) {
	inst, err := NewInstrument(testInstrument())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, inst.Missing(Responses{}))
	assert.Equal(t, []int{2}, inst.Missing(Responses{1: 0, 3: 0}))
	assert.Empty(t, inst.Missing(Responses{1: 0, 2: 0, 3: 0}))
}
