package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *ResponseStore {
	t.Helper()
	inst, err := NewInstrument(testInstrument())
	require.NoError(t, err)
	return NewResponseStore(inst, nil, nil)
}

func TestResponseStore_SetAndGet(t *testing.T) {
	store := newStore(t)

	_, ok := store.Get(1)
	assert.False(t, ok, "unanswered items are absent")

	require.NoError(t, store.Set(1, 2))
	score, ok := store.Get(1)
	assert.True(t, ok)
	assert.Equal(t, 2, score)

	require.NoError(t, store.Set(1, 0))
	score, ok = store.Get(1)
	assert.True(t, ok, "zero is a real answer")
	assert.Equal(t, 0, score)
	assert.Equal(t, 1, store.AnsweredCount())
}

func TestResponseStore_InvalidScoreLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name    string
		ordinal int
		score   int
	}{
		{"above scale", 1, 4},
		{"below scale", 1, -1},
		{"unknown item", 9, 1},
		{"zero ordinal", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			require.NoError(t, store.Set(1, 3))

			err := store.Set(tt.ordinal, tt.score)
			var invalid *InvalidScoreError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.ordinal, invalid.Ordinal)

			score, ok := store.Get(1)
			assert.True(t, ok)
			assert.Equal(t, 3, score)
			assert.Equal(t, 1, store.AnsweredCount())
		})
	}
}

func TestResponseStore_Missing(t *testing.T) {
	store := newStore(t)
	assert.Equal(t, []int{1, 2, 3}, store.Missing())

	require.NoError(t, store.Set(2, 1))
	assert.Equal(t, []int{1, 3}, store.Missing())

	require.NoError(t, store.Clear(2))
	assert.Equal(t, []int{1, 2, 3}, store.Missing())
	assert.Equal(t, 0, store.AnsweredCount())
}

func TestResponseStore_DoesNotAliasInput(t *testing.T) {
	inst, err := NewInstrument(testInstrument())
	require.NoError(t, err)

	answers := Responses{1: 1}
	store := NewResponseStore(inst, answers, nil)
	require.NoError(t, store.Set(2, 2))

	assert.Len(t, answers, 1)
	out := store.Answers()
	out[3] = 3
	_, ok := store.Get(3)
	assert.False(t, ok)
}

func TestResponseStore_Annotate(t *testing.T) {
	def := testInstrument()
	def.ItemAnnotations = true
	inst, err := NewInstrument(def)
	require.NoError(t, err)
	store := NewResponseStore(inst, nil, nil)

	require.NoError(t, store.Annotate(1, Annotation{Functionality: " y ", Comment: " works "}))
	assert.Equal(t, Annotation{Functionality: "Y", Comment: "works"}, store.Annotations()[1])

	err = store.Annotate(1, Annotation{Functionality: "maybe"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "functionality", verr.Field)

	require.NoError(t, store.Annotate(1, Annotation{}))
	assert.NotContains(t, store.Annotations(), 1)
}

func TestResponseStore_AnnotateUnsupported(t *testing.T) {
	store := newStore(t)
	err := store.Annotate(1, Annotation{Comment: "x"})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}
