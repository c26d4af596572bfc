package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "fine", "fine"},
		{"crlf", "line one\r\nline two", "line one line two"},
		{"lone cr and lf", "a\rb\nc", "a b c"},
		{"delimiter removed", "red, green, blue", "red green blue"},
		{"trimmed", "  padded \n", "padded"},
		{"separator kept", "a=b", "a=b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestJoinKV(t *testing.T) {
	got := JoinKV([]KV{
		{Key: "name", Value: "Kim, Minsu"},
		{Key: "note", Value: "x=y"},
		{Key: "bad=key", Value: "1"},
	})
	assert.Equal(t, "name=Kim Minsu,note=x=y,badkey=1", got)
}

func TestJoinMap_SortsKeys(t *testing.T) {
	got := JoinMap(map[string]int{"somatic": 4, "cognitive_affective": 7})
	assert.Equal(t, "cognitive_affective=7,somatic=4", got)
	assert.Equal(t, "", JoinMap(map[string]bool{}))
}

func TestSplitKV(t *testing.T) {
	pairs, err := SplitKV("name=Kim Minsu,note=x=y,empty=")
	require.NoError(t, err)
	assert.Equal(t, []KV{
		{Key: "name", Value: "Kim Minsu"},
		{Key: "note", Value: "x=y"},
		{Key: "empty", Value: ""},
	}, pairs)

	pairs, err = SplitKV("   ")
	require.NoError(t, err)
	assert.Nil(t, pairs)

	_, err = SplitKV("name=ok,broken")
	assert.Error(t, err)
}

func TestSplitMap(t *testing.T) {
	m, err := SplitMap(JoinMap(map[string]string{"b": "2", "a": "1"}))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, m)
}
