// Package export turns export records into their document, tabular and
// compact forms and parses them back.
package export

import (
	"fmt"
	"sort"
	"strings"
)

// Reserved characters of the key=value join.
const (
	Delimiter = ","
	Separator = "="
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Sanitize makes a value safe for a flat cell: line breaks become spaces,
// the delimiter is removed and surrounding space is trimmed.
func Sanitize(value string) string {
	v := lineBreaks.Replace(value)
	v = strings.ReplaceAll(v, Delimiter, "")
	return strings.TrimSpace(v)
}

// sanitizeKey additionally strips the separator.
func sanitizeKey(key string) string {
	return strings.ReplaceAll(Sanitize(key), Separator, "")
}

// KV is one key=value pair.
type KV struct {
	Key   string
	Value string
}

// JoinKV renders pairs as k=v joined by the delimiter, in the given order.
func JoinKV(pairs []KV) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, sanitizeKey(p.Key)+Separator+Sanitize(p.Value))
	}
	return strings.Join(parts, Delimiter)
}

// JoinMap renders a map with keys in sorted order.
func JoinMap[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]KV, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, KV{Key: k, Value: fmt.Sprint(m[k])})
	}
	return JoinKV(pairs)
}

// SplitKV parses a JoinKV string. Values may contain the separator; only the
// first one splits key from value.
func SplitKV(s string) ([]KV, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, Delimiter)
	pairs := make([]KV, 0, len(parts))
	for _, part := range parts {
		k, v, ok := strings.Cut(part, Separator)
		if !ok {
			return nil, fmt.Errorf("malformed pair %q", part)
		}
		pairs = append(pairs, KV{Key: k, Value: v})
	}
	return pairs, nil
}

// SplitMap parses a JoinKV string into a map.
func SplitMap(s string) (map[string]string, error) {
	pairs, err := SplitKV(s)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.Key] = p.Value
	}
	return out, nil
}
