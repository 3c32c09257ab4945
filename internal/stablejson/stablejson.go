// Package stablejson emits deterministic JSON text for arbitrary decoded
// values, sorting object keys ascending at every nesting level so that two
// structurally equal values always produce byte-identical text. The
// planner's stringifyArgs and the canonical connection engine's identity
// keys both depend on this determinism.
package stablejson

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Marshal returns the stable JSON encoding of v. v must be built from the
// types produced by encoding/json.Unmarshal into interface{} (map[string]any,
// []any, string, float64/json.Number, bool, nil) plus int/int64/float64
// literals produced directly by callers.
func Marshal(v interface{}) string {
	var b strings.Builder
	write(&b, v)
	return b.String()
}

func write(b *strings.Builder, v interface{}) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		writeString(b, t)
	case json.Number:
		b.WriteString(t.String())
	case int:
		b.WriteString(strconv.Itoa(t))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		writeFloat(b, t)
	case map[string]interface{}:
		writeObject(b, t)
	case []interface{}:
		writeArray(b, t)
	default:
		// Fallback for any other concrete type: defer to encoding/json and
		// trust its output is already deterministic for the value's shape
		// (e.g. []string).
		raw, err := json.Marshal(t)
		if err != nil {
			fmt.Fprintf(b, "%q", fmt.Sprintf("%v", t))
			return
		}
		b.Write(raw)
	}
}

func writeFloat(b *strings.Builder, f float64) {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		b.WriteString(strconv.FormatInt(int64(f), 10))
		return
	}
	b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}

func writeString(b *strings.Builder, s string) {
	raw, _ := json.Marshal(s)
	b.Write(raw)
}

func writeObject(b *strings.Builder, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeString(b, k)
		b.WriteByte(':')
		write(b, m[k])
	}
	b.WriteByte('}')
}

func writeArray(b *strings.Builder, a []interface{}) {
	b.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		write(b, v)
	}
	b.WriteByte(']')
}
