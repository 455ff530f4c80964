package compat

import (
	"sort"

	"github.com/google/go-cmp/cmp"

	"github.com/scriptshift/scriptshift/core/value"
)

// Compare judges two result envelopes under the canonicalization policy:
// mapping fields compare unordered by key, sequences compare positionally
// unless their field path is annotated unordered. Returns the structural
// diff on mismatch.
func Compare(legacy, converted value.Value, unordered []string) (bool, string) {
	ann := make(map[string]bool, len(unordered))
	for _, p := range unordered {
		ann[p] = true
	}

	diff := cmp.Diff(canonical(legacy, "", ann), canonical(converted, "", ann))
	return diff == "", diff
}

// canonical lowers an envelope into plain Go shapes for diffing: maps compare
// unordered naturally, slices positionally. A sequence at an annotated path
// is sorted by its elements' stable rendering first, making the comparison
// order-insensitive. Elements of a sequence inherit the sequence's path, so
// "rows.tags" annotates the tags field of every row.
func canonical(v value.Value, path string, unordered map[string]bool) any {
	switch v.Kind {
	case value.KindNull:
		return nil
	case value.KindScalar:
		return canonicalScalar(v)
	case value.KindMapping:
		out := make(map[string]any, len(v.Map))
		for k, item := range v.Map {
			out[k] = canonical(item, childPath(path, k), unordered)
		}
		return out
	case value.KindSequence:
		items := v.Seq
		if unordered[path] {
			items = append([]value.Value(nil), items...)
			sort.Slice(items, func(a, b int) bool {
				return items[a].String() < items[b].String()
			})
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = canonical(item, path, unordered)
		}
		return out
	default:
		return nil
	}
}

func canonicalScalar(v value.Value) any {
	switch v.Scalar {
	case value.ScalarString:
		return v.Str
	case value.ScalarInt:
		return v.Int
	case value.ScalarSize:
		return sizeScalar(v.Int)
	case value.ScalarFloat:
		return v.Float
	case value.ScalarBool:
		return v.Bool
	case value.ScalarBytes:
		return bytesScalar(v.Bytes)
	case value.ScalarDuration:
		return v.Dur
	default:
		return nil
	}
}

// sizeScalar and bytesScalar keep unit-tagged scalars distinct from plain
// integers and strings in the diff.
type sizeScalar int64

type bytesScalar string

func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
