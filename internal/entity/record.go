package entity

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/simas-gestao/simas/internal/apperrors"
)

// Record is one row keyed by column name. Values are strings or nil.
type Record map[string]any

// String returns the value of col, or "" when it is NULL or missing.
func (r Record) String(col string) string {
	if s, ok := r[col].(string); ok {
		return s
	}
	return ""
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Normalize keeps the whitelisted columns of input and coerces every value
// to a string or nil. Unknown keys are ignored.
func Normalize(def *Definition, input map[string]any) (Record, error) {
	out := make(Record, len(input))
	for col, raw := range input {
		if !def.HasColumn(col) {
			continue
		}
		v, err := normalizeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: campo %s: %v", apperrors.ErrValidation, col, err)
		}
		out[col] = v
	}
	return out, nil
}

func normalizeValue(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		if v.Equal(v.Truncate(24 * time.Hour)) {
			return v.UTC().Format(time.DateOnly), nil
		}
		return v.UTC().Format(DateTimeLayout), nil
	default:
		return nil, fmt.Errorf("tipo de valor não suportado %T", raw)
	}
}

// StringValue coerces raw the way Normalize does and returns it as a
// string. NULL and unsupported values yield "".
func StringValue(raw any) string {
	v, err := normalizeValue(raw)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Equal reports whether two normalized values are the same. NULL and the
// empty string are distinct.
func Equal(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		return a == nil && b == nil
	}
	return as == bs
}

// Diff returns the columns whose values differ between before and after,
// considering every column present in either record.
func Diff(before, after Record) []string {
	seen := make(map[string]bool, len(before)+len(after))
	var changed []string
	for _, r := range []Record{before, after} {
		for col := range r {
			if seen[col] {
				continue
			}
			seen[col] = true
			if !Equal(before[col], after[col]) {
				changed = append(changed, col)
			}
		}
	}
	slices.Sort(changed)
	return changed
}
