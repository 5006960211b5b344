package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`) //nolint:gochecknoglobals // compiled once

func checkIdentifier(name string) error {
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// decodeRows parses JSON objects into column maps. It returns the sorted
// union of column names; a row lacking a column writes NULL to it.
func decodeRows(rows []json.RawMessage, conflictKey string) ([]map[string]any, []string, error) {
	if err := checkIdentifier(conflictKey); err != nil {
		return nil, nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	seen := make(map[string]struct{})
	for i, raw := range rows {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return nil, nil, fmt.Errorf("%w: row %d: %w", ErrInvalidRow, i, err)
		}
		if m == nil {
			return nil, nil, fmt.Errorf("%w: row %d is null", ErrInvalidRow, i)
		}
		if v, ok := m[conflictKey]; !ok || v == nil {
			return nil, nil, fmt.Errorf("%w: row %d has no %s", ErrInvalidRow, i, conflictKey)
		}
		for k, v := range m {
			if _, ok := seen[k]; !ok {
				if err := checkIdentifier(k); err != nil {
					return nil, nil, err
				}
				seen[k] = struct{}{}
			}
			nv, err := columnValue(v)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: row %d column %s: %w", ErrInvalidRow, i, k, err)
			}
			m[k] = nv
		}
		out = append(out, m)
	}

	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	for _, m := range out {
		for _, c := range columns {
			if _, ok := m[c]; !ok {
				m[c] = nil
			}
		}
	}
	return out, columns, nil
}

// columnValue converts a decoded JSON value into a SQL parameter.
func columnValue(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		return x.Float64()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return x, nil
	}
}

// encodeRow renders a scanned row as a JSON object.
func encodeRow(columns []string, values []any) (json.RawMessage, error) {
	m := make(map[string]any, len(columns))
	for i, c := range columns {
		m[c] = jsonValue(values[i])
	}
	return json.Marshal(m)
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return x
	}
}

// updateColumns returns the columns replaced on conflict.
func updateColumns(columns []string, conflictKey string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if c != conflictKey {
			out = append(out, c)
		}
	}
	return out
}
