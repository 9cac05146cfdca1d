// Package artifact caches expensive derived artifacts (chart
// specifications, textual insights) keyed by a coarse content fingerprint
// of the result set they were derived from.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Kind identifies an artifact family. A fingerprint can hold one live
// entry per kind.
type Kind string

const (
	// KindChart is a generated chart specification (ECharts JSON).
	KindChart Kind = "chart"

	// KindInsights is a generated textual-insights document.
	KindInsights Kind = "insights"
)

// Column describes one result-set column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ResultSet is the tabular query output an artifact is derived from.
type ResultSet struct {
	Columns []Column         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Sample returns up to n leading rows. The slice aliases rs.Rows.
func (rs ResultSet) Sample(n int) []map[string]any {
	if n < 0 {
		n = 0
	}
	if n > len(rs.Rows) {
		n = len(rs.Rows)
	}
	return rs.Rows[:n]
}

// ColumnNames returns the column names in order.
func (rs ResultSet) ColumnNames() []string {
	names := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		names[i] = c.Name
	}
	return names
}

// fingerprintSampleRows is how many leading rows feed the fingerprint.
const fingerprintSampleRows = 3

// Fingerprint is a deterministic, coarse digest of a result set's shape:
// column names, row count, and a small leading sample of rows, not the
// full data. Two structurally identical result sets with different tails
// collide on purpose; see Cache for the trade-off.
type Fingerprint string

// FingerprintResultSet computes the fingerprint. scope, when non-empty,
// isolates cache entries between callers (e.g. a session key); entries
// must not leak across sessions.
func FingerprintResultSet(rs ResultSet, scope string) Fingerprint {
	sample := rs.Rows
	if len(sample) > fingerprintSampleRows {
		sample = sample[:fingerprintSampleRows]
	}

	// encoding/json sorts map keys, so the serialization is
	// deterministic for equal inputs.
	payload, err := json.Marshal(struct {
		Scope    string           `json:"scope,omitempty"`
		Columns  []string         `json:"columns"`
		RowCount int              `json:"row_count"`
		Sample   []map[string]any `json:"sample"`
	}{
		Scope:    scope,
		Columns:  rs.ColumnNames(),
		RowCount: len(rs.Rows),
		Sample:   sample,
	})
	if err != nil {
		// Only unmarshalable values (chan, func) can land here; result
		// rows decoded from JSON never do. Degrade to a shape-only key.
		payload = fmt.Appendf(nil, "%s|%v|%d", scope, rs.ColumnNames(), len(rs.Rows))
	}

	sum := sha256.Sum256(payload)
	return Fingerprint(hex.EncodeToString(sum[:]))
}
