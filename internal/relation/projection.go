// Package relation defines the projection model shared by the ingestion and
// deduplication stages, plus helpers for turning source headers into usable
// column identifiers.
//
// A Projection is an ordered list of (expression, optional alias) pairs. The
// JSON wire format mirrors the pipeline config files:
//
//	[["x", null], ["count(*)", "n"]]
//
// The same value type serves two roles:
//
//   - Ingestion: each expression is a plain column reference resolved against
//     a source unit's header. An empty projection means "all columns".
//   - Deduplication: entry 0 is the grouping key; the remaining entries are
//     SQL aggregate/combinator expressions evaluated by the backing store.
package relation

import (
	"encoding/json"
	"fmt"
)

// Entry is a single projected column: an expression and an optional alias.
type Entry struct {
	Expression string
	Alias      string
}

// OutputColumn returns the name this entry contributes to the output schema:
// the alias when present, otherwise the expression itself.
func (e Entry) OutputColumn() string {
	if e.Alias != "" {
		return e.Alias
	}
	return e.Expression
}

// Projection is an ordered, immutable list of projected columns. Callers must
// not mutate a Projection after handing it to the engine; it is shared by
// reference across concurrently running workers.
type Projection []Entry

// Empty reports whether the projection selects all columns unmodified.
func (p Projection) Empty() bool { return len(p) == 0 }

// SelectList renders each entry as a SQL select-list item ("expr" or
// "expr AS alias"). Expressions and aliases are emitted verbatim; quoting
// identifiers inside expressions is the caller's responsibility, exactly as
// in the projection files this engine is driven by.
func (p Projection) SelectList() []string {
	items := make([]string, len(p))
	for i, e := range p {
		if e.Alias != "" {
			items[i] = e.Expression + " AS " + e.Alias
			continue
		}
		items[i] = e.Expression
	}
	return items
}

// OutputColumns returns the output column name of every entry, in order.
func (p Projection) OutputColumns() []string {
	cols := make([]string, len(p))
	for i, e := range p {
		cols[i] = e.OutputColumn()
	}
	return cols
}

// Resolve maps the projection onto a source unit's header for the ingestion
// stage. Each expression must name a column present in the header (matched
// after NormalizeColumn on both sides). It returns the output column names
// and, for each, the index of the source column it reads from.
//
// An empty projection resolves to the full header in source order.
func (p Projection) Resolve(header []string) (cols []string, idx []int, err error) {
	normalized := make([]string, len(header))
	byName := make(map[string]int, len(header))
	for i, h := range header {
		n := NormalizeColumn(h)
		normalized[i] = n
		if prev, dup := byName[n]; dup {
			return nil, nil, fmt.Errorf("duplicate column %q (positions %d and %d)", n, prev, i)
		}
		byName[n] = i
	}

	if p.Empty() {
		idx = make([]int, len(header))
		for i := range idx {
			idx[i] = i
		}
		return normalized, idx, nil
	}

	cols = make([]string, len(p))
	idx = make([]int, len(p))
	for i, e := range p {
		j, ok := byName[NormalizeColumn(e.Expression)]
		if !ok {
			return nil, nil, fmt.Errorf("column %q not found in source header", e.Expression)
		}
		idx[i] = j
		if e.Alias != "" {
			cols[i] = NormalizeColumn(e.Alias)
		} else {
			cols[i] = normalized[j]
		}
	}
	return cols, idx, nil
}

// UnmarshalJSON decodes the [["expr", "alias"|null], ...] pair format.
func (p *Projection) UnmarshalJSON(data []byte) error {
	var pairs [][]*string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("projection: %w", err)
	}
	out := make(Projection, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) < 1 || len(pair) > 2 {
			return fmt.Errorf("projection[%d]: want [expression, alias?], got %d elements", i, len(pair))
		}
		if pair[0] == nil || *pair[0] == "" {
			return fmt.Errorf("projection[%d]: expression must not be empty", i)
		}
		e := Entry{Expression: *pair[0]}
		if len(pair) == 2 && pair[1] != nil {
			e.Alias = *pair[1]
		}
		out = append(out, e)
	}
	*p = out
	return nil
}

// MarshalJSON encodes back into the pair format so configs round-trip.
func (p Projection) MarshalJSON() ([]byte, error) {
	pairs := make([][]*string, len(p))
	for i, e := range p {
		expr := e.Expression
		pair := []*string{&expr, nil}
		if e.Alias != "" {
			alias := e.Alias
			pair[1] = &alias
		}
		pairs[i] = pair
	}
	return json.Marshal(pairs)
}

// Parse decodes a projection from its JSON pair format. A nil result means
// "all columns" (empty projection).
func Parse(text string) (Projection, error) {
	if text == "" {
		return nil, nil
	}
	var p Projection
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, err
	}
	return p, nil
}
