package stats

import (
	"encoding/json"
	"fmt"
)

// recordDoc is the wire shape of one aggregate in the persisted document
// and in query responses.
type recordDoc struct {
	TotalLength Uint128 `json:"total_length"`
	TotalCount  Uint128 `json:"total_count"`
}

// MarshalJSON serializes the table as a flat JSON object keyed by the
// textual pair form, e.g.
//
//	{"10.0.0.1 -> 10.0.0.2": {"total_length": 150, "total_count": 2}}
func (t Table) MarshalJSON() ([]byte, error) {
	doc := make(map[string]recordDoc, len(t))
	for pair, rec := range t {
		doc[pair.String()] = recordDoc{
			TotalLength: rec.TotalLength,
			TotalCount:  rec.TotalCount,
		}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON parses a persisted document back into a table. Any
// malformed key or counter fails the whole document; the persisted file is
// replaced atomically, so a partially valid document means corruption, not
// a torn write.
func (t *Table) UnmarshalJSON(data []byte) error {
	var doc map[string]recordDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	table := make(Table, len(doc))
	for key, rec := range doc {
		pair, err := ParsePair(key)
		if err != nil {
			return err
		}
		if _, dup := table[pair]; dup {
			return fmt.Errorf("duplicate pair key %q", key)
		}
		table[pair] = Record{
			TotalLength: rec.TotalLength,
			TotalCount:  rec.TotalCount,
		}
	}

	*t = table
	return nil
}
