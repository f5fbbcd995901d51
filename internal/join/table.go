// Package join parses CSV join tables and correlates them against feature
// properties, coloring matches from a fixed ten step ramp.
package join

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Table is a parsed join table. The first header cell names the feature
// property to match on; the second labels the joined value. Values keep
// their raw cell text; typing happens at correlation time.
type Table struct {
	KeyField   string
	ValueLabel string
	Values     map[string]string
}

// ParseTable reads a two column CSV join table. Rows missing a value cell
// are skipped with a warning.
func ParseTable(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse join table: %w", err)
	}
	if len(records) == 0 || len(records[0]) < 2 {
		return nil, errors.New("join table needs a key column and a value column")
	}
	t := &Table{
		KeyField:   strings.TrimSpace(records[0][0]),
		ValueLabel: strings.TrimSpace(records[0][1]),
		Values:     make(map[string]string, len(records)-1),
	}
	for i, rec := range records[1:] {
		if len(rec) < 2 {
			log.WithField("row", i+2).Warn("join table row has no value cell, skipped")
			continue
		}
		t.Values[strings.TrimSpace(rec[0])] = strings.TrimSpace(rec[1])
	}
	return t, nil
}
