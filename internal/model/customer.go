package model

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/rotisserie/eris"
)

// CustomerID identifies a customer across every source table. Identifiers are
// compared with plain string equality; no trimming or case folding is applied.
type CustomerID string

// String returns the identifier as a plain string.
func (id CustomerID) String() string { return string(id) }

// UnmarshalJSON accepts a JSON string or an integral JSON number. Numbers are
// normalized to their decimal text so 789012 and "789012" compare equal.
func (id *CustomerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = CustomerID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrapf(err, "customer id: %s", data)
	}
	f, ok := new(big.Float).SetPrec(256).SetString(n.String())
	if !ok || !f.IsInt() {
		return eris.Errorf("customer id: %s is not an integer", data)
	}
	*id = CustomerID(f.Text('f', 0))
	return nil
}

// ParseCustomerIDs splits a comma, semicolon or whitespace separated list of
// identifiers. Empty tokens are dropped and duplicates keep their first position.
func ParseCustomerIDs(raw string) []CustomerID {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	ids := make([]CustomerID, 0, len(fields))
	for _, f := range fields {
		ids = append(ids, CustomerID(f))
	}
	return UniqueIDs(ids)
}

// UniqueIDs removes empty and repeated identifiers, preserving order.
func UniqueIDs(ids []CustomerID) []CustomerID {
	seen := make(map[CustomerID]struct{}, len(ids))
	out := make([]CustomerID, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// IDSet builds a membership set from a list of identifiers.
func IDSet(ids []CustomerID) map[CustomerID]struct{} {
	set := make(map[CustomerID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// IDStrings converts identifiers to plain strings, e.g. for log fields.
func IDStrings(ids []CustomerID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
