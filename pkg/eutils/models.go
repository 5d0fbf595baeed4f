package eutils

import (
	"encoding/json"
	"fmt"
)

type esearchResponse struct {
	Result esearchResult `json:"esearchresult"`
}

// esearchResult reports count as a decimal string
type esearchResult struct {
	Count    string `json:"count"`
	WebEnv   string `json:"webenv"`
	QueryKey string `json:"querykey"`
}

type elinkResponse struct {
	LinkSets []linkSet `json:"linksets"`
}

type linkSet struct {
	LinkSetDBs []linkSetDB `json:"linksetdbs"`
}

type linkSetDB struct {
	LinkName string     `json:"linkname"`
	Links    []linkedID `json:"links"`
}

// linkedID accepts both "123" and {"id": "123"} link forms
type linkedID string

func (l *linkedID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = linkedID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*l = linkedID(n.String())
		return nil
	}

	var obj struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unrecognised link %s: %w", data, err)
	}
	if len(obj.ID) == 0 {
		*l = ""
		return nil
	}
	return l.UnmarshalJSON(obj.ID)
}
