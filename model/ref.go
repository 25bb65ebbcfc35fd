package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Ref is a relation field. Depending on whether the backend populated the
// relation, it arrives either as a bare identifier ("42" or 42) or as an
// object carrying at least an id and usually a name. Both shapes decode into
// the same Ref; Name is empty when only the id was sent.
type Ref struct {
	ID   string
	Name string
}

// DisplayName returns the populated name when present, falling back to the
// raw id so lists never render blank cells.
func (r Ref) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// IsZero reports whether the relation is absent.
func (r Ref) IsZero() bool { return r.ID == "" && r.Name == "" }

func (r *Ref) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("model: empty ref")
	}
	switch b[0] {
	case 'n': // null
		*r = Ref{}
		return nil
	case '"':
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	case '{':
		var obj struct {
			ID      json.RawMessage `json:"id"`
			MongoID json.RawMessage `json:"_id"`
			Name    string          `json:"name"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		id, err := decodeID(obj.ID)
		if err != nil {
			return err
		}
		if id == "" {
			if id, err = decodeID(obj.MongoID); err != nil {
				return err
			}
		}
		*r = Ref{ID: id, Name: obj.Name}
		return nil
	default:
		// bare number id
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("model: unsupported ref shape: %w", err)
		}
		*r = Ref{ID: n.String()}
		return nil
	}
}

// decodeID accepts a string or numeric id field.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("model: unsupported id shape: %w", err)
	}
	return n.String(), nil
}

// MarshalJSON always emits the bare id: mutations send references, never
// embedded objects.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.ID == "" {
		return []byte("null"), nil
	}
	return strconv.AppendQuote(nil, r.ID), nil
}
