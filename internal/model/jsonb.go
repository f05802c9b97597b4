package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSONB unmarshals a JSONB column into dest, treating NULL as empty.
func scanJSONB(src any, dest any) error {
	if src == nil {
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

func (l *ReceiptList) Scan(src any) error {
	return scanJSONB(src, l)
}

func (l ReceiptList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *ReactionList) Scan(src any) error {
	return scanJSONB(src, l)
}

func (l ReactionList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}
