package types

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
)

// Address is the postal address snapshot stored on orders and shipments.
// Coordinates are optional; geo-aware features degrade when they are absent.
type Address struct {
	Street      string  `json:"street"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	PostalCode  string  `json:"postal_code"`
	Country     string  `json:"country,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Coordinates *LatLng `json:"coordinates,omitempty"`
}

// Complete reports whether the mandatory postal fields are present.
func (a Address) Complete() bool {
	return strings.TrimSpace(a.Street) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.State) != "" &&
		strings.TrimSpace(a.PostalCode) != ""
}

// Value serializes the address snapshot to JSON.
func (a *Address) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan decodes JSONB into the address struct.
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, a)
}
