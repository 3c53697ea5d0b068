package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// LatLng is a WGS84 coordinate pair in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Value serializes the coordinate to JSON.
func (l *LatLng) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan decodes JSONB into the coordinate struct.
func (l *LatLng) Scan(value interface{}) error {
	if value == nil {
		*l = LatLng{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, l)
}

// TimedLatLng is a coordinate with the moment it was reported.
type TimedLatLng struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	ReportedAt time.Time `json:"reported_at"`
}

// Value serializes the timed coordinate to JSON.
func (l *TimedLatLng) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan decodes JSONB into the timed coordinate struct.
func (l *TimedLatLng) Scan(value interface{}) error {
	if value == nil {
		*l = TimedLatLng{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, l)
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
