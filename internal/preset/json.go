package preset

import (
	"encoding/json"
	"fmt"
)

// ToJSON renders p with four-space indentation. The magic and checksum are
// not part of the export.
func (p *Preset) ToJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "    ")
}

// FromJSON builds a preset from an export. Keys that are missing keep their
// Default values, unknown keys are ignored. A JSON array shorter than the
// field it fills leaves the remaining elements zero.
func FromJSON(data []byte) (*Preset, error) {
	p := Default()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing preset JSON: %w", err)
	}
	return p, nil
}
