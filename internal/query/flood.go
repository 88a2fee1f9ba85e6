package query

import (
	"bytes"
	"encoding/json"

	"safetynet/pkg/domain"
)

// FloodHousehold is one address group of a flood result.
type FloodHousehold struct {
	Address   string            `json:"address"`
	Residents []MedicalResident `json:"residents"`
}

// FloodResult maps address to residents, keeping the order in which the
// addresses were resolved. It encodes as a JSON object.
type FloodResult struct {
	Households []FloodHousehold
}

// Flood joins the residents of every household. A repeated address keeps
// only its first group, so nobody is listed twice.
func Flood(households []Household, records Records, today domain.Date) FloodResult {
	out := FloodResult{Households: []FloodHousehold{}}
	pos := make(map[string]int, len(households))
	for _, h := range households {
		if _, ok := pos[h.Address]; ok {
			continue
		}
		pos[h.Address] = len(out.Households)
		out.Households = append(out.Households, FloodHousehold{
			Address:   h.Address,
			Residents: medicalResidents(h.Residents, records, today),
		})
	}
	return out
}

// Residents returns the group for address.
func (f FloodResult) Residents(address string) ([]MedicalResident, bool) {
	for _, h := range f.Households {
		if h.Address == address {
			return h.Residents, true
		}
	}
	return nil, false
}

// MarshalJSON writes {"<address>": [...], ...} in resolution order.
func (f FloodResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, h := range f.Households {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(h.Address)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(h.Residents)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
