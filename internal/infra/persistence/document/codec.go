// Package document encodes the dataset as the single JSON document stored by
// every durable driver. Station numbers are integers in the domain; the codec
// writes JSON numbers and accepts numbers or numeric strings when reading.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"safetynet/internal/infra/persistence/memory"
	"safetynet/pkg/domain"
)

// Bucket names used as top-level document keys and as SQL/KV row keys.
const (
	BucketResidents          = "residents"
	BucketStationAssignments = "stationAssignments"
	BucketMedicalRecords     = "medicalRecords"
)

// Buckets lists the bucket names in document order.
var Buckets = []string{BucketResidents, BucketStationAssignments, BucketMedicalRecords}

// legacy top-level names accepted on read only.
var bucketAliases = map[string]string{
	"persons":        BucketResidents,
	"firestations":   BucketStationAssignments,
	"medicalrecords": BucketMedicalRecords,
}

// ErrMalformed wraps every decode failure.
var ErrMalformed = errors.New("malformed document")

type wireStation struct {
	Address string        `json:"address"`
	Station stationNumber `json:"station"`
}

type stationNumber int

func (n stationNumber) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(n))), nil
}

func (n *stationNumber) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return fmt.Errorf("station number is null")
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("station number %s: %w", raw, err)
	}
	*n = stationNumber(v)
	return nil
}

type wireDocument struct {
	Residents          []domain.Resident      `json:"residents"`
	StationAssignments []wireStation          `json:"stationAssignments"`
	MedicalRecords     []domain.MedicalRecord `json:"medicalRecords"`
}

// Encode renders the snapshot as an indented JSON document.
func Encode(s memory.Snapshot) ([]byte, error) {
	doc := wireDocument{
		Residents:          nonNil(s.Residents),
		StationAssignments: toWireStations(s.StationAssignments),
		MedicalRecords:     nonNil(s.MedicalRecords),
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(out, '\n'), nil
}

// Decode parses a full document. Unknown top-level keys are ignored; the
// legacy names persons, firestations and medicalrecords are accepted.
func Decode(data []byte) (memory.Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return memory.Snapshot{}, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return memory.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var s memory.Snapshot
	for key, payload := range raw {
		bucket := key
		if alias, ok := bucketAliases[key]; ok {
			bucket = alias
		}
		if !isBucket(bucket) {
			continue
		}
		if err := DecodeBucket(&s, bucket, payload); err != nil {
			return memory.Snapshot{}, err
		}
	}
	return s, nil
}

// EncodeBuckets renders each collection as its own JSON array keyed by bucket name.
func EncodeBuckets(s memory.Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case BucketResidents:
			data, err = json.Marshal(nonNil(s.Residents))
		case BucketStationAssignments:
			data, err = json.Marshal(toWireStations(s.StationAssignments))
		case BucketMedicalRecords:
			data, err = json.Marshal(nonNil(s.MedicalRecords))
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBucket decodes one bucket payload into the matching snapshot field.
func DecodeBucket(s *memory.Snapshot, bucket string, payload []byte) error {
	if len(bytes.TrimSpace(payload)) == 0 || string(bytes.TrimSpace(payload)) == "null" {
		return nil
	}
	var err error
	switch bucket {
	case BucketResidents:
		err = json.Unmarshal(payload, &s.Residents)
	case BucketStationAssignments:
		var stations []wireStation
		if err = json.Unmarshal(payload, &stations); err == nil {
			s.StationAssignments = fromWireStations(stations)
		}
	case BucketMedicalRecords:
		err = json.Unmarshal(payload, &s.MedicalRecords)
	default:
		return fmt.Errorf("%w: unknown bucket %q", ErrMalformed, bucket)
	}
	if err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformed, bucket, err)
	}
	return nil
}

func isBucket(name string) bool {
	for _, b := range Buckets {
		if b == name {
			return true
		}
	}
	return false
}

func toWireStations(in []domain.StationAssignment) []wireStation {
	out := make([]wireStation, 0, len(in))
	for _, a := range in {
		out = append(out, wireStation{Address: a.Address, Station: stationNumber(a.Station)})
	}
	return out
}

func fromWireStations(in []wireStation) []domain.StationAssignment {
	out := make([]domain.StationAssignment, 0, len(in))
	for _, w := range in {
		out = append(out, domain.StationAssignment{Address: w.Address, Station: int(w.Station)})
	}
	return out
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
