// Package domain defines the persistent entities, value types, errors and
// rule evaluation primitives used by safetynet.
package domain

import (
	"fmt"
	"strings"
)

// EntityType identifies the type of record stored in the dataset.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityResident identifies a resident (person) record.
	EntityResident EntityType = "resident"
	// EntityStationAssignment identifies an address to fire-station mapping.
	EntityStationAssignment EntityType = "station_assignment"
	// EntityMedicalRecord identifies a medical record.
	EntityMedicalRecord EntityType = "medical_record"
)

// PersonKey is the (firstName, lastName) pair shared by residents and medical
// records. Matching is exact and case-sensitive.
type PersonKey struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// String renders the key as "First Last".
func (k PersonKey) String() string {
	return strings.TrimSpace(k.FirstName + " " + k.LastName)
}

// Resident is a person record with contact and location attributes.
type Resident struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// Key returns the resident's name key.
func (r Resident) Key() PersonKey {
	return PersonKey{FirstName: r.FirstName, LastName: r.LastName}
}

// Validate checks the fields required to identify and locate a resident.
func (r Resident) Validate() error {
	switch {
	case strings.TrimSpace(r.FirstName) == "":
		return ValidationError{Entity: EntityResident, Field: "firstName", Reason: "required"}
	case strings.TrimSpace(r.LastName) == "":
		return ValidationError{Entity: EntityResident, Field: "lastName", Reason: "required"}
	case strings.TrimSpace(r.Address) == "":
		return ValidationError{Entity: EntityResident, Field: "address", Reason: "required"}
	}
	return nil
}

// StationAssignment maps a street address to the fire station covering it.
// Address matching is exact; no normalisation is applied.
type StationAssignment struct {
	Address string `json:"address"`
	Station int    `json:"station"`
}

// Validate enforces a non-empty address and a positive station number.
func (a StationAssignment) Validate() error {
	if strings.TrimSpace(a.Address) == "" {
		return ValidationError{Entity: EntityStationAssignment, Field: "address", Reason: "required"}
	}
	if a.Station <= 0 {
		return ValidationError{Entity: EntityStationAssignment, Field: "station", Reason: fmt.Sprintf("must be positive, got %d", a.Station)}
	}
	return nil
}

// MedicalRecord holds the birthdate and treatment lists of a named person.
type MedicalRecord struct {
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Birthdate   Date     `json:"birthdate"`
	Medications []string `json:"medications"`
	Allergies   []string `json:"allergies"`
}

// Key returns the record's name key.
func (m MedicalRecord) Key() PersonKey {
	return PersonKey{FirstName: m.FirstName, LastName: m.LastName}
}

// Validate checks names and birthdate. today bounds the birthdate from above.
func (m MedicalRecord) Validate(today Date) error {
	switch {
	case strings.TrimSpace(m.FirstName) == "":
		return ValidationError{Entity: EntityMedicalRecord, Field: "firstName", Reason: "required"}
	case strings.TrimSpace(m.LastName) == "":
		return ValidationError{Entity: EntityMedicalRecord, Field: "lastName", Reason: "required"}
	case m.Birthdate.IsZero():
		return ValidationError{Entity: EntityMedicalRecord, Field: "birthdate", Reason: "required"}
	case !today.IsZero() && today.Before(m.Birthdate):
		return ValidationError{Entity: EntityMedicalRecord, Field: "birthdate", Reason: "in the future"}
	}
	return nil
}

// CloneMedicalRecord returns a copy that shares no slices with m.
func CloneMedicalRecord(m MedicalRecord) MedicalRecord {
	cp := m
	cp.Medications = cloneStrings(m.Medications)
	cp.Allergies = cloneStrings(m.Allergies)
	return cp
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Key    string
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	// ActionDelete indicates an entity was removed.
	ActionDelete Action = "delete"
)
