package core

import (
	"context"
	"fmt"

	"safetynet/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in invariant set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewUniqueStationAddressRule())
	engine.Register(NewUniqueMedicalRecordRule())
	engine.Register(NewMedicalRecordRequiresResidentRule())
	engine.Register(NewPositiveStationNumberRule())
	return engine
}

// NewUniqueStationAddressRule blocks commits that leave two assignments on one address.
func NewUniqueStationAddressRule() domain.Rule { return uniqueStationAddressRule{} }

type uniqueStationAddressRule struct{}

func (uniqueStationAddressRule) Name() string { return "unique_station_address" }

func (r uniqueStationAddressRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	changed := make(map[string]bool)
	for _, c := range changes {
		if c.Entity != domain.EntityStationAssignment || c.Action == domain.ActionDelete {
			continue
		}
		if a, ok := c.After.(domain.StationAssignment); ok {
			changed[a.Address] = true
		}
	}
	if len(changed) == 0 {
		return domain.Result{}, nil
	}
	// Duplicates loaded from a document are checked only once their address changes.
	seen := make(map[string]int)
	res := domain.Result{}
	for _, a := range view.ListStationAssignments() {
		if !changed[a.Address] {
			continue
		}
		seen[a.Address]++
		if seen[a.Address] == 2 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("address %q already has a station assignment", a.Address),
				Entity:   domain.EntityStationAssignment,
				Key:      a.Address,
			})
		}
	}
	return res, nil
}

// NewUniqueMedicalRecordRule blocks commits that leave two records for one person.
func NewUniqueMedicalRecordRule() domain.Rule { return uniqueMedicalRecordRule{} }

type uniqueMedicalRecordRule struct{}

func (uniqueMedicalRecordRule) Name() string { return "unique_medical_record" }

func (r uniqueMedicalRecordRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	changed := make(map[domain.PersonKey]bool)
	for _, c := range changes {
		if c.Entity != domain.EntityMedicalRecord || c.Action == domain.ActionDelete {
			continue
		}
		if m, ok := c.After.(domain.MedicalRecord); ok {
			changed[m.Key()] = true
		}
	}
	if len(changed) == 0 {
		return domain.Result{}, nil
	}
	seen := make(map[domain.PersonKey]int)
	res := domain.Result{}
	for _, m := range view.ListMedicalRecords() {
		if !changed[m.Key()] {
			continue
		}
		seen[m.Key()]++
		if seen[m.Key()] == 2 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("medical record for %s already exists", m.Key()),
				Entity:   domain.EntityMedicalRecord,
				Key:      m.Key().String(),
			})
		}
	}
	return res, nil
}

// NewMedicalRecordRequiresResidentRule blocks record creates and updates
// whose person has no resident. Deleting a resident does not trigger it.
func NewMedicalRecordRequiresResidentRule() domain.Rule { return medicalRecordRequiresResidentRule{} }

type medicalRecordRequiresResidentRule struct{}

func (medicalRecordRequiresResidentRule) Name() string { return "medical_record_requires_resident" }

func (r medicalRecordRequiresResidentRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityMedicalRecord || change.Action == domain.ActionDelete {
			continue
		}
		rec, ok := change.After.(domain.MedicalRecord)
		if !ok {
			continue
		}
		if _, found := view.FindResident(rec.Key()); found {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("no resident named %s", rec.Key()),
			Entity:   domain.EntityMedicalRecord,
			Key:      rec.Key().String(),
		})
	}
	return res, nil
}

// NewPositiveStationNumberRule blocks assignments to station numbers below 1.
func NewPositiveStationNumberRule() domain.Rule { return positiveStationNumberRule{} }

type positiveStationNumberRule struct{}

func (positiveStationNumberRule) Name() string { return "positive_station_number" }

func (r positiveStationNumberRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityStationAssignment {
			continue
		}
		a, ok := change.After.(domain.StationAssignment)
		if !ok || a.Station > 0 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("station number %d for %q must be positive", a.Station, a.Address),
			Entity:   domain.EntityStationAssignment,
			Key:      a.Address,
		})
	}
	return res, nil
}
