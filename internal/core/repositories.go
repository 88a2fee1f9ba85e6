package core

import (
	"errors"

	"safetynet/pkg/domain"
)

// errReadOnly is returned when a mutation is attempted through repositories
// bound to a read view.
var errReadOnly = errors.New("repository is read-only")

// Repositories bundles the three typed views over one store state. Bound to
// a transaction they can mutate; bound to a view they can only read.
type Repositories struct {
	Residents      ResidentRepository
	Stations       StationRepository
	MedicalRecords MedicalRecordRepository
}

func newReadRepositories(view domain.TransactionView) Repositories {
	return Repositories{
		Residents:      ResidentRepository{view: view},
		Stations:       StationRepository{view: view},
		MedicalRecords: MedicalRecordRepository{view: view},
	}
}

func newWriteRepositories(tx domain.Transaction) Repositories {
	view := tx.Snapshot()
	return Repositories{
		Residents:      ResidentRepository{view: view, tx: tx},
		Stations:       StationRepository{view: view, tx: tx},
		MedicalRecords: MedicalRecordRepository{view: view, tx: tx},
	}
}

// ResidentRepository is the typed view over residents.
type ResidentRepository struct {
	view domain.TransactionView
	tx   domain.Transaction
}

// List returns every resident in insertion order.
func (r ResidentRepository) List() []Resident { return r.view.ListResidents() }

// Find returns the first resident with key.
func (r ResidentRepository) Find(key PersonKey) (Resident, bool) { return r.view.FindResident(key) }

// FindByAddress returns residents whose address matches exactly.
func (r ResidentRepository) FindByAddress(address string) []Resident {
	return r.filter(func(res Resident) bool { return res.Address == address })
}

// FindByLastName returns residents whose last name matches exactly.
func (r ResidentRepository) FindByLastName(lastName string) []Resident {
	return r.filter(func(res Resident) bool { return res.LastName == lastName })
}

// FindByCity returns residents whose city matches exactly.
func (r ResidentRepository) FindByCity(city string) []Resident {
	return r.filter(func(res Resident) bool { return res.City == city })
}

func (r ResidentRepository) filter(keep func(Resident) bool) []Resident {
	out := []Resident{}
	for _, res := range r.view.ListResidents() {
		if keep(res) {
			out = append(out, res)
		}
	}
	return out
}

// Create appends a resident. Uniqueness is checked by the service.
func (r ResidentRepository) Create(res Resident) (Resident, error) {
	if r.tx == nil {
		return Resident{}, errReadOnly
	}
	return r.tx.CreateResident(res)
}

// Update replaces the resident at key. It reports false when key is absent.
func (r ResidentRepository) Update(key PersonKey, replacement Resident) (Resident, bool, error) {
	if r.tx == nil {
		return Resident{}, false, errReadOnly
	}
	if _, ok := r.view.FindResident(key); !ok {
		return Resident{}, false, nil
	}
	updated, err := r.tx.UpdateResident(key, func(cur *Resident) error {
		*cur = replacement
		return nil
	})
	return updated, err == nil, err
}

// Delete removes the resident at key, reporting whether one existed.
func (r ResidentRepository) Delete(key PersonKey) (bool, error) {
	if r.tx == nil {
		return false, errReadOnly
	}
	if _, ok := r.view.FindResident(key); !ok {
		return false, nil
	}
	return true, r.tx.DeleteResident(key)
}

// StationRepository is the typed view over station assignments.
type StationRepository struct {
	view domain.TransactionView
	tx   domain.Transaction
}

// List returns every assignment in insertion order.
func (r StationRepository) List() []StationAssignment { return r.view.ListStationAssignments() }

// FindByAddress returns the assignment for address.
func (r StationRepository) FindByAddress(address string) (StationAssignment, bool) {
	return r.view.FindStationAssignment(address)
}

// FindByStationNumber returns the assignments of station in insertion order.
func (r StationRepository) FindByStationNumber(station int) []StationAssignment {
	out := []StationAssignment{}
	for _, a := range r.view.ListStationAssignments() {
		if a.Station == station {
			out = append(out, a)
		}
	}
	return out
}

// Create appends an assignment. Uniqueness is checked by the service.
func (r StationRepository) Create(a StationAssignment) (StationAssignment, error) {
	if r.tx == nil {
		return StationAssignment{}, errReadOnly
	}
	return r.tx.CreateStationAssignment(a)
}

// Update replaces the assignment at address. It reports false when absent.
func (r StationRepository) Update(address string, replacement StationAssignment) (StationAssignment, bool, error) {
	if r.tx == nil {
		return StationAssignment{}, false, errReadOnly
	}
	if _, ok := r.view.FindStationAssignment(address); !ok {
		return StationAssignment{}, false, nil
	}
	updated, err := r.tx.UpdateStationAssignment(address, func(cur *StationAssignment) error {
		*cur = replacement
		return nil
	})
	return updated, err == nil, err
}

// Delete removes the assignment at address, reporting whether one existed.
func (r StationRepository) Delete(address string) (bool, error) {
	if r.tx == nil {
		return false, errReadOnly
	}
	if _, ok := r.view.FindStationAssignment(address); !ok {
		return false, nil
	}
	return true, r.tx.DeleteStationAssignment(address)
}

// MedicalRecordRepository is the typed view over medical records.
type MedicalRecordRepository struct {
	view domain.TransactionView
	tx   domain.Transaction
}

// List returns every record in insertion order.
func (r MedicalRecordRepository) List() []MedicalRecord { return r.view.ListMedicalRecords() }

// Find returns the record for key.
func (r MedicalRecordRepository) Find(key PersonKey) (MedicalRecord, bool) {
	return r.view.FindMedicalRecord(key)
}

// FindBirthdate returns only the birthdate for key.
func (r MedicalRecordRepository) FindBirthdate(key PersonKey) (Date, bool) {
	rec, ok := r.view.FindMedicalRecord(key)
	if !ok {
		return Date{}, false
	}
	return rec.Birthdate, true
}

// Create appends a record. Uniqueness and the resident link are checked by the service.
func (r MedicalRecordRepository) Create(m MedicalRecord) (MedicalRecord, error) {
	if r.tx == nil {
		return MedicalRecord{}, errReadOnly
	}
	return r.tx.CreateMedicalRecord(m)
}

// Update replaces the record at key. It reports false when absent.
func (r MedicalRecordRepository) Update(key PersonKey, replacement MedicalRecord) (MedicalRecord, bool, error) {
	if r.tx == nil {
		return MedicalRecord{}, false, errReadOnly
	}
	if _, ok := r.view.FindMedicalRecord(key); !ok {
		return MedicalRecord{}, false, nil
	}
	updated, err := r.tx.UpdateMedicalRecord(key, func(cur *MedicalRecord) error {
		*cur = replacement
		return nil
	})
	return updated, err == nil, err
}

// Delete removes the record at key, reporting whether one existed.
func (r MedicalRecordRepository) Delete(key PersonKey) (bool, error) {
	if r.tx == nil {
		return false, errReadOnly
	}
	if _, ok := r.view.FindMedicalRecord(key); !ok {
		return false, nil
	}
	return true, r.tx.DeleteMedicalRecord(key)
}
