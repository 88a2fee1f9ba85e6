package domain

import "context"

// TransactionView provides read-only access to a consistent state of the
// three collections. Lists preserve insertion order.
type TransactionView interface {
	ListResidents() []Resident
	FindResident(key PersonKey) (Resident, bool)
	ListStationAssignments() []StationAssignment
	FindStationAssignment(address string) (StationAssignment, bool)
	ListMedicalRecords() []MedicalRecord
	FindMedicalRecord(key PersonKey) (MedicalRecord, bool)
}

// Transaction exposes the mutations a persistence implementation must support
// within an atomic scope. Creates append without uniqueness checks; updates
// replace the first record matching the key; missing keys yield NotFoundError.
type Transaction interface {
	Snapshot() TransactionView
	CreateResident(Resident) (Resident, error)
	UpdateResident(key PersonKey, mutator func(*Resident) error) (Resident, error)
	DeleteResident(key PersonKey) error
	CreateStationAssignment(StationAssignment) (StationAssignment, error)
	UpdateStationAssignment(address string, mutator func(*StationAssignment) error) (StationAssignment, error)
	DeleteStationAssignment(address string) error
	CreateMedicalRecord(MedicalRecord) (MedicalRecord, error)
	UpdateMedicalRecord(key PersonKey, mutator func(*MedicalRecord) error) (MedicalRecord, error)
	DeleteMedicalRecord(key PersonKey) error
}

// PersistentStore is the durable store abstraction consumed by higher layers.
// RunInTransaction commits the working copy and, for durable backends, then
// rewrites the full document; a write failure is reported as PersistenceError
// while the commit stands.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	Close() error
}
