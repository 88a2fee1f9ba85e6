// Package memory provides the in-memory transactional store that owns the
// dataset for the process lifetime. Durable drivers embed it and snapshot its
// state after every committed transaction.
package memory

import (
	"context"
	"fmt"
	"sync"

	"safetynet/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Resident aliases domain.Resident for in-memory persistence operations.
	Resident = domain.Resident
	// StationAssignment aliases domain.StationAssignment.
	StationAssignment = domain.StationAssignment
	// MedicalRecord aliases domain.MedicalRecord.
	MedicalRecord = domain.MedicalRecord
	// PersonKey aliases domain.PersonKey.
	PersonKey = domain.PersonKey
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// memoryState keeps each collection in insertion order. The two indexes map
// unique keys to slice positions and are rebuilt whenever positions shift.
type memoryState struct {
	residents []Resident
	stations  []StationAssignment
	records   []MedicalRecord

	stationIdx map[string]int
	recordIdx  map[PersonKey]int
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Residents          []Resident          `json:"residents"`
	StationAssignments []StationAssignment `json:"stationAssignments"`
	MedicalRecords     []MedicalRecord     `json:"medicalRecords"`
}

func newMemoryState() memoryState {
	return memoryState{
		stationIdx: make(map[string]int),
		recordIdx:  make(map[PersonKey]int),
	}
}

// reindex rebuilds key indexes. The first occurrence of a key wins, matching
// the linear-scan semantics of the finders.
func (s *memoryState) reindex() {
	s.stationIdx = make(map[string]int, len(s.stations))
	for i, a := range s.stations {
		if _, seen := s.stationIdx[a.Address]; !seen {
			s.stationIdx[a.Address] = i
		}
	}
	s.recordIdx = make(map[PersonKey]int, len(s.records))
	for i, m := range s.records {
		if _, seen := s.recordIdx[m.Key()]; !seen {
			s.recordIdx[m.Key()] = i
		}
	}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{
		residents: make([]Resident, len(s.residents)),
		stations:  make([]StationAssignment, len(s.stations)),
		records:   make([]MedicalRecord, 0, len(s.records)),
	}
	copy(cloned.residents, s.residents)
	copy(cloned.stations, s.stations)
	for _, m := range s.records {
		cloned.records = append(cloned.records, domain.CloneMedicalRecord(m))
	}
	cloned.reindex()
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{
		Residents:          cloned.residents,
		StationAssignments: cloned.stations,
		MedicalRecords:     cloned.records,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		residents: s.Residents,
		stations:  s.StationAssignments,
		records:   s.MedicalRecords,
	}
	return state.clone()
}

// migrateSnapshot normalises collections decoded from older or hand-edited
// documents: nil collections become empty and nil treatment lists become empty.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Residents == nil {
		snapshot.Residents = []Resident{}
	}
	if snapshot.StationAssignments == nil {
		snapshot.StationAssignments = []StationAssignment{}
	}
	if snapshot.MedicalRecords == nil {
		snapshot.MedicalRecords = []MedicalRecord{}
	}
	for i, m := range snapshot.MedicalRecords {
		if m.Medications == nil {
			m.Medications = []string{}
		}
		if m.Allergies == nil {
			m.Allergies = []string{}
		}
		snapshot.MedicalRecords[i] = m
	}
	return snapshot
}

// Store provides an in-memory transactional store for the dataset.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

type transaction struct {
	state   memoryState
	changes []Change
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the committed state only when fn succeeds and no rule
// reports a blocking violation.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone()}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil && len(tx.changes) > 0 {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against the committed state while holding the read lock.
// fn must not start a transaction on the same store.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newTransactionView(&s.state))
}

// ListResidents returns all residents in insertion order.
func (v transactionView) ListResidents() []Resident {
	out := make([]Resident, len(v.state.residents))
	copy(out, v.state.residents)
	return out
}

// FindResident returns the first resident matching key.
func (v transactionView) FindResident(key PersonKey) (Resident, bool) {
	for _, r := range v.state.residents {
		if r.Key() == key {
			return r, true
		}
	}
	return Resident{}, false
}

// ListStationAssignments returns all assignments in insertion order.
func (v transactionView) ListStationAssignments() []StationAssignment {
	out := make([]StationAssignment, len(v.state.stations))
	copy(out, v.state.stations)
	return out
}

// FindStationAssignment looks an assignment up by exact address.
func (v transactionView) FindStationAssignment(address string) (StationAssignment, bool) {
	i, ok := v.state.stationIdx[address]
	if !ok {
		return StationAssignment{}, false
	}
	return v.state.stations[i], true
}

// ListMedicalRecords returns all medical records in insertion order.
func (v transactionView) ListMedicalRecords() []MedicalRecord {
	out := make([]MedicalRecord, 0, len(v.state.records))
	for _, m := range v.state.records {
		out = append(out, domain.CloneMedicalRecord(m))
	}
	return out
}

// FindMedicalRecord looks a record up by name key.
func (v transactionView) FindMedicalRecord(key PersonKey) (MedicalRecord, bool) {
	i, ok := v.state.recordIdx[key]
	if !ok {
		return MedicalRecord{}, false
	}
	return domain.CloneMedicalRecord(v.state.records[i]), true
}

// helper to record and append change entries.
func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the live transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) residentIndex(key PersonKey) int {
	for i, r := range tx.state.residents {
		if r.Key() == key {
			return i
		}
	}
	return -1
}

// CreateResident appends a resident.
func (tx *transaction) CreateResident(r Resident) (Resident, error) {
	tx.state.residents = append(tx.state.residents, r)
	tx.recordChange(Change{Entity: domain.EntityResident, Action: domain.ActionCreate, Key: r.Key().String(), After: r})
	return r, nil
}

// UpdateResident replaces the first resident matching key. The key fields
// cannot be changed by the mutator.
func (tx *transaction) UpdateResident(key PersonKey, mutator func(*Resident) error) (Resident, error) {
	i := tx.residentIndex(key)
	if i < 0 {
		return Resident{}, domain.NotFoundError{Entity: domain.EntityResident, Key: key.String()}
	}
	before := tx.state.residents[i]
	current := before
	if err := mutator(&current); err != nil {
		return Resident{}, err
	}
	current.FirstName, current.LastName = key.FirstName, key.LastName
	tx.state.residents[i] = current
	tx.recordChange(Change{Entity: domain.EntityResident, Action: domain.ActionUpdate, Key: key.String(), Before: before, After: current})
	return current, nil
}

// DeleteResident removes the first resident matching key. Medical records
// are left in place; the name link is soft.
func (tx *transaction) DeleteResident(key PersonKey) error {
	i := tx.residentIndex(key)
	if i < 0 {
		return domain.NotFoundError{Entity: domain.EntityResident, Key: key.String()}
	}
	before := tx.state.residents[i]
	tx.state.residents = append(tx.state.residents[:i], tx.state.residents[i+1:]...)
	tx.recordChange(Change{Entity: domain.EntityResident, Action: domain.ActionDelete, Key: key.String(), Before: before})
	return nil
}

// CreateStationAssignment appends an assignment.
func (tx *transaction) CreateStationAssignment(a StationAssignment) (StationAssignment, error) {
	tx.state.stations = append(tx.state.stations, a)
	if _, seen := tx.state.stationIdx[a.Address]; !seen {
		tx.state.stationIdx[a.Address] = len(tx.state.stations) - 1
	}
	tx.recordChange(Change{Entity: domain.EntityStationAssignment, Action: domain.ActionCreate, Key: a.Address, After: a})
	return a, nil
}

// UpdateStationAssignment replaces the assignment for address.
func (tx *transaction) UpdateStationAssignment(address string, mutator func(*StationAssignment) error) (StationAssignment, error) {
	i, ok := tx.state.stationIdx[address]
	if !ok {
		return StationAssignment{}, domain.NotFoundError{Entity: domain.EntityStationAssignment, Key: address}
	}
	before := tx.state.stations[i]
	current := before
	if err := mutator(&current); err != nil {
		return StationAssignment{}, err
	}
	current.Address = address
	tx.state.stations[i] = current
	tx.recordChange(Change{Entity: domain.EntityStationAssignment, Action: domain.ActionUpdate, Key: address, Before: before, After: current})
	return current, nil
}

// DeleteStationAssignment removes the assignment for address.
func (tx *transaction) DeleteStationAssignment(address string) error {
	i, ok := tx.state.stationIdx[address]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityStationAssignment, Key: address}
	}
	before := tx.state.stations[i]
	tx.state.stations = append(tx.state.stations[:i], tx.state.stations[i+1:]...)
	tx.state.reindex()
	tx.recordChange(Change{Entity: domain.EntityStationAssignment, Action: domain.ActionDelete, Key: address, Before: before})
	return nil
}

// CreateMedicalRecord appends a medical record.
func (tx *transaction) CreateMedicalRecord(m MedicalRecord) (MedicalRecord, error) {
	m = domain.CloneMedicalRecord(m)
	tx.state.records = append(tx.state.records, m)
	if _, seen := tx.state.recordIdx[m.Key()]; !seen {
		tx.state.recordIdx[m.Key()] = len(tx.state.records) - 1
	}
	tx.recordChange(Change{Entity: domain.EntityMedicalRecord, Action: domain.ActionCreate, Key: m.Key().String(), After: domain.CloneMedicalRecord(m)})
	return domain.CloneMedicalRecord(m), nil
}

// UpdateMedicalRecord replaces the record for key.
func (tx *transaction) UpdateMedicalRecord(key PersonKey, mutator func(*MedicalRecord) error) (MedicalRecord, error) {
	i, ok := tx.state.recordIdx[key]
	if !ok {
		return MedicalRecord{}, domain.NotFoundError{Entity: domain.EntityMedicalRecord, Key: key.String()}
	}
	before := domain.CloneMedicalRecord(tx.state.records[i])
	current := domain.CloneMedicalRecord(before)
	if err := mutator(&current); err != nil {
		return MedicalRecord{}, err
	}
	current.FirstName, current.LastName = key.FirstName, key.LastName
	current = domain.CloneMedicalRecord(current)
	tx.state.records[i] = current
	tx.recordChange(Change{Entity: domain.EntityMedicalRecord, Action: domain.ActionUpdate, Key: key.String(), Before: before, After: domain.CloneMedicalRecord(current)})
	return domain.CloneMedicalRecord(current), nil
}

// DeleteMedicalRecord removes the record for key.
func (tx *transaction) DeleteMedicalRecord(key PersonKey) error {
	i, ok := tx.state.recordIdx[key]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityMedicalRecord, Key: key.String()}
	}
	before := tx.state.records[i]
	tx.state.records = append(tx.state.records[:i], tx.state.records[i+1:]...)
	tx.state.reindex()
	tx.recordChange(Change{Entity: domain.EntityMedicalRecord, Action: domain.ActionDelete, Key: key.String(), Before: before})
	return nil
}

// String renders a short description of the store contents for diagnostics.
func (s *Store) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("memory.Store{residents:%d stations:%d medicalRecords:%d}",
		len(s.state.residents), len(s.state.stations), len(s.state.records))
}
