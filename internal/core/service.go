package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"safetynet/internal/query"
	"safetynet/pkg/domain"
)

// Service coordinates repository calls for every query and mutation. Each
// mutation runs its existence and uniqueness checks inside the same store
// transaction that applies it, so either everything happens or nothing does.
type Service struct {
	store   PersistentStore
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAuditRecorder sets the recorder receiving one entry per mutation.
func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.audit = r
		}
	}
}

// WithMetricsRecorder sets the per-operation metrics sink.
func WithMetricsRecorder(r MetricsRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithTracer sets the span factory.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the time source used for ages and audit timestamps.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		clock:   ClockFunc(time.Now),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Today returns the calendar date ages are computed against.
func (s *Service) Today() Date { return domain.DateOf(s.clock.Now()) }

// CreateResident adds a resident. The (firstName, lastName) key must be new.
func (s *Service) CreateResident(ctx context.Context, r Resident) (Resident, Result, error) {
	if err := r.Validate(); err != nil {
		return Resident{}, Result{}, s.rejected(ctx, "create_resident", EntityResident, ActionCreate, r.Key().String(), err)
	}
	var created Resident
	res, err := s.mutate(ctx, "create_resident", EntityResident, ActionCreate, r.Key().String(), func(repos Repositories) error {
		if _, exists := repos.Residents.Find(r.Key()); exists {
			return domain.ConflictError{Entity: EntityResident, Key: r.Key().String()}
		}
		var err error
		created, err = repos.Residents.Create(r)
		return err
	})
	return created, res, err
}

// UpdateResident fully replaces the resident at key. Key fields in r are ignored.
func (s *Service) UpdateResident(ctx context.Context, key PersonKey, r Resident) (Resident, Result, error) {
	r.FirstName, r.LastName = key.FirstName, key.LastName
	if err := r.Validate(); err != nil {
		return Resident{}, Result{}, s.rejected(ctx, "update_resident", EntityResident, ActionUpdate, key.String(), err)
	}
	var updated Resident
	res, err := s.mutate(ctx, "update_resident", EntityResident, ActionUpdate, key.String(), func(repos Repositories) error {
		var (
			ok  bool
			err error
		)
		updated, ok, err = repos.Residents.Update(key, r)
		if err == nil && !ok {
			err = domain.NotFoundError{Entity: EntityResident, Key: key.String()}
		}
		return err
	})
	return updated, res, err
}

// DeleteResident removes the resident at key. Their medical record, if any, stays.
func (s *Service) DeleteResident(ctx context.Context, key PersonKey) (Result, error) {
	return s.mutate(ctx, "delete_resident", EntityResident, ActionDelete, key.String(), func(repos Repositories) error {
		ok, err := repos.Residents.Delete(key)
		if err == nil && !ok {
			err = domain.NotFoundError{Entity: EntityResident, Key: key.String()}
		}
		return err
	})
}

// GetResident returns the resident at key.
func (s *Service) GetResident(ctx context.Context, key PersonKey) (Resident, error) {
	var out Resident
	err := s.read(ctx, "get_resident", func(repos Repositories) error {
		var ok bool
		if out, ok = repos.Residents.Find(key); !ok {
			return domain.NotFoundError{Entity: EntityResident, Key: key.String()}
		}
		return nil
	})
	return out, err
}

// ListResidents returns every resident in insertion order.
func (s *Service) ListResidents(ctx context.Context) ([]Resident, error) {
	var out []Resident
	err := s.read(ctx, "list_residents", func(repos Repositories) error {
		out = repos.Residents.List()
		return nil
	})
	return out, err
}

// CreateStationAssignment maps an address to a station. The address must be unassigned.
func (s *Service) CreateStationAssignment(ctx context.Context, a StationAssignment) (StationAssignment, Result, error) {
	if err := a.Validate(); err != nil {
		return StationAssignment{}, Result{}, s.rejected(ctx, "create_station_assignment", EntityStationAssignment, ActionCreate, a.Address, err)
	}
	var created StationAssignment
	res, err := s.mutate(ctx, "create_station_assignment", EntityStationAssignment, ActionCreate, a.Address, func(repos Repositories) error {
		if _, exists := repos.Stations.FindByAddress(a.Address); exists {
			return domain.ConflictError{Entity: EntityStationAssignment, Key: a.Address}
		}
		var err error
		created, err = repos.Stations.Create(a)
		return err
	})
	return created, res, err
}

// UpdateStationAssignment replaces the station number for address.
func (s *Service) UpdateStationAssignment(ctx context.Context, address string, a StationAssignment) (StationAssignment, Result, error) {
	a.Address = address
	if err := a.Validate(); err != nil {
		return StationAssignment{}, Result{}, s.rejected(ctx, "update_station_assignment", EntityStationAssignment, ActionUpdate, address, err)
	}
	var updated StationAssignment
	res, err := s.mutate(ctx, "update_station_assignment", EntityStationAssignment, ActionUpdate, address, func(repos Repositories) error {
		var (
			ok  bool
			err error
		)
		updated, ok, err = repos.Stations.Update(address, a)
		if err == nil && !ok {
			err = domain.NotFoundError{Entity: EntityStationAssignment, Key: address}
		}
		return err
	})
	return updated, res, err
}

// DeleteStationAssignment removes the assignment for address.
func (s *Service) DeleteStationAssignment(ctx context.Context, address string) (Result, error) {
	return s.mutate(ctx, "delete_station_assignment", EntityStationAssignment, ActionDelete, address, func(repos Repositories) error {
		ok, err := repos.Stations.Delete(address)
		if err == nil && !ok {
			err = domain.NotFoundError{Entity: EntityStationAssignment, Key: address}
		}
		return err
	})
}

// GetStationAssignment returns the assignment for address.
func (s *Service) GetStationAssignment(ctx context.Context, address string) (StationAssignment, error) {
	var out StationAssignment
	err := s.read(ctx, "get_station_assignment", func(repos Repositories) error {
		var ok bool
		if out, ok = repos.Stations.FindByAddress(address); !ok {
			return domain.NotFoundError{Entity: EntityStationAssignment, Key: address}
		}
		return nil
	})
	return out, err
}

// ListStationAssignments returns every assignment in insertion order.
func (s *Service) ListStationAssignments(ctx context.Context) ([]StationAssignment, error) {
	var out []StationAssignment
	err := s.read(ctx, "list_station_assignments", func(repos Repositories) error {
		out = repos.Stations.List()
		return nil
	})
	return out, err
}

// CreateMedicalRecord adds a record for an existing resident.
func (s *Service) CreateMedicalRecord(ctx context.Context, m MedicalRecord) (MedicalRecord, Result, error) {
	key := m.Key()
	if err := m.Validate(s.Today()); err != nil {
		return MedicalRecord{}, Result{}, s.rejected(ctx, "create_medical_record", EntityMedicalRecord, ActionCreate, key.String(), err)
	}
	var created MedicalRecord
	res, err := s.mutate(ctx, "create_medical_record", EntityMedicalRecord, ActionCreate, key.String(), func(repos Repositories) error {
		if _, ok := repos.Residents.Find(key); !ok {
			return domain.NotFoundError{Entity: EntityResident, Key: key.String()}
		}
		if _, exists := repos.MedicalRecords.Find(key); exists {
			return domain.ConflictError{Entity: EntityMedicalRecord, Key: key.String()}
		}
		var err error
		created, err = repos.MedicalRecords.Create(m)
		return err
	})
	return created, res, err
}

// UpdateMedicalRecord fully replaces the record at key. The resident must still exist.
func (s *Service) UpdateMedicalRecord(ctx context.Context, key PersonKey, m MedicalRecord) (MedicalRecord, Result, error) {
	m.FirstName, m.LastName = key.FirstName, key.LastName
	if err := m.Validate(s.Today()); err != nil {
		return MedicalRecord{}, Result{}, s.rejected(ctx, "update_medical_record", EntityMedicalRecord, ActionUpdate, key.String(), err)
	}
	var updated MedicalRecord
	res, err := s.mutate(ctx, "update_medical_record", EntityMedicalRecord, ActionUpdate, key.String(), func(repos Repositories) error {
		if _, ok := repos.Residents.Find(key); !ok {
			return domain.NotFoundError{Entity: EntityResident, Key: key.String()}
		}
		var (
			ok  bool
			err error
		)
		updated, ok, err = repos.MedicalRecords.Update(key, m)
		if err == nil && !ok {
			err = domain.NotFoundError{Entity: EntityMedicalRecord, Key: key.String()}
		}
		return err
	})
	return updated, res, err
}

// DeleteMedicalRecord removes the record at key.
func (s *Service) DeleteMedicalRecord(ctx context.Context, key PersonKey) (Result, error) {
	return s.mutate(ctx, "delete_medical_record", EntityMedicalRecord, ActionDelete, key.String(), func(repos Repositories) error {
		ok, err := repos.MedicalRecords.Delete(key)
		if err == nil && !ok {
			err = domain.NotFoundError{Entity: EntityMedicalRecord, Key: key.String()}
		}
		return err
	})
}

// GetMedicalRecord returns the record at key.
func (s *Service) GetMedicalRecord(ctx context.Context, key PersonKey) (MedicalRecord, error) {
	var out MedicalRecord
	err := s.read(ctx, "get_medical_record", func(repos Repositories) error {
		var ok bool
		if out, ok = repos.MedicalRecords.Find(key); !ok {
			return domain.NotFoundError{Entity: EntityMedicalRecord, Key: key.String()}
		}
		return nil
	})
	return out, err
}

// ListMedicalRecords returns every record in insertion order.
func (s *Service) ListMedicalRecords(ctx context.Context) ([]MedicalRecord, error) {
	var out []MedicalRecord
	err := s.read(ctx, "list_medical_records", func(repos Repositories) error {
		out = repos.MedicalRecords.List()
		return nil
	})
	return out, err
}

func (s *Service) mutate(ctx context.Context, op string, entity EntityType, action Action, key string, fn func(Repositories) error) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return fn(newWriteRepositories(tx))
	})
	var pErr domain.PersistenceError
	if errors.As(err, &pErr) {
		pErr.Op = op
		err = pErr
	}
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	s.recordAudit(ctx, op, entity, action, key, err, duration)
	for _, v := range res.Violations {
		if v.Severity != domain.SeverityBlock {
			s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", string(v.Severity), "message", v.Message)
		}
	}
	s.logOutcome(op, key, err, duration)
	return res, err
}

// rejected records a mutation refused before reaching the store.
func (s *Service) rejected(ctx context.Context, op string, entity EntityType, action Action, key string, err error) error {
	_, span := s.tracer.Start(ctx, op)
	span.End(err)
	s.metrics.Observe(ctx, op, false, 0)
	s.recordAudit(ctx, op, entity, action, key, err, 0)
	s.logOutcome(op, key, err, 0)
	return err
}

func (s *Service) read(ctx context.Context, op string, fn func(Repositories) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	err := s.store.View(ctx, func(view TransactionView) error {
		return fn(newReadRepositories(view))
	})
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("query failed", "operation", op, "error", err)
	} else {
		s.logger.Debug("query served", "operation", op, "duration", duration, "found", err == nil)
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, op string, entity EntityType, action Action, key string, err error, duration time.Duration) {
	entry := AuditEntry{
		Operation: op,
		Entity:    entity,
		Action:    action,
		Key:       key,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now().UTC(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func (s *Service) logOutcome(op, key string, err error, duration time.Duration) {
	switch {
	case err == nil:
		s.logger.Info("mutation applied", "operation", op, "key", key, "duration", duration)
	case errors.Is(err, domain.ErrPersistence):
		s.logger.Error("mutation applied in memory but not persisted", "operation", op, "key", key, "error", err)
	case isClientError(err):
		s.logger.Warn("mutation rejected", "operation", op, "key", key, "error", err)
	default:
		s.logger.Error("mutation failed", "operation", op, "key", key, "error", err)
	}
}

func isClientError(err error) bool {
	var violation domain.RuleViolationError
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.As(err, &violation)
}

func stationKey(station int) string { return fmt.Sprintf("station %d", station) }

// households resolves each assignment of station to the residents at its address.
func households(repos Repositories, assignments []StationAssignment) []query.Household {
	out := make([]query.Household, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, query.Household{Address: a.Address, Residents: repos.Residents.FindByAddress(a.Address)})
	}
	return out
}
