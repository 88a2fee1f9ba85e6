package core

import (
	"context"
	"testing"
	"time"

	"safetynet/internal/infra/persistence/memory"
	"safetynet/pkg/domain"
)

var fixedNow = time.Date(2024, time.June, 15, 9, 30, 0, 0, time.UTC)

func fixedClock() Clock { return ClockFunc(func() time.Time { return fixedNow }) }

func todayMinusYears(n int) Date { return domain.DateOf(fixedNow).AddYears(-n) }

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock())}, opts...)
	return NewService(memory.NewStore(NewDefaultRulesEngine()), opts...)
}

func boyd(first string) Resident {
	return Resident{
		FirstName: first,
		LastName:  "Boyd",
		Address:   "1509 Culver St",
		City:      "Culver",
		Zip:       "97451",
		Phone:     "841-874-6512",
		Email:     first + ".boyd@email.com",
	}
}

func mustCreateResident(t *testing.T, svc *Service, r Resident) {
	t.Helper()
	if _, _, err := svc.CreateResident(context.Background(), r); err != nil {
		t.Fatalf("create resident %s: %v", r.Key(), err)
	}
}

func mustCreateStation(t *testing.T, svc *Service, address string, station int) {
	t.Helper()
	if _, _, err := svc.CreateStationAssignment(context.Background(), StationAssignment{Address: address, Station: station}); err != nil {
		t.Fatalf("create station %s: %v", address, err)
	}
}

func mustCreateRecord(t *testing.T, svc *Service, first, last string, birth Date) {
	t.Helper()
	rec := MedicalRecord{FirstName: first, LastName: last, Birthdate: birth, Medications: []string{}, Allergies: []string{}}
	if _, _, err := svc.CreateMedicalRecord(context.Background(), rec); err != nil {
		t.Fatalf("create record %s %s: %v", first, last, err)
	}
}
