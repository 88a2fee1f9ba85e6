package core

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"safetynet/pkg/domain"
)

// seedCulver builds the dispatch dataset shared by the query tests:
// station 3 covers two addresses, station 2 covers one.
func seedCulver(t *testing.T) *Service {
	t.Helper()
	svc := newTestService(t)
	mustCreateStation(t, svc, "1509 Culver St", 3)
	mustCreateStation(t, svc, "834 Binoc Ave", 3)
	mustCreateStation(t, svc, "29 15th St", 2)

	for _, first := range []string{"John", "Jacob", "Tenley"} {
		mustCreateResident(t, svc, boyd(first))
	}
	mustCreateResident(t, svc, Resident{FirstName: "Tessa", LastName: "Carman", Address: "834 Binoc Ave", City: "Culver", Phone: "841-874-6512", Email: "tenz@email.com"})
	mustCreateResident(t, svc, Resident{FirstName: "Jonanathan", LastName: "Marrack", Address: "29 15th St", City: "Culver", Phone: "841-874-6513", Email: "drk@email.com"})
	mustCreateResident(t, svc, Resident{FirstName: "Nobody", LastName: "Boyd", Address: "1 Nowhere", City: "Elsewhere", Phone: "000", Email: "jaboyd@email.com"})

	mustCreateRecord(t, svc, "John", "Boyd", todayMinusYears(30))
	mustCreateRecord(t, svc, "Jacob", "Boyd", todayMinusYears(35))
	mustCreateRecord(t, svc, "Tenley", "Boyd", todayMinusYears(12))
	mustCreateRecord(t, svc, "Tessa", "Carman", todayMinusYears(18))
	mustCreateRecord(t, svc, "Jonanathan", "Marrack", todayMinusYears(35))
	return svc
}

func TestCoverageIncludesJohnBoyd(t *testing.T) {
	svc := seedCulver(t)
	got, err := svc.Coverage(context.Background(), 3)
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}
	if got.NbAdults != 2 || got.NbChildren != 2 || len(got.Persons) != 4 {
		t.Fatalf("unexpected coverage %+v", got)
	}
	first := got.Persons[0]
	if first.FirstName != "John" || first.LastName != "Boyd" || first.Address != "1509 Culver St" || first.Phone != "841-874-6512" {
		t.Fatalf("John Boyd not first: %+v", first)
	}
	if got.Persons[3].FirstName != "Tessa" {
		t.Fatalf("address resolution order lost: %+v", got.Persons)
	}
	if _, err := svc.Coverage(context.Background(), 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown station should be not found, got %v", err)
	}
}

func TestChildAlertThroughService(t *testing.T) {
	svc := seedCulver(t)
	ctx := context.Background()
	alerts, err := svc.ChildAlert(ctx, "1509 Culver St")
	if err != nil {
		t.Fatalf("child alert: %v", err)
	}
	if len(alerts) != 1 || alerts[0].FirstName != "Tenley" || alerts[0].Age != 12 || len(alerts[0].HouseMembers) != 2 {
		t.Fatalf("unexpected alerts %+v", alerts)
	}
	alerts, err = svc.ChildAlert(ctx, "29 15th St")
	if err != nil || len(alerts) != 0 {
		t.Fatalf("childless household should yield empty list, got %+v %v", alerts, err)
	}
	alerts, err = svc.ChildAlert(ctx, "834 Binoc Ave")
	if err != nil || len(alerts) != 1 || alerts[0].Age != 18 {
		t.Fatalf("exactly eighteen counts as a child, got %+v %v", alerts, err)
	}
}

func TestPhoneAlertDeduplicates(t *testing.T) {
	svc := seedCulver(t)
	phones, err := svc.PhoneAlert(context.Background(), 3)
	if err != nil {
		t.Fatalf("phone alert: %v", err)
	}
	if !reflect.DeepEqual(phones, []string{"841-874-6512"}) {
		t.Fatalf("unexpected phones %v", phones)
	}
	if _, err := svc.PhoneAlert(context.Background(), 7); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFireThroughService(t *testing.T) {
	svc := seedCulver(t)
	ctx := context.Background()
	got, err := svc.Fire(ctx, "29 15th St")
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if got.Station == nil || *got.Station != 2 || len(got.Residents) != 1 || *got.Residents[0].Age != 35 {
		t.Fatalf("unexpected fire result %+v", got)
	}
	got, err = svc.Fire(ctx, "1 Nowhere")
	if err != nil {
		t.Fatalf("unassigned address should not error: %v", err)
	}
	if got.Station != nil || len(got.Residents) != 1 || got.Residents[0].Age != nil {
		t.Fatalf("unexpected result for unassigned address %+v", got)
	}
}

func TestFloodThroughService(t *testing.T) {
	svc := seedCulver(t)
	got, err := svc.Flood(context.Background(), []int{3, 2, 3, 42})
	if err != nil {
		t.Fatalf("flood: %v", err)
	}
	if len(got.Households) != 3 {
		t.Fatalf("expected three addresses, got %+v", got.Households)
	}
	order := []string{"1509 Culver St", "834 Binoc Ave", "29 15th St"}
	for i, address := range order {
		if got.Households[i].Address != address {
			t.Fatalf("household %d = %s, want %s", i, got.Households[i].Address, address)
		}
	}
	members, ok := got.Residents("1509 Culver St")
	if !ok || len(members) != 3 {
		t.Fatalf("expected three Boyds, got %+v", members)
	}
}

func TestPersonInfoThroughService(t *testing.T) {
	svc := seedCulver(t)
	ctx := context.Background()
	infos, err := svc.PersonInfo(ctx, "Boyd")
	if err != nil {
		t.Fatalf("person info: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("resident without record must be excluded: %+v", infos)
	}
	if infos[0].Email != "John.boyd@email.com" || infos[0].Age != 30 {
		t.Fatalf("unexpected first info %+v", infos[0])
	}
	if _, err := svc.PersonInfo(ctx, "Unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCommunityEmailThroughService(t *testing.T) {
	svc := seedCulver(t)
	emails, err := svc.CommunityEmail(context.Background(), "Culver")
	if err != nil {
		t.Fatalf("emails: %v", err)
	}
	if len(emails) != 5 || emails[0] != "John.boyd@email.com" {
		t.Fatalf("unexpected emails %v", emails)
	}
	emails, err = svc.CommunityEmail(context.Background(), "Atlantis")
	if err != nil || len(emails) != 0 {
		t.Fatalf("unknown city should be empty, got %v %v", emails, err)
	}
}

func TestAgeFollowsClock(t *testing.T) {
	svc := seedCulver(t)
	ctx := context.Background()
	before, _ := svc.Coverage(ctx, 3)
	later := NewService(svc.Store(), WithClock(ClockFunc(func() time.Time { return fixedNow.AddDate(0, 0, 1) })))
	after, err := later.Coverage(ctx, 3)
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}
	if before.NbChildren != 2 {
		t.Fatalf("before = %+v", before)
	}
	if after.NbChildren != 2 || after.NbAdults != 2 {
		t.Fatalf("one day later Tessa is still eighteen: %+v", after)
	}
	year := NewService(svc.Store(), WithClock(ClockFunc(func() time.Time { return fixedNow.AddDate(1, 0, 0) })))
	aged, _ := year.Coverage(ctx, 3)
	if aged.NbChildren != 1 || aged.NbAdults != 3 {
		t.Fatalf("a year later Tessa is an adult: %+v", aged)
	}
}
