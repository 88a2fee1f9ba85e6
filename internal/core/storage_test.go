package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const storageSeed = `{
  "persons": [
    {"firstName": "John", "lastName": "Boyd", "address": "1509 Culver St", "city": "Culver", "zip": "97451", "phone": "841-874-6512", "email": "jaboyd@email.com"}
  ],
  "firestations": [
    {"address": "1509 Culver St", "station": "3"}
  ],
  "medicalrecords": [
    {"firstName": "John", "lastName": "Boyd", "birthdate": "03/06/1984", "medications": ["aznol:350mg"], "allergies": ["nillacilan"]}
  ]
}`

func writeDocument(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestOpenPersistentStoreFSRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeDocument(t, dir, "data.json", storageSeed)
	cfg := StorageConfig{Driver: StorageFS, DataPath: path}

	store, err := OpenPersistentStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc := NewService(store, WithClock(fixedClock()))
	created := boyd("Felicia")
	mustCreateResident(t, svc, created)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenPersistentStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	svc = NewService(reopened, WithClock(fixedClock()))
	got, err := svc.GetResident(ctx, created.Key())
	if err != nil || got != created {
		t.Fatalf("reloaded resident %+v, %v", got, err)
	}
	station, err := svc.GetStationAssignment(ctx, "1509 Culver St")
	if err != nil || station.Station != 3 {
		t.Fatalf("string station should load as integer: %+v %v", station, err)
	}
	cov, err := svc.Coverage(ctx, 3)
	if err != nil || cov.NbAdults != 1 || len(cov.Persons) != 2 {
		t.Fatalf("coverage after reload: %+v %v", cov, err)
	}
}

func TestOpenPersistentStoreFSLoadFailuresAreFatal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cases := map[string]StorageConfig{
		"missing file": {Driver: StorageFS, DataPath: filepath.Join(dir, "absent.json")},
		"malformed":    {Driver: StorageFS, DataPath: writeDocument(t, dir, "bad.json", "{not json")},
		"no path":      {Driver: StorageFS},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := OpenPersistentStore(ctx, cfg, nil); err == nil {
				t.Fatal("expected load failure")
			}
		})
	}
}

func TestOpenPersistentStoreMemorySeed(t *testing.T) {
	ctx := context.Background()
	seed := writeDocument(t, t.TempDir(), "seed.json", storageSeed)
	store, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageMemory, SeedPath: seed}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc := NewService(store, WithClock(fixedClock()))
	residents, _ := svc.ListResidents(ctx)
	if len(residents) != 1 {
		t.Fatalf("expected seeded resident, got %+v", residents)
	}

	empty, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageMemory}, nil)
	if err != nil {
		t.Fatalf("open empty: %v", err)
	}
	residents, _ = NewService(empty).ListResidents(ctx)
	if len(residents) != 0 {
		t.Fatalf("expected empty store, got %+v", residents)
	}

	if _, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageMemory, SeedPath: filepath.Join(t.TempDir(), "nope.json")}, nil); err == nil {
		t.Fatal("missing seed should fail")
	}
}

func TestOpenPersistentStoreSQLiteSeedsOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := StorageConfig{
		Driver:     StorageSQLite,
		SQLitePath: filepath.Join(dir, "safetynet.db"),
		SeedPath:   writeDocument(t, dir, "seed.json", storageSeed),
	}
	store, err := OpenPersistentStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc := NewService(store, WithClock(fixedClock()))
	if _, err := svc.DeleteResident(ctx, PersonKey{FirstName: "John", LastName: "Boyd"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_ = store.Close()

	reopened, err := OpenPersistentStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	residents, _ := NewService(reopened).ListResidents(ctx)
	if len(residents) != 0 {
		t.Fatalf("stored state should win over the seed, got %+v", residents)
	}
	records, _ := NewService(reopened).ListMedicalRecords(ctx)
	if len(records) != 1 {
		t.Fatalf("medical record should survive resident delete, got %+v", records)
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	_, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: "floppy"}, nil)
	if err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func TestLoadDocumentFileWrapsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	_, err := LoadDocumentFile(path)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist, got %v", err)
	}
}
