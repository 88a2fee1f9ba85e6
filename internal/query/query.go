// Package query answers the seven dispatch queries. Every function is pure:
// it works on slices already read from the repositories and never touches
// the store, so one consistent read can feed a whole query.
package query

import (
	"safetynet/pkg/domain"
)

// Household groups the residents found at one address.
type Household struct {
	Address   string
	Residents []domain.Resident
}

// Records indexes medical records by person key. It is built once per query
// so the resident-to-record join is a map lookup instead of a scan.
type Records map[domain.PersonKey]domain.MedicalRecord

// IndexRecords builds the name-key index. The first record for a key wins,
// matching repository lookups.
func IndexRecords(records []domain.MedicalRecord) Records {
	idx := make(Records, len(records))
	for _, rec := range records {
		if _, seen := idx[rec.Key()]; seen {
			continue
		}
		idx[rec.Key()] = rec
	}
	return idx
}

// Lookup returns the record joined to key.
func (r Records) Lookup(key domain.PersonKey) (domain.MedicalRecord, bool) {
	rec, ok := r[key]
	return rec, ok
}

// Age returns the whole-year age of key on today, or nil when no record or
// birthdate is known.
func (r Records) Age(key domain.PersonKey, today domain.Date) *int {
	rec, ok := r[key]
	if !ok || rec.Birthdate.IsZero() {
		return nil
	}
	age := domain.AgeOn(rec.Birthdate, today)
	return &age
}

// CoveredPerson is one line of the coverage listing.
type CoveredPerson struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
}

// CoverageResult answers "who does station N cover".
type CoverageResult struct {
	Persons    []CoveredPerson `json:"persons"`
	NbAdults   int             `json:"nbAdults"`
	NbChildren int             `json:"nbChildren"`
}

// Coverage lists every resident of the households in resolution order and
// counts adults and children among those with a known age.
func Coverage(households []Household, records Records, today domain.Date) CoverageResult {
	out := CoverageResult{Persons: []CoveredPerson{}}
	for _, h := range households {
		for _, r := range h.Residents {
			out.Persons = append(out.Persons, CoveredPerson{
				FirstName: r.FirstName,
				LastName:  r.LastName,
				Address:   r.Address,
				Phone:     r.Phone,
			})
			age := records.Age(r.Key(), today)
			switch {
			case age == nil:
			case domain.IsAdult(*age):
				out.NbAdults++
			default:
				out.NbChildren++
			}
		}
	}
	return out
}

// HouseMember is a person listed with an optional age.
type HouseMember struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       *int   `json:"age"`
}

// ChildAlert names one child and everyone else living with them.
type ChildAlert struct {
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Age          int           `json:"age"`
	HouseMembers []HouseMember `json:"houseMembers"`
}

// HouseChildren produces one entry per child at the address. Residents with
// an unknown age are never children but appear as house members.
func HouseChildren(residents []domain.Resident, records Records, today domain.Date) []ChildAlert {
	ages := make([]*int, len(residents))
	for i, r := range residents {
		ages[i] = records.Age(r.Key(), today)
	}
	out := []ChildAlert{}
	for i, r := range residents {
		if ages[i] == nil || domain.IsAdult(*ages[i]) {
			continue
		}
		members := make([]HouseMember, 0, len(residents)-1)
		for j, other := range residents {
			if j == i {
				continue
			}
			members = append(members, HouseMember{FirstName: other.FirstName, LastName: other.LastName, Age: ages[j]})
		}
		out = append(out, ChildAlert{FirstName: r.FirstName, LastName: r.LastName, Age: *ages[i], HouseMembers: members})
	}
	return out
}

// Phones collects the distinct phone numbers of every covered resident in
// first-seen order. An empty number is a value like any other.
func Phones(households []Household) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, h := range households {
		for _, r := range h.Residents {
			out = appendUnique(out, seen, r.Phone)
		}
	}
	return out
}

// MedicalResident is a resident joined to their medical record.
type MedicalResident struct {
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Age         *int     `json:"age"`
	Phone       string   `json:"phone"`
	Medications []string `json:"medications"`
	Allergies   []string `json:"allergies"`
}

// FireResult answers "who lives at this address and which station covers it".
type FireResult struct {
	Station   *int              `json:"station"`
	Residents []MedicalResident `json:"residents"`
}

// Fire joins the residents of one address to their records. station is nil
// when the address has no assignment.
func Fire(station *int, residents []domain.Resident, records Records, today domain.Date) FireResult {
	return FireResult{Station: station, Residents: medicalResidents(residents, records, today)}
}

func medicalResidents(residents []domain.Resident, records Records, today domain.Date) []MedicalResident {
	out := make([]MedicalResident, 0, len(residents))
	for _, r := range residents {
		m := MedicalResident{
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Phone:       r.Phone,
			Medications: []string{},
			Allergies:   []string{},
		}
		if rec, ok := records.Lookup(r.Key()); ok {
			m.Age = records.Age(r.Key(), today)
			m.Medications = copyStrings(rec.Medications)
			m.Allergies = copyStrings(rec.Allergies)
		}
		out = append(out, m)
	}
	return out
}

// PersonInfo is the medical profile returned by last-name lookups.
type PersonInfo struct {
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Age         int      `json:"age"`
	Email       string   `json:"email"`
	Medications []string `json:"medications"`
	Allergies   []string `json:"allergies"`
}

// PersonInfos joins residents to their records, dropping residents with no record.
func PersonInfos(residents []domain.Resident, records Records, today domain.Date) []PersonInfo {
	out := []PersonInfo{}
	for _, r := range residents {
		rec, ok := records.Lookup(r.Key())
		if !ok {
			continue
		}
		out = append(out, PersonInfo{
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Age:         domain.AgeOn(rec.Birthdate, today),
			Email:       r.Email,
			Medications: copyStrings(rec.Medications),
			Allergies:   copyStrings(rec.Allergies),
		})
	}
	return out
}

// Emails collects the distinct emails of residents in first-seen order.
func Emails(residents []domain.Resident) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range residents {
		out = appendUnique(out, seen, r.Email)
	}
	return out
}

func appendUnique(out []string, seen map[string]struct{}, v string) []string {
	if _, ok := seen[v]; ok {
		return out
	}
	seen[v] = struct{}{}
	return append(out, v)
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
