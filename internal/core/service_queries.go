package core

import (
	"context"

	"safetynet/internal/query"
	"safetynet/pkg/domain"
)

// Coverage lists the residents covered by station with adult and child
// counts. It fails with NotFoundError when no address is assigned to station.
func (s *Service) Coverage(ctx context.Context, station int) (query.CoverageResult, error) {
	today := s.Today()
	var out query.CoverageResult
	err := s.read(ctx, "coverage", func(repos Repositories) error {
		assignments := repos.Stations.FindByStationNumber(station)
		if len(assignments) == 0 {
			return domain.NotFoundError{Entity: EntityStationAssignment, Key: stationKey(station)}
		}
		records := query.IndexRecords(repos.MedicalRecords.List())
		out = query.Coverage(households(repos, assignments), records, today)
		return nil
	})
	return out, err
}

// ChildAlert lists each child living at address with the rest of the
// household. A household without children yields an empty list.
func (s *Service) ChildAlert(ctx context.Context, address string) ([]query.ChildAlert, error) {
	today := s.Today()
	var out []query.ChildAlert
	err := s.read(ctx, "child_alert", func(repos Repositories) error {
		residents := repos.Residents.FindByAddress(address)
		out = query.HouseChildren(residents, query.IndexRecords(repos.MedicalRecords.List()), today)
		return nil
	})
	return out, err
}

// PhoneAlert returns the distinct phone numbers of residents covered by
// station. It fails with NotFoundError when no address is assigned to station.
func (s *Service) PhoneAlert(ctx context.Context, station int) ([]string, error) {
	var out []string
	err := s.read(ctx, "phone_alert", func(repos Repositories) error {
		assignments := repos.Stations.FindByStationNumber(station)
		if len(assignments) == 0 {
			return domain.NotFoundError{Entity: EntityStationAssignment, Key: stationKey(station)}
		}
		out = query.Phones(households(repos, assignments))
		return nil
	})
	return out, err
}

// Fire returns the station covering address and its residents' medical
// details. An unassigned address yields a nil station rather than an error.
func (s *Service) Fire(ctx context.Context, address string) (query.FireResult, error) {
	today := s.Today()
	var out query.FireResult
	err := s.read(ctx, "fire", func(repos Repositories) error {
		var station *int
		if a, ok := repos.Stations.FindByAddress(address); ok {
			n := a.Station
			station = &n
		}
		residents := repos.Residents.FindByAddress(address)
		out = query.Fire(station, residents, query.IndexRecords(repos.MedicalRecords.List()), today)
		return nil
	})
	return out, err
}

// Flood groups the residents covered by any of stations by address. Each
// address is visited once; unknown station numbers contribute nothing.
func (s *Service) Flood(ctx context.Context, stations []int) (query.FloodResult, error) {
	today := s.Today()
	var out query.FloodResult
	err := s.read(ctx, "flood", func(repos Repositories) error {
		seen := make(map[string]struct{})
		var groups []query.Household
		for _, station := range stations {
			for _, a := range repos.Stations.FindByStationNumber(station) {
				if _, dup := seen[a.Address]; dup {
					continue
				}
				seen[a.Address] = struct{}{}
				groups = append(groups, query.Household{Address: a.Address, Residents: repos.Residents.FindByAddress(a.Address)})
			}
		}
		out = query.Flood(groups, query.IndexRecords(repos.MedicalRecords.List()), today)
		return nil
	})
	return out, err
}

// PersonInfo returns the medical profile of every resident named lastName
// who has a record. It fails with NotFoundError when nobody has that last name.
func (s *Service) PersonInfo(ctx context.Context, lastName string) ([]query.PersonInfo, error) {
	today := s.Today()
	var out []query.PersonInfo
	err := s.read(ctx, "person_info", func(repos Repositories) error {
		residents := repos.Residents.FindByLastName(lastName)
		if len(residents) == 0 {
			return domain.NotFoundError{Entity: EntityResident, Key: lastName}
		}
		out = query.PersonInfos(residents, query.IndexRecords(repos.MedicalRecords.List()), today)
		return nil
	})
	return out, err
}

// CommunityEmail returns the distinct emails of residents of city.
func (s *Service) CommunityEmail(ctx context.Context, city string) ([]string, error) {
	var out []string
	err := s.read(ctx, "community_email", func(repos Repositories) error {
		out = query.Emails(repos.Residents.FindByCity(city))
		return nil
	})
	return out, err
}
