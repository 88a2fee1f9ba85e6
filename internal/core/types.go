package core

import "safetynet/pkg/domain"

type (
	EntityType         = domain.EntityType
	Resident           = domain.Resident
	StationAssignment  = domain.StationAssignment
	MedicalRecord      = domain.MedicalRecord
	PersonKey          = domain.PersonKey
	Date               = domain.Date
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityResident          = domain.EntityResident
	EntityStationAssignment = domain.EntityStationAssignment
	EntityMedicalRecord     = domain.EntityMedicalRecord
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
