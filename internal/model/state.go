package model

import (
	"slices"
	"time"

	"github.com/rotisserie/eris"
)

// ErrFieldAlreadySet is returned by Apply when an update would overwrite a
// set-once field with a different value.
var ErrFieldAlreadySet = eris.New("model: field already set")

// AuditLevel is the severity of an audit entry.
type AuditLevel string

const (
	AuditInfo  AuditLevel = "info"
	AuditWarn  AuditLevel = "warn"
	AuditError AuditLevel = "error"
)

// AuditEntry is one human-readable trace line.
type AuditEntry struct {
	Stage   string     `json:"stage"`
	Level   AuditLevel `json:"level"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// State is the record threaded through every pipeline stage. It only grows:
// set-once fields are never overwritten and collections only append.
type State struct {
	Request   string       `json:"request,omitempty"`
	TargetIDs []CustomerID `json:"target_ids"`

	Transactions *Table `json:"transactions,omitempty"`
	Demographics *Table `json:"demographics,omitempty"`
	Income       *Table `json:"income,omitempty"`
	Holdings     *Table `json:"holdings,omitempty"`

	TransactionResults []TransactionResult    `json:"transaction_results"`
	DemographicResults []DemographicResult    `json:"demographic_results"`
	IncomeResults      []IncomeResult         `json:"income_results"`
	HoldingResults     []HoldingResult        `json:"holding_results"`
	Recommendations    []RecommendationResult `json:"recommendations"`

	Report *string `json:"report,omitempty"`

	AuditLog     []AuditEntry `json:"audit_log"`
	CurrentStage string       `json:"current_stage,omitempty"`
}

// NewState creates the initial state for a run. targets may be nil, in which
// case the filter stage resolves them.
func NewState(request string, targets []CustomerID) *State {
	s := &State{Request: request}
	if targets != nil {
		s.TargetIDs = UniqueIDs(targets)
	}
	return s
}

// Update is the delta a stage returns. Nil fields are left untouched.
type Update struct {
	Stage string `json:"stage"`

	TargetIDs []CustomerID `json:"target_ids,omitempty"`

	Transactions *Table `json:"transactions,omitempty"`
	Demographics *Table `json:"demographics,omitempty"`
	Income       *Table `json:"income,omitempty"`
	Holdings     *Table `json:"holdings,omitempty"`

	TransactionResults []TransactionResult    `json:"transaction_results,omitempty"`
	DemographicResults []DemographicResult    `json:"demographic_results,omitempty"`
	IncomeResults      []IncomeResult         `json:"income_results,omitempty"`
	HoldingResults     []HoldingResult        `json:"holding_results,omitempty"`
	Recommendations    []RecommendationResult `json:"recommendations,omitempty"`

	Report *string `json:"report,omitempty"`

	AuditLog []AuditEntry `json:"audit_log,omitempty"`
}

// Audit appends an entry stamped with the update's stage.
func (u *Update) Audit(level AuditLevel, msg string) {
	u.AuditLog = append(u.AuditLog, AuditEntry{
		Stage:   u.Stage,
		Level:   level,
		Message: msg,
		At:      time.Now().UTC(),
	})
}

// Apply merges u into s. Either the whole update is applied or, on error,
// none of it.
func (s *State) Apply(u Update) error {
	if u.TargetIDs != nil && s.TargetIDs != nil && !slices.Equal(u.TargetIDs, s.TargetIDs) {
		return eris.Wrap(ErrFieldAlreadySet, "target_ids")
	}
	for name, pair := range map[string][2]*Table{
		"transactions": {s.Transactions, u.Transactions},
		"demographics": {s.Demographics, u.Demographics},
		"income":       {s.Income, u.Income},
		"holdings":     {s.Holdings, u.Holdings},
	} {
		if pair[0] != nil && pair[1] != nil {
			return eris.Wrap(ErrFieldAlreadySet, name)
		}
	}
	if s.Report != nil && u.Report != nil {
		return eris.Wrap(ErrFieldAlreadySet, "report")
	}

	if u.TargetIDs != nil && s.TargetIDs == nil {
		s.TargetIDs = slices.Clone(u.TargetIDs)
	}
	if u.Transactions != nil {
		s.Transactions = u.Transactions
	}
	if u.Demographics != nil {
		s.Demographics = u.Demographics
	}
	if u.Income != nil {
		s.Income = u.Income
	}
	if u.Holdings != nil {
		s.Holdings = u.Holdings
	}
	s.TransactionResults = append(s.TransactionResults, u.TransactionResults...)
	s.DemographicResults = append(s.DemographicResults, u.DemographicResults...)
	s.IncomeResults = append(s.IncomeResults, u.IncomeResults...)
	s.HoldingResults = append(s.HoldingResults, u.HoldingResults...)
	s.Recommendations = append(s.Recommendations, u.Recommendations...)
	if u.Report != nil {
		r := *u.Report
		s.Report = &r
	}
	s.AuditLog = append(s.AuditLog, u.AuditLog...)
	if u.Stage != "" {
		s.CurrentStage = u.Stage
	}
	return nil
}

// Clone returns a deep copy of s. Tables are shared since they are never
// mutated once loaded.
func (s *State) Clone() *State {
	c := *s
	c.TargetIDs = slices.Clone(s.TargetIDs)
	c.TransactionResults = slices.Clone(s.TransactionResults)
	for i := range c.TransactionResults {
		c.TransactionResults[i].Profiles = slices.Clone(c.TransactionResults[i].Profiles)
	}
	c.DemographicResults = slices.Clone(s.DemographicResults)
	c.IncomeResults = slices.Clone(s.IncomeResults)
	c.HoldingResults = slices.Clone(s.HoldingResults)
	c.Recommendations = slices.Clone(s.Recommendations)
	for i := range c.Recommendations {
		c.Recommendations[i].Cards = slices.Clone(c.Recommendations[i].Cards)
	}
	if s.Report != nil {
		r := *s.Report
		c.Report = &r
	}
	c.AuditLog = slices.Clone(s.AuditLog)
	return &c
}

// ResultIDs returns every customer identifier that has at least one result
// record of any kind, in first-seen order across the collections.
func (s *State) ResultIDs() []CustomerID {
	var ids []CustomerID
	for _, r := range s.DemographicResults {
		ids = append(ids, r.CustomerID)
	}
	for _, r := range s.TransactionResults {
		ids = append(ids, r.CustomerID)
	}
	for _, r := range s.IncomeResults {
		ids = append(ids, r.CustomerID)
	}
	for _, r := range s.HoldingResults {
		ids = append(ids, r.CustomerID)
	}
	for _, r := range s.Recommendations {
		ids = append(ids, r.CustomerID)
	}
	return UniqueIDs(ids)
}
