package model

import "strings"

// Upper bounds on list payloads returned by the summarization capability.
const (
	MaxProfiles        = 3
	MaxRecommendations = 3
)

// Result is implemented by every per-customer result record.
type Result interface {
	Customer() CustomerID
}

// Profile is a labeled behavioral profile derived from transactions.
type Profile struct {
	Name   string `json:"profile_name" validate:"required"`
	Reason string `json:"reason"`
}

// TransactionResult holds up to MaxProfiles behavioral profiles for a customer.
type TransactionResult struct {
	CustomerID CustomerID `json:"customer_id" validate:"required"`
	Profiles   []Profile  `json:"profiles" validate:"max=3,dive"`
}

// Customer implements Result.
func (r TransactionResult) Customer() CustomerID { return r.CustomerID }

// DemographicResult is a free-text demographic summary.
type DemographicResult struct {
	CustomerID CustomerID `json:"customer_id" validate:"required"`
	Summary    string     `json:"summary"`
}

// Customer implements Result.
func (r DemographicResult) Customer() CustomerID { return r.CustomerID }

// IncomeResult is a free-text income summary.
type IncomeResult struct {
	CustomerID CustomerID `json:"customer_id" validate:"required"`
	Summary    string     `json:"income_info"`
}

// Customer implements Result.
func (r IncomeResult) Customer() CustomerID { return r.CustomerID }

// HoldingResult summarizes the credit cards a customer currently holds.
type HoldingResult struct {
	CustomerID CustomerID `json:"customer_id" validate:"required"`
	Summary    string     `json:"cc_holding_info"`
}

// Customer implements Result.
func (r HoldingResult) Customer() CustomerID { return r.CustomerID }

// CardRecommendation is one recommended credit card product.
type CardRecommendation struct {
	Card   string `json:"cc_recommended" validate:"required"`
	Reason string `json:"recommended_reasons"`
}

// RecommendationResult holds up to MaxRecommendations cards for a customer.
type RecommendationResult struct {
	CustomerID CustomerID           `json:"customer_id" validate:"required"`
	Cards      []CardRecommendation `json:"cc_summary" validate:"max=3,dive"`
}

// Customer implements Result.
func (r RecommendationResult) Customer() CustomerID { return r.CustomerID }

// Capped returns r with at most MaxProfiles profiles and whether any were cut.
func (r TransactionResult) Capped() (TransactionResult, bool) {
	if len(r.Profiles) <= MaxProfiles {
		return r, false
	}
	r.Profiles = append([]Profile(nil), r.Profiles[:MaxProfiles]...)
	return r, true
}

// Capped returns r with at most MaxRecommendations cards and whether any were cut.
func (r RecommendationResult) Capped() (RecommendationResult, bool) {
	if len(r.Cards) <= MaxRecommendations {
		return r, false
	}
	r.Cards = append([]CardRecommendation(nil), r.Cards[:MaxRecommendations]...)
	return r, true
}

// Pruned returns r without profiles that have a blank name, and how many were removed.
func (r TransactionResult) Pruned() (TransactionResult, int) {
	kept := make([]Profile, 0, len(r.Profiles))
	for _, p := range r.Profiles {
		if strings.TrimSpace(p.Name) != "" {
			kept = append(kept, p)
		}
	}
	removed := len(r.Profiles) - len(kept)
	if removed > 0 {
		r.Profiles = kept
	}
	return r, removed
}

// Pruned returns r without cards that have a blank name, and how many were removed.
func (r RecommendationResult) Pruned() (RecommendationResult, int) {
	kept := make([]CardRecommendation, 0, len(r.Cards))
	for _, c := range r.Cards {
		if strings.TrimSpace(c.Card) != "" {
			kept = append(kept, c)
		}
	}
	removed := len(r.Cards) - len(kept)
	if removed > 0 {
		r.Cards = kept
	}
	return r, removed
}
