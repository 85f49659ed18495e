package pipeline

import (
	"github.com/sells-group/wealth-cli/internal/capability"
	"github.com/sells-group/wealth-cli/internal/model"
)

// Deps are the external collaborators the stages call.
type Deps struct {
	Loader     TableLoader
	Catalogue  CatalogueLoader
	Summarizer capability.Summarizer
	// Extractor is optional; without it targets come from the request or
	// the configured defaults.
	Extractor capability.IDExtractor
}

// NewStages builds the fixed stage chain.
func NewStages(cfg Config, deps Deps) []Stage {
	cfg = cfg.withDefaults()
	return []Stage{
		&filterStage{cfg: cfg, loader: deps.Loader, extractor: deps.Extractor},
		&analysisStage[model.TransactionResult]{
			name:         StageTransaction,
			output:       "transaction_results",
			missing:      "Transaction data missing",
			instructions: "Analyze the transaction data. Assign up to 3 behavioral profiles per customer, each with a short reason grounded in the transactions.",
			columns:      cfg.Columns.Transaction,
			table:        func(st *model.State) *model.Table { return st.Transactions },
			set:          func(u *model.Update, r []model.TransactionResult) { u.TransactionResults = r },
			summarizer:   deps.Summarizer,
			cfg:          cfg,
		},
		&analysisStage[model.DemographicResult]{
			name:         StageDemographic,
			output:       "demographic_results",
			missing:      "Demographic data missing",
			instructions: "Analyze the demographic data. Write a short demographic summary for each customer.",
			columns:      cfg.Columns.Demographic,
			table:        func(st *model.State) *model.Table { return st.Demographics },
			set:          func(u *model.Update, r []model.DemographicResult) { u.DemographicResults = r },
			summarizer:   deps.Summarizer,
			cfg:          cfg,
		},
		&analysisStage[model.IncomeResult]{
			name:         StageIncome,
			output:       "income_results",
			missing:      "Income data missing",
			instructions: "Analyze the income data. For each customer, summarize income and compare the income derived from transactions with the KYC declared income.",
			columns:      cfg.Columns.Income,
			table:        func(st *model.State) *model.Table { return st.Income },
			set:          func(u *model.Update, r []model.IncomeResult) { u.IncomeResults = r },
			summarizer:   deps.Summarizer,
			cfg:          cfg,
		},
		&analysisStage[model.HoldingResult]{
			name:         StageHolding,
			output:       "holding_results",
			missing:      "Credit card holding data missing",
			instructions: "Analyze the credit card holdings. For each customer, summarize the cards held, their limits, and any closed accounts.",
			columns:      cfg.Columns.Holding,
			table:        func(st *model.State) *model.Table { return st.Holdings },
			set:          func(u *model.Update, r []model.HoldingResult) { u.HoldingResults = r },
			summarizer:   deps.Summarizer,
			cfg:          cfg,
		},
		&recommendationStage{cfg: cfg, catalogue: deps.Catalogue, summarizer: deps.Summarizer},
		&renderStage{enumerate: cfg.Enumerate},
	}
}
