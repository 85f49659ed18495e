package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sells-group/wealth-cli/internal/capability"
	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/internal/source"
)

type recommendationStage struct {
	cfg        Config
	catalogue  CatalogueLoader
	summarizer capability.Summarizer
}

func (s *recommendationStage) Name() string { return StageRecommendation }

func (s *recommendationStage) Outputs() []string { return []string{"recommendations"} }

func (s *recommendationStage) Run(ctx context.Context, st *model.State) (model.Update, error) {
	u := model.Update{Stage: StageRecommendation}

	if len(st.DemographicResults) == 0 && len(st.TransactionResults) == 0 &&
		len(st.IncomeResults) == 0 && len(st.HoldingResults) == 0 {
		u.Audit(model.AuditWarn, "Recommendation data missing")
		return u, nil
	}

	cards := source.CatalogueNotFound
	if s.catalogue != nil {
		cards = s.catalogue.LoadCatalogue(ctx, s.cfg.Sources.Catalogue)
	}
	if cards == source.CatalogueNotFound {
		u.Audit(model.AuditWarn, "Credit card catalogue unavailable")
	}

	sections := []capability.Section{
		{Title: "Demographics", Body: toJSON(st.DemographicResults)},
		{Title: "Transactions", Body: toJSON(st.TransactionResults)},
		{Title: "Income", Body: toJSON(st.IncomeResults)},
		{Title: "Credit card holdings", Body: toJSON(st.HoldingResults)},
		{Title: "Available credit cards", Body: cards},
	}

	items := summarize[model.RecommendationResult](ctx, s.summarizer, capability.Request{
		Kind: capability.KindRecommendation,
		Instructions: fmt.Sprintf(
			"Recommend at most %d credit cards per customer from the available list, each with a reason based on the analysis below.",
			model.MaxRecommendations,
		),
		Context: sections,
	}, s.cfg.CapabilityTimeout, &u)

	u.Recommendations = enforce(items, st.TargetIDs, s.cfg.Scope, &u)
	u.Audit(model.AuditInfo, fmt.Sprintf("%d recommendation result(s)", len(u.Recommendations)))
	return u, nil
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
