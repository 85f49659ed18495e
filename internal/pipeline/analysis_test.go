package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wealth-cli/internal/capability"
	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/pkg/anthropic"
)

// cannedClient answers every message with the same text.
type cannedClient struct {
	text string
}

func (c cannedClient) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: c.text}},
		StopReason: "end_turn",
	}, nil
}

func llmStages(t *testing.T, text string) []Stage {
	t.Helper()
	llm := capability.NewLLM(cannedClient{text: text}, capability.LLMConfig{Model: "claude-sonnet-4-5-20250929"})
	return NewStages(testConfig(), Deps{Summarizer: llm})
}

func TestTransactionStage_ModelOutputTruncatedAndAudited(t *testing.T) {
	t.Parallel()
	stages := llmStages(t, `{"items":[{"customer_id":789012,"profiles":[
		{"profile_name":"Traveler","reason":"airline spend"},
		{"profile_name":"","reason":"unnamed"},
		{"profile_name":"Saver","reason":"low spend"},
		{"profile_name":"Foodie","reason":"restaurants"},
		{"profile_name":"Commuter","reason":"fuel"}]}]}`)

	st := model.NewState("", []model.CustomerID{"789012"})
	st.Transactions = &model.Table{
		Name:    "ftr_txns_hackathon",
		Columns: []string{"cif_id_mask", "txn_amount"},
		Rows:    [][]string{{"789012", "120.00"}},
	}

	u, err := stages[1].Run(context.Background(), st)
	require.NoError(t, err)

	require.Len(t, u.TransactionResults, 1)
	got := u.TransactionResults[0]
	assert.Equal(t, model.CustomerID("789012"), got.CustomerID)
	names := make([]string, 0, len(got.Profiles))
	for _, p := range got.Profiles {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Traveler", "Saver", "Foodie"}, names)

	var truncated bool
	for _, a := range u.AuditLog {
		if a.Message == "Truncated profiles for 789012 to 3" {
			truncated = true
		}
	}
	assert.True(t, truncated, "truncation must be audited")
}

func TestRecommendationStage_ModelOutputTruncatedAndAudited(t *testing.T) {
	t.Parallel()
	stages := llmStages(t, `{"items":[{"customer_id":"789012","cc_summary":[
		{"cc_recommended":"Platinum","recommended_reasons":"travel"},
		{"cc_recommended":"Cashback","recommended_reasons":"groceries"},
		{"cc_recommended":"Fuel","recommended_reasons":"commute"},
		{"cc_recommended":"Student","recommended_reasons":"none"}]}]}`)

	st := model.NewState("", []model.CustomerID{"789012"})
	st.DemographicResults = []model.DemographicResult{{CustomerID: "789012", Summary: "Married"}}

	u, err := stages[5].Run(context.Background(), st)
	require.NoError(t, err)

	require.Len(t, u.Recommendations, 1)
	assert.Len(t, u.Recommendations[0].Cards, model.MaxRecommendations)
	var truncated bool
	for _, a := range u.AuditLog {
		if a.Message == "Truncated recommendations for 789012 to 3" {
			truncated = true
		}
	}
	assert.True(t, truncated, "truncation must be audited")
}
