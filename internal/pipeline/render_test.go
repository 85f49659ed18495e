package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wealth-cli/internal/model"
)

func TestRender_Empty(t *testing.T) {
	t.Parallel()
	out := Render(nil)
	assert.Contains(t, out, "Customer Wealth Management Analysis")
	assert.Equal(t, 1, strings.Count(out, NoCustomers))
	assert.Equal(t, 0, countSections(out))
}

func TestRender_OneSectionPerView(t *testing.T) {
	t.Parallel()
	for _, n := range []int{1, 2, 7, 25} {
		t.Run(fmt.Sprintf("%d views", n), func(t *testing.T) {
			t.Parallel()
			views := make([]CustomerView, n)
			for i := range views {
				views[i] = CustomerView{ID: model.CustomerID(fmt.Sprintf("%06d", i))}
			}
			out := Render(views)
			assert.Equal(t, n, countSections(out))
			assert.NotContains(t, out, NoCustomers)
			assert.Equal(t, n, strings.Count(out, NoIncome))
		})
	}
}

func TestRender_Deterministic(t *testing.T) {
	t.Parallel()
	st := &model.State{
		TargetIDs:          []model.CustomerID{"789012", "123456"},
		DemographicResults: []model.DemographicResult{{CustomerID: "123456", Summary: "Single"}},
		Recommendations: []model.RecommendationResult{{
			CustomerID: "789012",
			Cards:      []model.CardRecommendation{{Card: "Fuel Saver", Reason: "commutes daily"}},
		}},
	}
	first := Render(BuildViews(st, EnumerateTargets))
	second := Render(BuildViews(st, EnumerateTargets))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("render not deterministic (-first +second):\n%s", diff)
	}
}

func TestRender_EscapesModelText(t *testing.T) {
	t.Parallel()
	out := Render([]CustomerView{{
		ID:          "789012",
		Demographic: `<script>alert("x")</script>`,
		Profiles:    []model.Profile{{Name: "Saver & Planner", Reason: "<b>bold</b>"}},
	}})
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<b>bold</b>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "Saver &amp; Planner")
}

func TestRender_Placeholders(t *testing.T) {
	t.Parallel()
	out := Render([]CustomerView{{ID: "123456", Demographic: "Married, resident since 2015"}})
	assert.Contains(t, out, "Married, resident since 2015")
	for _, p := range []string{NoProfiles, NoIncome, NoHoldings, NoRecommendations} {
		assert.Contains(t, out, p)
	}
	assert.NotContains(t, out, NoDemographic)
}

func TestFallbackReport(t *testing.T) {
	t.Parallel()
	out := fallbackReport([]CustomerView{{ID: "1<2", Income: "AED 25,000"}})
	assert.Contains(t, out, "Customer 1&lt;2")
	assert.Contains(t, out, "AED 25,000")
	assert.Contains(t, out, NoDemographic)
	assert.Contains(t, fallbackReport(nil), NoCustomers)
}

func TestReportCustomers(t *testing.T) {
	t.Parallel()
	st := &model.State{
		TargetIDs:          []model.CustomerID{"345678", "789012", "123456"},
		DemographicResults: []model.DemographicResult{{CustomerID: "789012", Summary: "a"}, {CustomerID: "123456", Summary: "b"}},
		IncomeResults:      []model.IncomeResult{{CustomerID: "345678", Summary: "c"}},
	}

	tests := []struct {
		name  string
		state *model.State
		mode  Enumeration
		want  []model.CustomerID
	}{
		{
			name:  "targets keep target order",
			state: st,
			mode:  EnumerateTargets,
			want:  []model.CustomerID{"345678", "789012", "123456"},
		},
		{
			name:  "demographic order only",
			state: st,
			mode:  EnumerateDemographic,
			want:  []model.CustomerID{"789012", "123456"},
		},
		{
			name: "targets without results are omitted",
			state: &model.State{
				TargetIDs:      []model.CustomerID{"789012", "999999"},
				HoldingResults: []model.HoldingResult{{CustomerID: "789012", Summary: "Visa"}},
			},
			mode: EnumerateTargets,
			want: []model.CustomerID{"789012"},
		},
		{
			name: "no targets uses result order",
			state: &model.State{
				TransactionResults: []model.TransactionResult{{CustomerID: "2"}},
				DemographicResults: []model.DemographicResult{{CustomerID: "1", Summary: "x"}},
			},
			mode: EnumerateTargets,
			want: []model.CustomerID{"1", "2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ReportCustomers(tt.state, tt.mode)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildViews_FirstRecordWins(t *testing.T) {
	t.Parallel()
	st := &model.State{
		TargetIDs: []model.CustomerID{"789012"},
		DemographicResults: []model.DemographicResult{
			{CustomerID: "789012", Summary: "  first  "},
			{CustomerID: "789012", Summary: "second"},
		},
		TransactionResults: []model.TransactionResult{{
			CustomerID: "789012",
			Profiles: []model.Profile{
				{Name: "A", Reason: "a"}, {Name: "B", Reason: "b"},
				{Name: "C", Reason: "c"}, {Name: "D", Reason: "d"},
			},
		}},
	}

	views := BuildViews(st, EnumerateTargets)
	require.Len(t, views, 1)
	assert.Equal(t, "first", views[0].Demographic)
	assert.Len(t, views[0].Profiles, model.MaxProfiles)
	assert.Empty(t, views[0].Income)
	assert.Nil(t, views[0].Cards)
}

func TestRenderStage_SetsReport(t *testing.T) {
	t.Parallel()
	st := model.NewState("", []model.CustomerID{"789012"})
	st.DemographicResults = []model.DemographicResult{{CustomerID: "789012", Summary: "Married"}}

	u, err := (&renderStage{enumerate: EnumerateTargets}).Run(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, u.Report)
	assert.Equal(t, 1, countSections(*u.Report))
	assert.Nil(t, st.Report, "stage must not mutate its input")
}
