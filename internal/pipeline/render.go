package pipeline

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/wealth-cli/internal/model"
)

// Report placeholders.
const (
	NoCustomers       = "No customer data available for analysis"
	NoDemographic     = "No demographic data"
	NoProfiles        = "No behavioral profiles identified"
	NoIncome          = "No income data"
	NoHoldings        = "No CC holdings data"
	NoRecommendations = "No credit card recommendations"
)

//go:embed report.html.tmpl
var reportTemplateText string

var reportTemplate = template.Must(template.New("report").Parse(reportTemplateText))

// CustomerView is the merged per-customer section of the report.
type CustomerView struct {
	ID          model.CustomerID
	Demographic string
	Profiles    []model.Profile
	Income      string
	Holding     string
	Cards       []model.CardRecommendation
}

type renderStage struct {
	enumerate Enumeration
}

func (s *renderStage) Name() string { return StageRender }

func (s *renderStage) Outputs() []string { return []string{"report"} }

func (s *renderStage) Run(_ context.Context, st *model.State) (model.Update, error) {
	u := model.Update{Stage: StageRender}
	views := BuildViews(st, s.enumerate)
	report := Render(views)
	u.Report = &report
	u.Audit(model.AuditInfo, fmt.Sprintf("Rendered report for %d customer(s)", len(views)))
	return u, nil
}

// ReportCustomers returns the identifiers that get a report section.
func ReportCustomers(st *model.State, mode Enumeration) []model.CustomerID {
	if mode == EnumerateDemographic {
		ids := make([]model.CustomerID, 0, len(st.DemographicResults))
		for _, r := range st.DemographicResults {
			ids = append(ids, r.CustomerID)
		}
		return model.UniqueIDs(ids)
	}

	withResults := st.ResultIDs()
	if len(st.TargetIDs) == 0 {
		return withResults
	}
	has := model.IDSet(withResults)
	ids := make([]model.CustomerID, 0, len(st.TargetIDs))
	for _, id := range model.UniqueIDs(st.TargetIDs) {
		if _, ok := has[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// BuildViews joins the five result collections by customer id. The first
// record per customer wins in each collection.
func BuildViews(st *model.State, mode Enumeration) []CustomerView {
	ids := ReportCustomers(st, mode)
	views := make([]CustomerView, 0, len(ids))
	for _, id := range ids {
		v := CustomerView{ID: id}
		if r, ok := find(st.DemographicResults, id); ok {
			v.Demographic = strings.TrimSpace(r.Summary)
		}
		if r, ok := find(st.TransactionResults, id); ok {
			r, _ = r.Capped()
			v.Profiles = r.Profiles
		}
		if r, ok := find(st.IncomeResults, id); ok {
			v.Income = strings.TrimSpace(r.Summary)
		}
		if r, ok := find(st.HoldingResults, id); ok {
			v.Holding = strings.TrimSpace(r.Summary)
		}
		if r, ok := find(st.Recommendations, id); ok {
			r, _ = r.Capped()
			v.Cards = r.Cards
		}
		views = append(views, v)
	}
	return views
}

func find[T model.Result](items []T, id model.CustomerID) (T, bool) {
	for _, item := range items {
		if item.Customer() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Render produces the HTML report. It never fails: if the template cannot be
// executed a plain escaped document is returned instead.
func Render(views []CustomerView) (out string) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("pipeline: render panicked", zap.Any("panic", r))
			out = fallbackReport(views)
		}
	}()

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, struct{ Customers []CustomerView }{views}); err != nil {
		zap.L().Error("pipeline: render template", zap.Error(err))
		return fallbackReport(views)
	}
	return buf.String()
}

func fallbackReport(views []CustomerView) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><body><h1>Customer Wealth Management Analysis</h1>\n")
	if len(views) == 0 {
		fmt.Fprintf(&b, "<p>%s</p>\n", NoCustomers)
	}
	for _, v := range views {
		fmt.Fprintf(&b, "<h2>Customer %s</h2>\n", html.EscapeString(string(v.ID)))
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(orPlaceholder(v.Demographic, NoDemographic)))
		if len(v.Profiles) == 0 {
			fmt.Fprintf(&b, "<p>%s</p>\n", NoProfiles)
		}
		for _, p := range v.Profiles {
			fmt.Fprintf(&b, "<p>%s: %s</p>\n", html.EscapeString(p.Name), html.EscapeString(p.Reason))
		}
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(orPlaceholder(v.Income, NoIncome)))
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(orPlaceholder(v.Holding, NoHoldings)))
		if len(v.Cards) == 0 {
			fmt.Fprintf(&b, "<p>%s</p>\n", NoRecommendations)
		}
		for _, c := range v.Cards {
			fmt.Fprintf(&b, "<p>%s: %s</p>\n", html.EscapeString(c.Card), html.EscapeString(c.Reason))
		}
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}
