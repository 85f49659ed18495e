package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wealth-cli/internal/capability"
	"github.com/sells-group/wealth-cli/internal/config"
	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/internal/pipeline"
	"github.com/sells-group/wealth-cli/internal/source"
	"github.com/sells-group/wealth-cli/internal/store"
)

type stubLoader struct{}

func (stubLoader) Load(_ context.Context, path string) (*model.Table, error) {
	if path == "" {
		return nil, eris.Wrap(source.ErrDataUnavailable, "empty path")
	}
	return &model.Table{
		Name:    filepath.Base(path),
		Columns: []string{"cif_id_mask", "value"},
		Rows:    [][]string{{"789012", "a"}, {"123456", "b"}},
	}, nil
}

func (stubLoader) LoadCatalogue(context.Context, string) string { return "Platinum Travel" }

// stubSummarizer only answers demographic requests.
type stubSummarizer struct{}

func (stubSummarizer) Summarize(_ context.Context, req capability.Request) (*capability.Response, error) {
	if req.Kind != capability.KindDemographic {
		return nil, nil
	}
	var out []model.DemographicResult
	for _, id := range req.Table.CustomerIDs("cif_id_mask") {
		out = append(out, model.DemographicResult{CustomerID: id, Summary: "Resident since 2015"})
	}
	return capability.NewResponse(out), nil
}

func testAppConfig() *config.Config {
	c := &config.Config{}
	c.Sources.Transactions = "txns.csv"
	c.Sources.Demographics = "customers.xlsx"
	c.Sources.Income = "income.xlsx"
	c.Sources.Holdings = "cc.xlsx"
	c.Sources.Catalogue = "cards.txt"
	c.Sources.DefaultIDs = []string{"789012"}
	c.Pipeline.CapabilityTimeoutSecs = 5
	c.Pipeline.ScopePolicy = "filter"
	c.Pipeline.RenderEnumerate = "targets"
	c.Pipeline.Checkpoint = true
	return c
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "wealth.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func newTestPipeline(t *testing.T, st store.Store, sinks ...pipeline.ProgressSink) *pipeline.Pipeline {
	t.Helper()
	p, err := buildPipeline(testAppConfig(), pipeline.Deps{
		Loader:     stubLoader{},
		Catalogue:  stubLoader{},
		Summarizer: stubSummarizer{},
	}, st, sinks...)
	require.NoError(t, err)
	return p
}
