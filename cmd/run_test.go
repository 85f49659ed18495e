package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/internal/pipeline"
	"github.com/sells-group/wealth-cli/internal/store"
)

func TestFinishRun_Stdout(t *testing.T) {
	p := newTestPipeline(t, nil)
	res, err := p.Run(context.Background(), pipeline.RunRequest{TargetIDs: []model.CustomerID{"789012"}})

	var buf bytes.Buffer
	require.NoError(t, finishRun(res, err, "", &buf))
	assert.Contains(t, buf.String(), "Customer 789012")
}

func TestFinishRun_File(t *testing.T) {
	p := newTestPipeline(t, nil)
	res, err := p.Run(context.Background(), pipeline.RunRequest{TargetIDs: []model.CustomerID{"123456"}})

	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, finishRun(res, err, path, &bytes.Buffer{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Customer 123456")
}

func TestFinishRun_Aborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, nil)
	res, err := p.Run(ctx, pipeline.RunRequest{RunID: "run-abc"})
	require.ErrorIs(t, err, pipeline.ErrPipelineAbort)

	var buf bytes.Buffer
	err = finishRun(res, err, "", &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resume --run-id run-abc")
	assert.Empty(t, buf.String())
}

func TestFinishRun_NoResult(t *testing.T) {
	err := finishRun(nil, eris.New("create run"), "", &bytes.Buffer{})
	assert.ErrorContains(t, err, "create run")
}

func TestLoadReport(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPipeline(t, st)

	res, err := p.Run(ctx, pipeline.RunRequest{RunID: "run-report", TargetIDs: []model.CustomerID{"789012"}})
	require.NoError(t, err)

	report, err := loadReport(ctx, st, "run-report")
	require.NoError(t, err)
	assert.Equal(t, res.Report(), report)

	_, err = loadReport(ctx, st, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.CreateRun(ctx, model.Run{ID: "run-empty"})
	require.NoError(t, err)
	_, err = loadReport(ctx, st, "run-empty")
	assert.ErrorIs(t, err, errNoReport)
}
