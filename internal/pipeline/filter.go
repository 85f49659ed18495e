package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/wealth-cli/internal/capability"
	"github.com/sells-group/wealth-cli/internal/model"
)

type filterStage struct {
	cfg       Config
	loader    TableLoader
	extractor capability.IDExtractor
}

func (s *filterStage) Name() string { return StageFilter }

func (s *filterStage) Outputs() []string {
	return []string{"target_ids", "transactions", "demographics", "income", "holdings"}
}

func (s *filterStage) Run(ctx context.Context, st *model.State) (model.Update, error) {
	u := model.Update{Stage: StageFilter}
	targets := s.resolveTargets(ctx, st, &u)
	u.TargetIDs = targets

	tables, err := s.loadFiltered(ctx, targets)
	if err != nil {
		zap.L().Warn("pipeline: source data unavailable", zap.Error(err))
		u.Audit(model.AuditError, fmt.Sprintf("Source data unavailable, no input tables produced: %v", err))
		return u, nil
	}

	u.Transactions, u.Demographics, u.Income, u.Holdings = tables[0], tables[1], tables[2], tables[3]
	u.Audit(model.AuditInfo, fmt.Sprintf("Filtered records for [%s]", strings.Join(model.IDStrings(targets), ", ")))
	return u, nil
}

// resolveTargets prefers externally supplied ids, then ids extracted from the
// request, then the configured defaults.
func (s *filterStage) resolveTargets(ctx context.Context, st *model.State, u *model.Update) []model.CustomerID {
	if st.TargetIDs != nil {
		return model.UniqueIDs(st.TargetIDs)
	}

	if s.extractor != nil && strings.TrimSpace(st.Request) != "" {
		ids, err := s.extractor.ExtractIDs(ctx, st.Request)
		switch {
		case err != nil:
			u.Audit(model.AuditWarn, fmt.Sprintf("Customer id extraction failed, using defaults: %v", err))
		case len(model.UniqueIDs(ids)) == 0:
			u.Audit(model.AuditWarn, "No customer ids found in request, using defaults")
		default:
			return model.UniqueIDs(ids)
		}
	}
	return append([]model.CustomerID{}, model.UniqueIDs(s.cfg.DefaultIDs)...)
}

// loadFiltered loads the four source tables concurrently and restricts each
// to the target ids. Any failure fails the whole load.
func (s *filterStage) loadFiltered(ctx context.Context, targets []model.CustomerID) ([4]*model.Table, error) {
	paths := [4]string{
		s.cfg.Sources.Transactions,
		s.cfg.Sources.Demographics,
		s.cfg.Sources.Income,
		s.cfg.Sources.Holdings,
	}

	var out [4]*model.Table
	g, gCtx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = eris.Errorf("load %s panicked: %v", p, r)
				}
			}()
			tbl, err := s.loader.Load(gCtx, p)
			if err != nil {
				return err
			}
			filtered, err := tbl.FilterIn(s.cfg.IDColumn, targets)
			if err != nil {
				return eris.Wrapf(err, "filter %s", p)
			}
			out[i] = filtered
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return [4]*model.Table{}, err
	}
	return out, nil
}
