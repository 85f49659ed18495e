package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wealth-cli/internal/capability"
	"github.com/sells-group/wealth-cli/internal/model"
)

// analysisStage is the shared shape of the transaction, demographic, income
// and holding stages.
type analysisStage[T model.Result] struct {
	name         string
	output       string
	missing      string
	instructions string
	columns      map[string]string
	table        func(*model.State) *model.Table
	set          func(*model.Update, []T)

	summarizer capability.Summarizer
	cfg        Config
}

func (s *analysisStage[T]) Name() string { return s.name }

func (s *analysisStage[T]) Outputs() []string { return []string{s.output} }

func (s *analysisStage[T]) Run(ctx context.Context, st *model.State) (model.Update, error) {
	u := model.Update{Stage: s.name}

	tbl := s.table(st)
	if tbl.Empty() {
		u.Audit(model.AuditWarn, s.missing)
		return u, nil
	}

	items := summarize[T](ctx, s.summarizer, capability.Request{
		Kind:         capability.KindOf[T](),
		Table:        tbl,
		Columns:      s.columns,
		Instructions: s.instructions,
	}, s.cfg.CapabilityTimeout, &u)

	items = enforce(items, st.TargetIDs, s.cfg.Scope, &u)
	s.set(&u, items)
	u.Audit(model.AuditInfo, fmt.Sprintf("%d %s result(s)", len(items), s.name))
	return u, nil
}

type summarizeResult struct {
	resp *capability.Response
	err  error
}

// summarize calls the capability with its own deadline. The call is detached
// from caller cancellation so a stage, once started, always completes; the
// deadline still bounds it even if the capability ignores its context.
func summarize[T model.Result](ctx context.Context, sum capability.Summarizer, req capability.Request, timeout time.Duration, u *model.Update) []T {
	if sum == nil {
		u.Audit(model.AuditWarn, "No summarization capability configured")
		return nil
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	done := make(chan summarizeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- summarizeResult{err: eris.Errorf("capability panicked: %v", r)}
			}
		}()
		resp, err := sum.Summarize(callCtx, req)
		done <- summarizeResult{resp: resp, err: err}
	}()

	var res summarizeResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		res.err = eris.Wrapf(callCtx.Err(), "capability timed out after %s", timeout)
	}

	if res.err != nil {
		zap.L().Warn("pipeline: capability call failed", zap.String("stage", u.Stage), zap.Error(res.err))
		u.Audit(model.AuditWarn, fmt.Sprintf("Capability failed, no %s results: %v", u.Stage, res.err))
		return nil
	}

	items, ok := capability.Items[T](res.resp)
	if !ok {
		u.Audit(model.AuditWarn, fmt.Sprintf("%v: no structured %s result", capability.ErrMalformedResponse, u.Stage))
		return nil
	}
	return items
}

// enforce applies the scope policy, caps list payloads, drops invalid or
// repeated records, and audits every change.
func enforce[T model.Result](items []T, targets []model.CustomerID, policy ScopePolicy, u *model.Update) []T {
	inScope := model.IDSet(targets)

	if policy == ScopeStrict {
		for _, item := range items {
			if _, ok := inScope[item.Customer()]; !ok {
				u.Audit(model.AuditError, fmt.Sprintf("%v: %s; discarding all %s results", ErrScopeMismatch, item.Customer(), u.Stage))
				return []T{}
			}
		}
	}

	seen := make(map[model.CustomerID]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		id := item.Customer()
		if _, ok := inScope[id]; !ok && policy != ScopeOff {
			u.Audit(model.AuditWarn, fmt.Sprintf("%v: dropped record for %s", ErrScopeMismatch, id))
			continue
		}

		item = capped(item, u)
		if err := model.Validate(item); err != nil {
			u.Audit(model.AuditWarn, fmt.Sprintf("Dropped invalid record for %q: %v", id, err))
			continue
		}
		if _, dup := seen[id]; dup {
			u.Audit(model.AuditWarn, fmt.Sprintf("Dropped repeated record for %s", id))
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}

func capped[T model.Result](item T, u *model.Update) T {
	switch v := any(item).(type) {
	case model.TransactionResult:
		if c, cut := v.Capped(); cut {
			u.Audit(model.AuditWarn, fmt.Sprintf("Truncated profiles for %s to %d", v.CustomerID, model.MaxProfiles))
			return any(c).(T)
		}
	case model.RecommendationResult:
		if c, cut := v.Capped(); cut {
			u.Audit(model.AuditWarn, fmt.Sprintf("Truncated recommendations for %s to %d", v.CustomerID, model.MaxRecommendations))
			return any(c).(T)
		}
	}
	return item
}
