package capability

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wealth-cli/internal/model"
)

// envelope is the top-level object the model is asked to return.
type envelope[T any] struct {
	Items []T `json:"items" jsonschema:"one entry per customer present in the data"`
}

// cleanJSON extracts a JSON object from text that may be wrapped in markdown
// fences or prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	for _, fence := range []string{"```json", "```"} {
		if strings.HasPrefix(text, fence) {
			text = strings.TrimPrefix(text, fence)
			if idx := strings.LastIndex(text, "```"); idx >= 0 {
				text = text[:idx]
			}
			break
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	} else if start >= 0 {
		// Truncated output; let the repair pass close it.
		text = text[start:]
	}
	return strings.TrimSpace(text)
}

// unmarshalJSON decodes data into v, retrying once through jsonrepair when
// the input is syntactically broken.
func unmarshalJSON(data string, v any) error {
	err := json.Unmarshal([]byte(data), v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	fixed, repairErr := jsonrepair.JSONRepair(data)
	if repairErr != nil {
		return eris.Wrap(repairErr, "capability: repair json")
	}
	zap.L().Debug("capability: repaired malformed json", zap.Int("bytes", len(data)))
	return json.Unmarshal([]byte(fixed), v)
}

// parseItems decodes the items envelope from raw model text.
func parseItems[T any](text string) ([]T, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, eris.Wrap(ErrMalformedResponse, "empty output")
	}

	var env struct {
		Items *[]T `json:"items"`
	}
	if err := unmarshalJSON(cleaned, &env); err != nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "decode: %v", err)
	}
	if env.Items == nil {
		return nil, eris.Wrap(ErrMalformedResponse, "missing items")
	}
	return *env.Items, nil
}

// sanitize removes blank list entries and drops records that fail
// validation. List caps are left to the caller, which audits truncation.
func sanitize[T model.Result](items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		check := item
		switch v := any(item).(type) {
		case model.TransactionResult:
			v, removed := v.Pruned()
			item = any(v).(T)
			logPruned(v.CustomerID, "profile", removed)
			v, _ = v.Capped()
			check = any(v).(T)
		case model.RecommendationResult:
			v, removed := v.Pruned()
			item = any(v).(T)
			logPruned(v.CustomerID, "card", removed)
			v, _ = v.Capped()
			check = any(v).(T)
		}
		if err := model.Validate(check); err != nil {
			zap.L().Warn("capability: dropping invalid record",
				zap.String("customer_id", string(item.Customer())),
				zap.Error(err),
			)
			continue
		}
		out = append(out, item)
	}
	return out
}

func logPruned(id model.CustomerID, entry string, removed int) {
	if removed == 0 {
		return
	}
	zap.L().Warn("capability: removed blank list entries",
		zap.String("customer_id", string(id)),
		zap.String("entry", entry),
		zap.Int("removed", removed),
	)
}
