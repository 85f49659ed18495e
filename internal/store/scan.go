package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wealth-cli/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

// scanRun reads a runs row. Scan errors are returned unwrapped so callers
// can match their driver's no-rows sentinel.
func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var targets []byte
	if err := row.Scan(&r.ID, &r.Request, &r.Status, &targets, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if len(targets) > 0 {
		if err := json.Unmarshal(targets, &r.TargetIDs); err != nil {
			return nil, eris.Wrap(err, "unmarshal target ids")
		}
	}
	return &r, nil
}

func scanCheckpoint(row scannable) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	if err := row.Scan(&cp.RunID, &cp.StageIndex, &cp.Stage, &cp.State, &cp.CreatedAt); err != nil {
		return nil, err
	}
	return &cp, nil
}

func nonNilIDs(ids []model.CustomerID) []model.CustomerID {
	if ids == nil {
		return []model.CustomerID{}
	}
	return ids
}
