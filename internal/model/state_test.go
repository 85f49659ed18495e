package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateApplyAppendsCollections(t *testing.T) {
	t.Parallel()

	s := NewState("", nil)
	require.NoError(t, s.Apply(Update{
		Stage:              "demographic",
		DemographicResults: []DemographicResult{{CustomerID: "789012", Summary: "a"}},
	}))
	require.NoError(t, s.Apply(Update{
		Stage:              "demographic",
		DemographicResults: []DemographicResult{{CustomerID: "123456", Summary: "b"}},
	}))

	assert.Len(t, s.DemographicResults, 2)
	assert.Equal(t, "demographic", s.CurrentStage)
}

func TestStateApplySetOnce(t *testing.T) {
	t.Parallel()

	report := "<html></html>"
	tbl := &Table{Name: "income"}

	tests := []struct {
		name   string
		first  Update
		second Update
	}{
		{"targets", Update{TargetIDs: []CustomerID{"1"}}, Update{TargetIDs: []CustomerID{"2"}}},
		{"table", Update{Income: tbl}, Update{Income: tbl}},
		{"report", Update{Report: &report}, Update{Report: &report}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewState("", nil)
			require.NoError(t, s.Apply(tt.first))
			before := s.Clone()

			tt.second.AuditLog = []AuditEntry{{Message: "should not land"}}
			err := s.Apply(tt.second)
			require.ErrorIs(t, err, ErrFieldAlreadySet)
			assert.Equal(t, before, s)
		})
	}
}

func TestStateApplySameTargetsAllowed(t *testing.T) {
	t.Parallel()

	s := NewState("", []CustomerID{"789012", "789012"})
	assert.Equal(t, []CustomerID{"789012"}, s.TargetIDs)
	require.NoError(t, s.Apply(Update{TargetIDs: []CustomerID{"789012"}}))
}

func TestStateCloneIsDeep(t *testing.T) {
	t.Parallel()

	s := NewState("find 789012", []CustomerID{"789012"})
	require.NoError(t, s.Apply(Update{
		TransactionResults: []TransactionResult{{
			CustomerID: "789012",
			Profiles:   []Profile{{Name: "Traveller"}},
		}},
	}))

	c := s.Clone()
	c.TransactionResults[0].Profiles[0].Name = "Changed"
	c.TargetIDs[0] = "000000"

	assert.Equal(t, "Traveller", s.TransactionResults[0].Profiles[0].Name)
	assert.Equal(t, CustomerID("789012"), s.TargetIDs[0])
}

func TestStateResultIDs(t *testing.T) {
	t.Parallel()

	s := &State{
		IncomeResults:      []IncomeResult{{CustomerID: "2"}},
		DemographicResults: []DemographicResult{{CustomerID: "1"}},
		Recommendations:    []RecommendationResult{{CustomerID: "2"}, {CustomerID: "3"}},
	}
	assert.Equal(t, []CustomerID{"1", "2", "3"}, s.ResultIDs())
}

func TestStateJSONUsesWireNames(t *testing.T) {
	t.Parallel()

	s := &State{
		Recommendations: []RecommendationResult{{
			CustomerID: "789012",
			Cards:      []CardRecommendation{{Card: "Platinum", Reason: "travel"}},
		}},
	}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"cc_recommended":"Platinum"`)
	assert.Contains(t, string(b), `"cc_summary"`)
}

func TestUpdateAuditStampsStage(t *testing.T) {
	t.Parallel()

	u := Update{Stage: "income"}
	u.Audit(AuditWarn, "Income data missing")
	require.Len(t, u.AuditLog, 1)
	assert.Equal(t, "income", u.AuditLog[0].Stage)
	assert.Equal(t, AuditWarn, u.AuditLog[0].Level)
	assert.False(t, u.AuditLog[0].At.IsZero())
}
