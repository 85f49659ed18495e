// Package pipeline runs the fixed customer-analysis stage chain over a
// single owned State and renders the final HTML report.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wealth-cli/internal/model"
)

// Stage names, in execution order.
const (
	StageFilter         = "filter"
	StageTransaction    = "transaction"
	StageDemographic    = "demographic"
	StageIncome         = "income"
	StageHolding        = "holding"
	StageRecommendation = "recommendation"
	StageRender         = "render"
)

// StageOrder is the fixed execution order.
var StageOrder = []string{
	StageFilter,
	StageTransaction,
	StageDemographic,
	StageIncome,
	StageHolding,
	StageRecommendation,
	StageRender,
}

var (
	// ErrScopeMismatch marks a result record whose customer is not a target.
	ErrScopeMismatch = eris.New("pipeline: customer outside target set")
	// ErrPipelineAbort is returned when the caller cancels between stages.
	ErrPipelineAbort = eris.New("pipeline: aborted")
	// ErrStageFailed wraps a stage error or panic.
	ErrStageFailed = eris.New("pipeline: stage failed")
	// ErrNoStore is returned by Resume when no store is configured.
	ErrNoStore = eris.New("pipeline: no store configured")
)

// Stage is one unit of the pipeline. Run receives a read-only view of the
// state and returns only the delta it contributes.
type Stage interface {
	Name() string
	Outputs() []string
	Run(ctx context.Context, st *model.State) (model.Update, error)
}

// TableLoader loads a source table by path.
type TableLoader interface {
	Load(ctx context.Context, path string) (*model.Table, error)
}

// CatalogueLoader returns the product catalogue text, or a sentinel when it
// is unavailable.
type CatalogueLoader interface {
	LoadCatalogue(ctx context.Context, path string) string
}

// ScopePolicy decides what happens to result records for customers outside
// the target set.
type ScopePolicy string

const (
	// ScopeFilter drops out-of-scope records and audits each one.
	ScopeFilter ScopePolicy = "filter"
	// ScopeStrict discards the whole response if any record is out of scope.
	ScopeStrict ScopePolicy = "strict"
	// ScopeOff accepts records as returned.
	ScopeOff ScopePolicy = "off"
)

// Enumeration selects which customers get a section in the report.
type Enumeration string

const (
	// EnumerateTargets uses target order, keeping customers with any result.
	EnumerateTargets Enumeration = "targets"
	// EnumerateDemographic uses the demographic result order only.
	EnumerateDemographic Enumeration = "demographic"
)

// Sources holds the input paths. Each may be a local path or ftp:// URL.
type Sources struct {
	Transactions string
	Demographics string
	Income       string
	Holdings     string
	Catalogue    string
}

// Config controls stage behavior.
type Config struct {
	Sources    Sources
	IDColumn   string
	DefaultIDs []model.CustomerID

	CapabilityTimeout time.Duration
	Scope             ScopePolicy
	Enumerate         Enumeration

	// Columns overrides the embedded column descriptions when set.
	Columns *ColumnMap
}

// DefaultIDColumn is the customer identifier column in every source table.
const DefaultIDColumn = "cif_id_mask"

func (c Config) withDefaults() Config {
	if c.IDColumn == "" {
		c.IDColumn = DefaultIDColumn
	}
	if c.CapabilityTimeout <= 0 {
		c.CapabilityTimeout = 60 * time.Second
	}
	if c.Scope == "" {
		c.Scope = ScopeFilter
	}
	if c.Enumerate == "" {
		c.Enumerate = EnumerateTargets
	}
	if c.Columns == nil {
		c.Columns = DefaultColumns()
	}
	return c
}
