// Package capability turns customer tables into structured per-customer
// results by calling a language model.
package capability

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wealth-cli/internal/model"
)

// ErrMalformedResponse is returned when model output cannot be parsed into
// the expected structure.
var ErrMalformedResponse = eris.New("capability: malformed response")

// Kind identifies which result shape a request expects.
type Kind string

const (
	KindTransaction    Kind = "transaction"
	KindDemographic    Kind = "demographic"
	KindIncome         Kind = "income"
	KindHolding        Kind = "holding"
	KindRecommendation Kind = "recommendation"
)

// Section is a titled block of extra prompt context.
type Section struct {
	Title string
	Body  string
}

// Request is the input to a summarization call.
type Request struct {
	Kind Kind
	// Table is the filtered input slice; may be nil for recommendation.
	Table *model.Table
	// Columns maps raw column names to natural-language descriptions.
	Columns      map[string]string
	Instructions string
	Context      []Section
}

// Response carries exactly one typed collection, selected by Kind.
type Response struct {
	Kind            Kind
	Transactions    []model.TransactionResult
	Demographics    []model.DemographicResult
	Income          []model.IncomeResult
	Holdings        []model.HoldingResult
	Recommendations []model.RecommendationResult
}

// NewResponse wraps items in a Response of the matching Kind.
func NewResponse[T model.Result](items []T) *Response {
	switch v := any(items).(type) {
	case []model.TransactionResult:
		return &Response{Kind: KindTransaction, Transactions: v}
	case []model.DemographicResult:
		return &Response{Kind: KindDemographic, Demographics: v}
	case []model.IncomeResult:
		return &Response{Kind: KindIncome, Income: v}
	case []model.HoldingResult:
		return &Response{Kind: KindHolding, Holdings: v}
	case []model.RecommendationResult:
		return &Response{Kind: KindRecommendation, Recommendations: v}
	}
	return nil
}

// Items extracts the typed collection from r. ok is false when r is nil or
// holds a different kind.
func Items[T model.Result](r *Response) (items []T, ok bool) {
	if r == nil {
		return nil, false
	}
	var v any
	switch r.Kind {
	case KindTransaction:
		v = r.Transactions
	case KindDemographic:
		v = r.Demographics
	case KindIncome:
		v = r.Income
	case KindHolding:
		v = r.Holdings
	case KindRecommendation:
		v = r.Recommendations
	default:
		return nil, false
	}
	items, ok = v.([]T)
	return items, ok
}

// KindOf returns the Kind that carries results of type T.
func KindOf[T model.Result]() Kind {
	var zero T
	switch any(zero).(type) {
	case model.TransactionResult:
		return KindTransaction
	case model.DemographicResult:
		return KindDemographic
	case model.IncomeResult:
		return KindIncome
	case model.HoldingResult:
		return KindHolding
	case model.RecommendationResult:
		return KindRecommendation
	}
	return ""
}

// Summarizer produces structured results for a request. A nil Response with
// a nil error means the model returned nothing usable.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (*Response, error)
}

// IDExtractor resolves customer identifiers from a free-text request.
type IDExtractor interface {
	ExtractIDs(ctx context.Context, request string) ([]model.CustomerID, error)
}
