package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/internal/resilience"
	"github.com/sells-group/wealth-cli/pkg/anthropic"
)

const systemPrompt = "You are a wealth management analyst at a retail bank. " +
	"You read customer records and answer only with JSON that matches the schema you are given."

// LLMConfig configures the model-backed capability.
type LLMConfig struct {
	Model     string
	MaxTokens int64
	// Temperature is passed through when set; nil leaves the API default.
	Temperature *float64
	Retry       resilience.RetryConfig
}

// LLM implements Summarizer and IDExtractor on top of an Anthropic client.
type LLM struct {
	client anthropic.Client
	cfg    LLMConfig
}

// NewLLM creates an LLM capability.
func NewLLM(client anthropic.Client, cfg LLMConfig) *LLM {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	}
	return &LLM{client: client, cfg: cfg}
}

// Summarize implements Summarizer.
func (l *LLM) Summarize(ctx context.Context, req Request) (*Response, error) {
	switch req.Kind {
	case KindTransaction:
		return summarize[model.TransactionResult](ctx, l, req)
	case KindDemographic:
		return summarize[model.DemographicResult](ctx, l, req)
	case KindIncome:
		return summarize[model.IncomeResult](ctx, l, req)
	case KindHolding:
		return summarize[model.HoldingResult](ctx, l, req)
	case KindRecommendation:
		return summarize[model.RecommendationResult](ctx, l, req)
	}
	return nil, eris.Errorf("capability: unknown kind %q", req.Kind)
}

func summarize[T model.Result](ctx context.Context, l *LLM, req Request) (*Response, error) {
	schema, err := schemaFor[envelope[T]]()
	if err != nil {
		return nil, err
	}
	prompt, err := buildPrompt(req, schema)
	if err != nil {
		return nil, err
	}

	text, err := l.complete(ctx, string(req.Kind), prompt)
	if err != nil {
		return nil, eris.Wrapf(err, "capability: summarize %s", req.Kind)
	}

	items, err := parseItems[T](text)
	if err != nil {
		zap.L().Warn("capability: unusable model output",
			zap.String("kind", string(req.Kind)),
			zap.Error(err),
		)
		return nil, nil
	}
	return NewResponse(sanitize(items)), nil
}

// ExtractedIDs is the shape returned for identifier extraction.
type ExtractedIDs struct {
	CustomerIDs []string `json:"customer_ids" jsonschema:"customer identifiers mentioned in the request"`
}

// ExtractIDs implements IDExtractor.
func (l *LLM) ExtractIDs(ctx context.Context, request string) ([]model.CustomerID, error) {
	schema, err := schemaFor[ExtractedIDs]()
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("Extract every customer identifier mentioned in the request below. ")
	b.WriteString("Return an empty list if there are none.\n\n")
	fmt.Fprintf(&b, "Request:\n%s\n\nRespond with JSON matching this schema:\n%s\n", request, schema)

	text, err := l.complete(ctx, "extract_ids", b.String())
	if err != nil {
		return nil, eris.Wrap(err, "capability: extract ids")
	}

	var out ExtractedIDs
	if err := unmarshalJSON(cleanJSON(text), &out); err != nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "extract ids: %v", err)
	}
	ids := make([]model.CustomerID, 0, len(out.CustomerIDs))
	for _, id := range out.CustomerIDs {
		ids = append(ids, model.CustomerID(strings.TrimSpace(id)))
	}
	return model.UniqueIDs(ids), nil
}

func (l *LLM) complete(ctx context.Context, stage, prompt string) (string, error) {
	resp, err := resilience.DoVal(ctx, l.cfg.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return l.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       l.cfg.Model,
			MaxTokens:   l.cfg.MaxTokens,
			System:      systemPrompt,
			Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
			Temperature: l.cfg.Temperature,
		})
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(l.cfg.Model, stage)
	if resp.StopReason == "max_tokens" {
		zap.L().Warn("capability: output truncated", zap.String("stage", stage))
	}
	return resp.Text(), nil
}

var schemaCache sync.Map // reflect type name → string

func schemaFor[T any]() (string, error) {
	key := fmt.Sprintf("%T", *new(T))
	if s, ok := schemaCache.Load(key); ok {
		return s.(string), nil
	}
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return "", eris.Wrap(err, "capability: build schema")
	}
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "capability: marshal schema")
	}
	schemaCache.Store(key, string(b))
	return string(b), nil
}

// buildPrompt renders the request as a deterministic prompt.
func buildPrompt(req Request, schema string) (string, error) {
	var b strings.Builder

	if req.Instructions != "" {
		b.WriteString(req.Instructions)
		b.WriteString("\n\n")
	}

	if len(req.Columns) > 0 {
		b.WriteString("Column descriptions:\n")
		keys := make([]string, 0, len(req.Columns))
		for k := range req.Columns {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, req.Columns[k])
		}
		b.WriteString("\n")
	}

	if !req.Table.Empty() {
		records, err := json.Marshal(req.Table.Records())
		if err != nil {
			return "", eris.Wrap(err, "capability: encode table")
		}
		fmt.Fprintf(&b, "Data (%s, %d rows):\n%s\n\n", req.Table.Name, req.Table.Len(), records)
	}

	for _, s := range req.Context {
		fmt.Fprintf(&b, "%s:\n%s\n\n", s.Title, s.Body)
	}

	fmt.Fprintf(&b, "Respond with JSON matching this schema:\n%s\n", schema)
	return b.String(), nil
}
