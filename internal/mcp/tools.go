package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/export"
	"github.com/screening-server/internal/service"
)

type tool struct {
	def     *mcp.Tool
	handler mcp.ToolHandler
}

var instrumentIDSchema = &jsonschema.Schema{
	Type:        "string",
	Description: "Instrument id, e.g. GAD-7, PHQ-9 or UT-27 (case-insensitive)",
}

var answersSchema = &jsonschema.Schema{
	Type:                 "object",
	Description:          "Item ordinal (as a string key) to score",
	AdditionalProperties: &jsonschema.Schema{Type: "integer"},
}

func (s *Server) tools() []tool {
	return []tool{
		{
			def: &mcp.Tool{
				Name:        "list_instruments",
				Description: "List the available screening instruments",
				InputSchema: &jsonschema.Schema{Type: "object"},
			},
			handler: s.handleListInstruments,
		},
		{
			def: &mcp.Tool{
				Name:        "describe_instrument",
				Description: "Show the items, answer scale, severity bands and flags of an instrument",
				InputSchema: &jsonschema.Schema{
					Type:       "object",
					Properties: map[string]*jsonschema.Schema{"instrument_id": instrumentIDSchema},
					Required:   []string{"instrument_id"},
				},
			},
			handler: s.handleDescribeInstrument,
		},
		{
			def: &mcp.Tool{
				Name:        "score_responses",
				Description: "Score a possibly partial response set without storing anything",
				InputSchema: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"instrument_id": instrumentIDSchema,
						"answers":       answersSchema,
					},
					Required: []string{"instrument_id", "answers"},
				},
			},
			handler: s.handleScoreResponses,
		},
		{
			def: &mcp.Tool{
				Name:        "submit_screening",
				Description: "Run a complete consented screening and return its export record",
				InputSchema: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"instrument_id": instrumentIDSchema,
						"consent":       {Type: "boolean", Description: "Must be true"},
						"answers":       answersSchema,
						"identity": {
							Type: "object",
							Properties: map[string]*jsonschema.Schema{
								"name":  {Type: "string"},
								"phone": {Type: "string"},
								"email": {Type: "string"},
							},
						},
						"supplementary": {
							Type:                 "object",
							AdditionalProperties: &jsonschema.Schema{Type: "string"},
						},
					},
					Required: []string{"instrument_id", "consent", "answers"},
				},
			},
			handler: s.handleSubmitScreening,
		},
	}
}

// InstrumentSummary is one entry of list_instruments.
type InstrumentSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Version  string `json:"version"`
	Items    int    `json:"items"`
	MaxTotal int    `json:"max_total"`
}

// ListInstruments returns every served instrument.
func (s *Server) ListInstruments() []InstrumentSummary {
	list := s.catalog.List()
	out := make([]InstrumentSummary, 0, len(list))
	for _, inst := range list {
		out = append(out, InstrumentSummary{
			ID:       inst.ID,
			Title:    inst.Title,
			Version:  inst.Version,
			Items:    inst.ItemCount(),
			MaxTotal: inst.MaxTotal(),
		})
	}
	return out
}

// ScoreParams are the arguments of score_responses.
type ScoreParams struct {
	InstrumentID string           `json:"instrument_id"`
	Answers      domain.Responses `json:"answers"`
}

// ScoreReport is what score_responses returns.
type ScoreReport struct {
	Result    *domain.ScoringResult `json:"result"`
	Progress  int                   `json:"progress_percent"`
	Narrative string                `json:"narrative,omitempty"`
}

// ScoreResponses validates and scores a response set. The narrative is
// only composed for a complete set.
func (s *Server) ScoreResponses(p ScoreParams) (*ScoreReport, error) {
	inst, err := s.catalog.Get(p.InstrumentID)
	if err != nil {
		return nil, err
	}
	store := domain.NewResponseStore(inst, nil, nil)
	for _, ord := range p.Answers.Ordinals() {
		if err := store.Set(ord, p.Answers[ord]); err != nil {
			return nil, err
		}
	}
	result := service.Score(inst, store.Answers())
	report := &ScoreReport{Result: result, Progress: result.ProgressPercent()}
	if result.Complete {
		report.Narrative = service.ComposeNarrative(inst, result, nil)
	}
	return report, nil
}

// SubmitParams are the arguments of submit_screening.
type SubmitParams struct {
	InstrumentID  string            `json:"instrument_id"`
	Consent       bool              `json:"consent"`
	Identity      domain.Identity   `json:"identity"`
	Answers       domain.Responses  `json:"answers"`
	Supplementary map[string]string `json:"supplementary"`
}

// SubmitReport is what submit_screening returns.
type SubmitReport struct {
	Document  export.Document `json:"document"`
	Narrative string          `json:"narrative"`
	Persisted bool            `json:"persisted"`
	Warning   string          `json:"warning,omitempty"`
}

// SubmitScreening drives one session through every step and finalizes it.
// Any guard the session would hit in the interactive flow fails the call.
func (s *Server) SubmitScreening(ctx context.Context, p SubmitParams) (*SubmitReport, error) {
	m := s.machine
	sess, err := m.Start(p.InstrumentID)
	if err != nil {
		return nil, err
	}
	if sess, err = m.SetConsent(sess, p.Consent); err != nil {
		return nil, err
	}
	if sess, err = m.Next(sess); err != nil {
		return nil, err
	}
	if sess.Step == domain.StepIdentity {
		if sess, err = m.UpdateIdentity(sess, p.Identity); err != nil {
			return nil, err
		}
		if sess, err = m.Next(sess); err != nil {
			return nil, err
		}
	}
	for _, ord := range p.Answers.Ordinals() {
		if sess, err = m.Answer(sess, ord, p.Answers[ord]); err != nil {
			return nil, err
		}
	}
	for key, value := range p.Supplementary {
		if sess, err = m.AnswerSupplementary(sess, key, value); err != nil {
			return nil, err
		}
	}
	if sess, err = m.Next(sess); err != nil {
		return nil, err
	}

	_, outcome, err := s.submissions.Finalize(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &SubmitReport{
		Document:  export.ToDocument(outcome.Record),
		Narrative: outcome.Record.Result.Narrative,
		Persisted: outcome.Persisted,
		Warning:   outcome.WarningMessage(),
	}, nil
}

func (s *Server) handleListInstruments(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "list_instruments").Info("Tool invoked")
	return s.jsonResult(s.ListInstruments())
}

type describeParams struct {
	InstrumentID string `json:"instrument_id"`
}

func (s *Server) handleDescribeInstrument(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params describeParams
	if err := decodeArguments(req.Params.Arguments, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	s.logger.WithFields(logrus.Fields{"tool": "describe_instrument", "instrument": params.InstrumentID}).Info("Tool invoked")

	inst, err := s.catalog.Get(params.InstrumentID)
	if err != nil {
		return s.createErrorResult("Unknown instrument", err), nil
	}
	return s.jsonResult(inst)
}

func (s *Server) handleScoreResponses(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ScoreParams
	if err := decodeArguments(req.Params.Arguments, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	s.logger.WithFields(logrus.Fields{"tool": "score_responses", "instrument": params.InstrumentID}).Info("Tool invoked")

	report, err := s.ScoreResponses(params)
	if err != nil {
		return s.createErrorResult("Scoring failed", err), nil
	}
	return s.jsonResult(report)
}

func (s *Server) handleSubmitScreening(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params SubmitParams
	if err := decodeArguments(req.Params.Arguments, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	s.logger.WithFields(logrus.Fields{"tool": "submit_screening", "instrument": params.InstrumentID}).Info("Tool invoked")

	report, err := s.SubmitScreening(ctx, params)
	if err != nil {
		return s.createErrorResult("Submission refused", err), nil
	}
	return s.jsonResult(report)
}

// decodeArguments fills params from the tool call arguments. The SDK hands
// them over either as raw JSON or as an already decoded value.
func decodeArguments(args any, params any) error {
	var data []byte
	switch v := args.(type) {
	case nil:
		return nil
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return fmt.Errorf("encoding arguments: %w", err)
		}
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, params)
}

func (s *Server) jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

// createErrorResult reports a tool-level failure to the client. Protocol
// errors are reserved for broken requests.
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	s.logger.WithError(err).Warn(message)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %v", message, err)}},
	}
}
