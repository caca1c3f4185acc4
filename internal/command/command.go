// Package command sends operator prompts to the natural-language parser and
// decodes its structured replies.
package command

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emberwatch/firecommand/internal/api"
	"github.com/emberwatch/firecommand/internal/config"
	"github.com/emberwatch/firecommand/internal/impact"
	"github.com/emberwatch/firecommand/pkg/core"
)

// Op tags parser failures.
const Op = "parser.command"

// Kind is the parser's classification of a prompt.
type Kind string

const (
	KindAction        Kind = "action"
	KindQuery         Kind = "query"
	KindSpecificRoute Kind = "specific_route"
)

// Command is one decoded parser reply.
type Command struct {
	Kind Kind `json:"kind"`

	// action
	Override core.ParameterOverride `json:"-"`
	Unknown  []string               `json:"unknown,omitempty"`

	// query
	Filter impact.Filter `json:"filter"`

	// specific_route
	Names []string `json:"names,omitempty"`

	// Answer is free text some parser replies carry for the operator.
	Answer string `json:"answer,omitempty"`
}

// Parser turns a prompt into a Command. risks is the current report, sent as
// retrieval context.
type Parser interface {
	Parse(ctx context.Context, prompt string, risks []core.RiskRecord) (Command, error)
}

// Client is the HTTP Parser.
type Client struct {
	api *api.Client
}

// New creates a parser client for the configured endpoint.
func New(cfg config.ClientConfig) *Client {
	return &Client{api: api.New(cfg.URL, cfg.Timeout)}
}

type riskContext struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Type core.AssetType `json:"type"`
	Time float64        `json:"timeToImpact"`
}

type chatRequest struct {
	Prompt   string        `json:"prompt"`
	RiskData []riskContext `json:"risk_data"`
}

// Reply is the raw /unified-chat response.
type Reply struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Parse posts the prompt to /unified-chat.
func (c *Client) Parse(ctx context.Context, prompt string, risks []core.RiskRecord) (Command, error) {
	body := chatRequest{Prompt: prompt, RiskData: make([]riskContext, 0, len(risks))}
	for _, r := range risks {
		body.RiskData = append(body.RiskData, riskContext{ID: r.AssetID, Name: r.Name, Type: r.Type, Time: r.TimeToImpactHours})
	}

	var reply Reply
	if err := c.api.PostJSON(ctx, Op, "/unified-chat", body, &reply); err != nil {
		return Command{}, err
	}
	cmd, err := Decode(reply)
	if err != nil {
		return Command{}, core.NewCollaboratorError(Op, core.ErrMalformedResponse, err)
	}
	return cmd, nil
}

type queryPayload struct {
	impact.Filter
	Answer string `json:"answer"`
}

type routePayload struct {
	Names  []string `json:"names"`
	Answer string   `json:"answer"`
}

// Decode interprets a reply by its type.
func Decode(r Reply) (Command, error) {
	switch r.Type {
	case KindAction:
		o, unknown, err := core.ParseOverride(r.Payload)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: KindAction, Override: o, Unknown: unknown}, nil

	case KindQuery:
		var p queryPayload
		if len(r.Payload) > 0 && string(r.Payload) != "null" {
			if err := json.Unmarshal(r.Payload, &p); err != nil {
				return Command{}, fmt.Errorf("query payload: %w", err)
			}
		}
		return Command{Kind: KindQuery, Filter: p.Filter, Answer: p.Answer}, nil

	case KindSpecificRoute:
		var p routePayload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return Command{}, fmt.Errorf("specific_route payload: %w", err)
		}
		return Command{Kind: KindSpecificRoute, Names: p.Names, Answer: p.Answer}, nil

	default:
		return Command{}, fmt.Errorf("unknown reply type %q", r.Type)
	}
}
