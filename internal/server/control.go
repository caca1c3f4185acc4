package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/emberwatch/firecommand/internal/archive"
	"github.com/emberwatch/firecommand/internal/geo"
	"github.com/emberwatch/firecommand/internal/session"
	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/emberwatch/firecommand/pkg/streaming"
)

// requestError is a client mistake, answered with 400.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// statusFor maps control errors to HTTP status codes.
func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, archive.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoParser), errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrNetworkFailure), errors.Is(err, core.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// parseOverride decodes a dashboard override and checks the parameters it
// would produce. An empty payload yields nil.
func parseOverride(raw json.RawMessage, current core.SimulationParameters) (*core.ParameterOverride, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	o, unknown, err := core.ParseOverride(raw)
	if err != nil {
		return nil, badRequest("%v", err)
	}
	if len(unknown) > 0 {
		return nil, badRequest("unrecognized override fields: %s", strings.Join(unknown, ", "))
	}
	if (o.OriginLat == nil) != (o.OriginLon == nil) {
		return nil, badRequest("originLat and originLon must be given together")
	}
	if o.HasOrigin() {
		if err := checkOrigin(core.Origin{Lat: *o.OriginLat, Lon: *o.OriginLon}); err != nil {
			return nil, err
		}
	}
	if err := o.Apply(current).Validate(); err != nil {
		return nil, badRequest("%v", err)
	}
	return &o, nil
}

func checkOrigin(o core.Origin) error {
	if o.Lat < -90 || o.Lat > 90 || o.Lon < -180 || o.Lon > 180 {
		return badRequest("%v: %.6f,%.6f", geo.ErrInvalidCoordinates, o.Lat, o.Lon)
	}
	return nil
}

// relocateRequest accepts either a structured origin or a "lat,lon" string.
type relocateRequest struct {
	Origin *core.Origin `json:"origin"`
	Coords string       `json:"coords"`
}

func (r relocateRequest) resolve() (core.Origin, error) {
	if r.Coords != "" {
		o, err := geo.OriginFromString(r.Coords)
		if err != nil {
			return core.Origin{}, badRequest("%v", err)
		}
		return o, nil
	}
	if r.Origin == nil {
		return core.Origin{}, badRequest("origin or coords is required")
	}
	return *r.Origin, checkOrigin(*r.Origin)
}

// Controls executes dashboard control requests against the session. HTTP
// handlers and WebSocket messages share it.
type Controls struct {
	session *session.Session
}

// Dispatch requests a run.
func (c Controls) Dispatch(ctx context.Context, p streaming.DispatchPayload) (session.DispatchResult, error) {
	override, err := parseOverride(p.Override, c.session.Snapshot().Parameters)
	if err != nil {
		return session.DispatchResult{}, err
	}
	return c.session.Dispatch(ctx, override, p.ForceDefer)
}

// SetParameters edits parameters without dispatching.
func (c Controls) SetParameters(ctx context.Context, raw json.RawMessage) (core.SimulationParameters, error) {
	override, err := parseOverride(raw, c.session.Snapshot().Parameters)
	if err != nil {
		return core.SimulationParameters{}, err
	}
	if override == nil {
		return c.session.Snapshot().Parameters, nil
	}
	return c.session.SetParameters(ctx, *override)
}

// Relocate moves the ambient origin.
func (c Controls) Relocate(ctx context.Context, r relocateRequest) (core.Origin, error) {
	origin, err := r.resolve()
	if err != nil {
		return core.Origin{}, err
	}
	return origin, c.session.Relocate(ctx, origin)
}

// Command forwards an operator prompt to the command parser.
func (c Controls) Command(ctx context.Context, prompt string) (session.CommandResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return session.CommandResult{}, badRequest("prompt is required")
	}
	return c.session.ApplyCommand(ctx, prompt)
}

// Envelope handles one WebSocket control message.
func (c Controls) Envelope(ctx context.Context, env streaming.Envelope) (any, error) {
	switch env.Type {
	case streaming.TypeDispatch:
		var p streaming.DispatchPayload
		if len(env.Payload) > 0 {
			if err := env.Decode(&p); err != nil {
				return nil, badRequest("%v", err)
			}
		}
		return c.Dispatch(ctx, p)
	case streaming.TypeRelocate:
		var r relocateRequest
		if err := env.Decode(&r); err != nil {
			return nil, badRequest("%v", err)
		}
		return c.Relocate(ctx, r)
	case streaming.TypeScrub:
		var p streaming.ScrubPayload
		if err := env.Decode(&p); err != nil {
			return nil, badRequest("%v", err)
		}
		return c.session.Scrub(ctx, p.Index)
	case streaming.TypeRestart:
		return c.session.Restart(ctx)
	case streaming.TypeToggle:
		return c.session.Toggle(ctx)
	case streaming.TypeCommand:
		var p streaming.CommandPayload
		if err := env.Decode(&p); err != nil {
			return nil, badRequest("%v", err)
		}
		return c.Command(ctx, p.Prompt)
	default:
		return nil, badRequest("unknown message type %q", env.Type)
	}
}
