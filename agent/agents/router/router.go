package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
	promptx "github.com/tanpawarit/agentloops/agent/prompt"
)

const (
	DefaultThreshold = 0.5
	FallbackRole     = contractx.RoleGeneral
)

// Workers resolves the worker a route dispatches to.
type Workers interface {
	Lookup(role contractx.WorkerRole) (contractx.Worker, error)
	Has(role contractx.WorkerRole) bool
}

// Response is the outcome of Handle. When Abstained is set no worker ran and
// Answer holds the clarification request.
type Response struct {
	Route     contractx.Route
	Answer    string
	Abstained bool
}

type Router struct {
	provider  contractx.Provider
	workers   Workers
	threshold float64

	systemPrompt string
	roles        []promptx.RoleInfo

	logger zerolog.Logger
}

type Option func(*Router)

func WithThreshold(threshold float64) Option {
	return func(r *Router) { r.threshold = threshold }
}

// WithRouterPrompt overrides the router system prompt and the roles it lists.
func WithRouterPrompt(prompt string, roles []promptx.RoleInfo) Option {
	return func(r *Router) {
		r.systemPrompt = strings.TrimSpace(prompt)
		r.roles = roles
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

func New(p contractx.Provider, workers Workers, opts ...Option) (*Router, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider is required", contractx.ErrValidation)
	}
	if workers == nil {
		return nil, fmt.Errorf("%w: workers are required", contractx.ErrValidation)
	}
	catalog, err := promptx.LoadRoleCatalog()
	if err != nil {
		return nil, err
	}

	r := &Router{
		provider:     p,
		workers:      workers,
		threshold:    DefaultThreshold,
		systemPrompt: promptx.LoadPromptSet().Router,
		roles:        catalog.Router,
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.threshold < 0 || r.threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v outside [0, 1]", contractx.ErrValidation, r.threshold)
	}
	return r, nil
}

// Route classifies query. It never fails: provider errors, malformed output
// and unknown roles all yield the fallback route with confidence 0.
func (r *Router) Route(ctx context.Context, query string) contractx.Route {
	conv, err := promptx.Render(ctx, r.systemPrompt, query, map[string]any{
		"roles": promptx.DescribeRoles(r.roles),
	})
	if err != nil {
		return r.fallback(err)
	}

	route, err := contractx.Extract[contractx.Route](ctx, r.provider, conv,
		contractx.SchemaFor[contractx.Route](contractx.SchemaRoute, "Routing decision for a user query"))
	if err != nil {
		return r.fallback(err)
	}
	if !r.workers.Has(route.Role) {
		return r.fallback(fmt.Errorf("%w: %q", contractx.ErrWorkerNotFound, route.Role))
	}
	if route.Confidence < 0 || route.Confidence > 1 {
		return r.fallback(fmt.Errorf("%w: confidence %v outside [0, 1]", contractx.ErrSchemaViolation, route.Confidence))
	}

	r.logger.Debug().
		Str("role", string(route.Role)).
		Float64("confidence", route.Confidence).
		Str("reasoning", route.Reasoning).
		Msg("query routed")
	return route
}

// Handle routes query and dispatches it when the confidence reaches the
// threshold. Below the threshold it asks for clarification instead.
func (r *Router) Handle(ctx context.Context, query string) (Response, error) {
	route := r.Route(ctx, query)
	if route.Confidence < r.threshold {
		r.logger.Info().
			Str("role", string(route.Role)).
			Float64("confidence", route.Confidence).
			Msg("routing abstained")
		return Response{
			Route:     route,
			Answer:    fmt.Sprintf("I'm not sure if I should use %s. Could you clarify?", route.Role),
			Abstained: true,
		}, nil
	}

	w, err := r.workers.Lookup(route.Role)
	if err != nil {
		return Response{Route: route}, err
	}
	logger := r.logger.With().Str("role", string(route.Role)).Logger()
	answer, err := w.Work(logger.WithContext(ctx), query, "")
	if err != nil {
		return Response{Route: route}, fmt.Errorf("worker %s: %w", route.Role, err)
	}
	return Response{Route: route, Answer: answer}, nil
}

func (r *Router) fallback(err error) contractx.Route {
	r.logger.Warn().Err(err).Str("role", string(FallbackRole)).Msg("routing failed; using fallback")
	return contractx.Route{
		Role:       FallbackRole,
		Reasoning:  "fallback: " + err.Error(),
		Confidence: 0,
	}
}
