// Package services implementa a lógica central de controle de admissão.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JeanGrijp/admission-control/internal/core/domain"
	"github.com/JeanGrijp/admission-control/internal/core/ports"
)

// RequestContext carrega o contexto HTTP que acompanha uma checagem,
// usado apenas para enriquecer eventos de violação.
type RequestContext struct {
	Method string
	Path   string
}

// AdmissionService orquestra as checagens de janela deslizante: resolve a
// política na registry, delega ao CounterStore e, em negação, emite o
// evento de violação para o pipeline de segurança.
type AdmissionService struct {
	store    ports.CounterStore
	registry *PolicyRegistry
	clock    ports.Clock
	sink     ports.SecurityEventSink
}

func NewAdmissionService(store ports.CounterStore, registry *PolicyRegistry, clock ports.Clock, sink ports.SecurityEventSink) (*AdmissionService, error) {
	if store == nil {
		return nil, fmt.Errorf("counter store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("policy registry is required")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &AdmissionService{store: store, registry: registry, clock: clock, sink: sink}, nil
}

// Registry expõe a registry para a superfície administrativa (reload).
func (s *AdmissionService) Registry() *PolicyRegistry { return s.registry }

// Check avalia a requisição contra a política efetiva da categoria.
// Em negação retorna a decisão preenchida e domain.ErrLimitExceeded.
func (s *AdmissionService) Check(ctx context.Context, cat domain.Category, key string, reqCtx RequestContext) (domain.Decision, error) {
	policy := s.registry.Policy(cat, reqCtx.Path)
	return s.CheckWithPolicy(ctx, cat, key, policy, reqCtx)
}

// CheckWithPolicy avalia com uma política explícita, já resolvida ou
// ajustada (caso do limiter dinâmico).
func (s *AdmissionService) CheckWithPolicy(ctx context.Context, cat domain.Category, key string, policy domain.LimitPolicy, reqCtx RequestContext) (domain.Decision, error) {
	key = normalizeKey(key)
	if key == "" {
		return domain.Decision{}, fmt.Errorf("empty key for category %s", cat)
	}

	decision, err := s.store.CheckAndRecord(ctx, cat, key, policy, s.clock.Now())
	if err != nil {
		return domain.Decision{}, fmt.Errorf("check %s/%s: %w", cat, key, err)
	}

	if !decision.Allowed {
		s.reportViolation(decision, reqCtx)
		return decision, domain.ErrLimitExceeded
	}
	return decision, nil
}

// Discount remove a contagem mais recente da chave (skip-on-outcome).
func (s *AdmissionService) Discount(ctx context.Context, cat domain.Category, key string) error {
	key = normalizeKey(key)
	if key == "" {
		return fmt.Errorf("empty key for category %s", cat)
	}
	return s.store.RemoveNewest(ctx, cat, key)
}

// Status é a consulta somente-leitura de um contador. Nunca muta estado:
// chamadas repetidas sem tráfego novo devolvem o mesmo resultado.
func (s *AdmissionService) Status(ctx context.Context, cat domain.Category, key, path string) (domain.Status, error) {
	key = normalizeKey(key)
	if key == "" {
		return domain.Status{}, fmt.Errorf("empty key for category %s", cat)
	}
	policy := s.registry.Policy(cat, path)
	return s.store.Status(ctx, cat, key, policy, s.clock.Now())
}

// Reset limpa contadores, todos ou por categoria. Uso operacional e de teste.
func (s *AdmissionService) Reset(ctx context.Context, cats ...domain.Category) error {
	return s.store.Reset(ctx, cats...)
}

// reportViolation encaminha o evento ao sink. Fire-and-forget: qualquer
// pânico do sink é engolido para nunca contaminar o caminho da resposta.
func (s *AdmissionService) reportViolation(d domain.Decision, reqCtx RequestContext) {
	if s.sink == nil {
		return
	}
	defer func() { _ = recover() }()

	ev := domain.ViolationEvent{
		Category:  d.Category,
		Key:       d.Key,
		Limit:     d.Policy.Max,
		Current:   d.Current,
		Window:    d.Policy.Window,
		ResetTime: d.ResetTime,
		At:        s.clock.Now(),
		Method:    reqCtx.Method,
		Path:      reqCtx.Path,
	}
	s.sink.LogEvent("rate_limit_violation", map[string]any{
		"category":  ev.Category.String(),
		"key":       ev.Key,
		"limit":     ev.Limit,
		"current":   ev.Current,
		"windowMs":  ev.Window.Milliseconds(),
		"resetTime": ev.ResetTime.UTC().Format(time.RFC3339),
		"timestamp": ev.At.UTC().Format(time.RFC3339),
		"method":    ev.Method,
		"path":      ev.Path,
	})
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
