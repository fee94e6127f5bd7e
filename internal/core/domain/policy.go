// Package domain concentra entidades e estruturas centrais do controle de admissão.
package domain

import (
	"fmt"
	"time"
)

// LimitPolicy descreve o limite de uma categoria dentro de uma janela deslizante.
type LimitPolicy struct {
	Window  time.Duration
	Max     int
	Message string

	// SkipOnSuccess/SkipOnFailure removem a contagem da requisição depois
	// que a resposta termina, conforme o status final.
	SkipOnSuccess bool
	SkipOnFailure bool
}

func (p LimitPolicy) Validate() error {
	if p.Window <= 0 {
		return fmt.Errorf("policy window must be positive, got %s", p.Window)
	}
	if p.Max <= 0 {
		return fmt.Errorf("policy max must be positive, got %d", p.Max)
	}
	return nil
}

// Zero indica uma política vazia (não configurada).
func (p LimitPolicy) Zero() bool {
	return p.Window == 0 && p.Max == 0
}

// RetryAfter é o tempo sugerido de espera quando a política bloqueia,
// arredondado para cima em segundos.
func (p LimitPolicy) RetryAfter() int {
	secs := int(p.Window / time.Second)
	if p.Window%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// PolicySet é o conjunto ativo de políticas: os defaults por categoria e
// os overrides por caminho exato. Um override ajusta a rigidez da checagem,
// mas o espaço de chaves continua sendo o da categoria.
type PolicySet struct {
	Policies  map[Category]LimitPolicy
	Overrides map[string]LimitPolicy
}

func (s PolicySet) Validate() error {
	for _, c := range Categories() {
		p, ok := s.Policies[c]
		if !ok {
			return fmt.Errorf("missing policy for category %s", c)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("category %s: %w", c, err)
		}
	}
	for path, p := range s.Overrides {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("override %s: %w", path, err)
		}
	}
	return nil
}

// Decision é o resultado de uma checagem de admissão.
type Decision struct {
	Allowed   bool
	Category  Category
	Key       string
	Policy    LimitPolicy
	Current   int
	Remaining int
	ResetTime time.Time
}

// Status é a visão somente-leitura de um contador (superfície administrativa).
type Status struct {
	Limit     int       `json:"limit"`
	Current   int       `json:"current"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
}

// PatternScore classifica o comportamento recente de um IP.
// Os dois campos podem ser falsos ao mesmo tempo (regime neutro).
type PatternScore struct {
	Suspicious bool
	Trusted    bool
}

// ViolationEvent é o registro imutável de uma negação, enviado ao
// pipeline de eventos de segurança.
type ViolationEvent struct {
	Category  Category
	Key       string
	Limit     int
	Current   int
	Window    time.Duration
	ResetTime time.Time
	At        time.Time

	// Contexto da requisição, quando disponível.
	Method string
	Path   string
}
