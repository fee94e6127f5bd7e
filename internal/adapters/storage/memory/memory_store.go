// Package memory implementa o CounterStore em memória do próprio processo.
//
// É a implementação primária: uma única instância do serviço, contadores
// com ciclo de vida igual ao do processo. Entradas velhas são podadas de
// forma lazy no acesso; chaves paradas não são removidas — sob alta
// cardinalidade (ex: IPs em churn) o mapa só cresce.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/JeanGrijp/admission-control/internal/core/domain"
	"github.com/JeanGrijp/admission-control/internal/core/ports"
)

type Store struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

var _ ports.CounterStore = (*Store)(nil)

func New() *Store {
	return &Store{entries: make(map[string][]time.Time)}
}

func (s *Store) CheckAndRecord(_ context.Context, cat domain.Category, key string, policy domain.LimitPolicy, now time.Time) (domain.Decision, error) {
	k := counterKey(cat, key)
	windowStart := now.Add(-policy.Window)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := pruneLocked(s.entries[k], windowStart)

	decision := domain.Decision{
		Category: cat,
		Key:      key,
		Policy:   policy,
		Current:  len(kept),
	}

	if len(kept) >= policy.Max {
		// Nega sem registrar: a tentativa recusada não consome janela.
		s.entries[k] = kept
		decision.Remaining = 0
		decision.ResetTime = resetTime(kept, policy.Window, now)
		return decision, nil
	}

	kept = append(kept, now)
	s.entries[k] = kept

	decision.Allowed = true
	decision.Current = len(kept)
	decision.Remaining = policy.Max - len(kept)
	decision.ResetTime = resetTime(kept, policy.Window, now)
	return decision, nil
}

func (s *Store) RemoveNewest(_ context.Context, cat domain.Category, key string) error {
	k := counterKey(cat, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.entries[k]
	if len(seq) == 0 {
		return nil
	}
	s.entries[k] = seq[:len(seq)-1]
	return nil
}

func (s *Store) History(_ context.Context, cat domain.Category, key string, since, now time.Time) ([]time.Time, error) {
	k := counterKey(cat, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []time.Time
	for _, ts := range s.entries[k] {
		if ts.After(since) && !ts.After(now) {
			out = append(out, ts)
		}
	}
	return out, nil
}

// Status calcula a visão corrente sem persistir a poda: consultas
// repetidas sem tráfego novo devolvem o mesmo resultado.
func (s *Store) Status(_ context.Context, cat domain.Category, key string, policy domain.LimitPolicy, now time.Time) (domain.Status, error) {
	k := counterKey(cat, key)
	windowStart := now.Add(-policy.Window)

	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []time.Time
	for _, ts := range s.entries[k] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	remaining := policy.Max - len(kept)
	if remaining < 0 {
		remaining = 0
	}
	return domain.Status{
		Limit:     policy.Max,
		Current:   len(kept),
		Remaining: remaining,
		ResetTime: resetTime(kept, policy.Window, now),
	}, nil
}

func (s *Store) Reset(_ context.Context, cats ...domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(cats) == 0 {
		s.entries = make(map[string][]time.Time)
		return nil
	}

	for _, cat := range cats {
		prefix := cat.String() + ":"
		for k := range s.entries {
			if strings.HasPrefix(k, prefix) {
				delete(s.entries, k)
			}
		}
	}
	return nil
}

// pruneLocked descarta entradas fora da janela, preservando a ordem.
func pruneLocked(seq []time.Time, windowStart time.Time) []time.Time {
	idx := 0
	for idx < len(seq) && !seq[idx].After(windowStart) {
		idx++
	}
	if idx == 0 {
		return seq
	}
	kept := make([]time.Time, len(seq)-idx)
	copy(kept, seq[idx:])
	return kept
}

// resetTime é relativo à entrada mais antiga retida: quando ela envelhecer
// para fora da janela, uma vaga abre.
func resetTime(kept []time.Time, window time.Duration, now time.Time) time.Time {
	if len(kept) == 0 {
		return now
	}
	return kept[0].Add(window)
}

func counterKey(cat domain.Category, key string) string {
	return cat.String() + ":" + key
}
