package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/JeanGrijp/admission-control/internal/core/domain"
	"github.com/JeanGrijp/admission-control/internal/core/ports"
)

const (
	frequencyWindow      = 60 * time.Second
	suspiciousThreshold  = 50
	trustedThreshold     = 5
	regularityWindow     = 300 * time.Second
	regularityMinSamples = 10
	regularityMaxStddev  = 100 * time.Millisecond
)

// PatternAnalyzer classifica o comportamento recente de um IP a partir do
// histórico da categoria ip no CounterStore. Derivado, nunca armazenado:
// o score é recalculado a cada checagem.
//
// Heurísticas:
//   - frequência: mais de 50 requisições nos últimos 60s → suspicious;
//     menos de 5 → trusted.
//   - regularidade: com pelo menos 10 amostras nos últimos 300s, desvio
//     padrão (populacional) dos intervalos entre chegadas abaixo de 100ms
//     indica cadência de bot e também marca suspicious.
type PatternAnalyzer struct {
	store ports.CounterStore
	clock ports.Clock
}

func NewPatternAnalyzer(store ports.CounterStore, clock ports.Clock) (*PatternAnalyzer, error) {
	if store == nil {
		return nil, fmt.Errorf("counter store is required")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &PatternAnalyzer{store: store, clock: clock}, nil
}

func (a *PatternAnalyzer) Classify(ctx context.Context, ip string) (domain.PatternScore, error) {
	now := a.clock.Now()

	history, err := a.store.History(ctx, domain.CategoryIP, normalizeKey(ip), now.Add(-regularityWindow), now)
	if err != nil {
		return domain.PatternScore{}, fmt.Errorf("history for %s: %w", ip, err)
	}

	var score domain.PatternScore

	cutoff := now.Add(-frequencyWindow)
	count60 := 0
	for _, ts := range history {
		if ts.After(cutoff) {
			count60++
		}
	}
	switch {
	case count60 > suspiciousThreshold:
		score.Suspicious = true
	case count60 < trustedThreshold:
		score.Trusted = true
	}

	if regularIntervals(history) {
		score.Suspicious = true
		score.Trusted = false
	}

	return score, nil
}

// regularIntervals detecta cadência mecânica: intervalos entre chegadas
// com desvio padrão menor que 100ms.
func regularIntervals(history []time.Time) bool {
	if len(history) < regularityMinSamples {
		return false
	}

	intervals := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		intervals = append(intervals, float64(history[i].Sub(history[i-1]).Milliseconds()))
	}

	mean := 0.0
	for _, v := range intervals {
		mean += v
	}
	mean /= float64(len(intervals))

	variance := 0.0
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(intervals))

	return math.Sqrt(variance) < float64(regularityMaxStddev.Milliseconds())
}
