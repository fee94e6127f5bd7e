package services

import (
	"context"
	"testing"
	"time"

	"github.com/JeanGrijp/admission-control/internal/adapters/storage/memory"
	"github.com/JeanGrijp/admission-control/internal/core/domain"
)

// recordIPHistory grava tráfego na categoria ip nos instantes dados.
func recordIPHistory(t *testing.T, store *memory.Store, ip string, stamps []time.Time) {
	t.Helper()
	policy := domain.LimitPolicy{Window: time.Hour, Max: 100000}
	for _, ts := range stamps {
		if _, err := store.CheckAndRecord(context.Background(), domain.CategoryIP, ip, policy, ts); err != nil {
			t.Fatalf("failed to record history: %v", err)
		}
	}
}

func newTestAnalyzer(t *testing.T, store *memory.Store, clock *fakeClock) *PatternAnalyzer {
	t.Helper()
	analyzer, err := NewPatternAnalyzer(store, clock)
	if err != nil {
		t.Fatalf("failed to create analyzer: %v", err)
	}
	return analyzer
}

func TestPatternAnalyzer_HighFrequencyIsSuspicious(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := memory.New()

	// 60 requisições no último minuto, com jitter para não disparar a
	// heurística de regularidade.
	stamps := make([]time.Time, 0, 60)
	for i := 0; i < 60; i++ {
		jitter := time.Duration(i%7) * 113 * time.Millisecond
		stamps = append(stamps, start.Add(time.Duration(i)*800*time.Millisecond+jitter))
	}
	recordIPHistory(t, store, "203.0.113.50", stamps)

	clock := newFakeClock(start.Add(55 * time.Second))
	analyzer := newTestAnalyzer(t, store, clock)

	score, err := analyzer.Classify(context.Background(), "203.0.113.50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !score.Suspicious {
		t.Fatalf("expected suspicious=true for 60 requests in 60s, got %+v", score)
	}
	if score.Trusted {
		t.Fatalf("expected trusted=false, got %+v", score)
	}
}

func TestPatternAnalyzer_LowFrequencyIsTrusted(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := memory.New()
	recordIPHistory(t, store, "203.0.113.51", []time.Time{
		start,
		start.Add(13 * time.Second),
		start.Add(41 * time.Second),
	})

	clock := newFakeClock(start.Add(50 * time.Second))
	analyzer := newTestAnalyzer(t, store, clock)

	score, err := analyzer.Classify(context.Background(), "203.0.113.51")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !score.Trusted || score.Suspicious {
		t.Fatalf("expected trusted regime, got %+v", score)
	}
}

func TestPatternAnalyzer_NeutralRegime(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := memory.New()

	// 20 requisições no último minuto com espaçamento bem irregular:
	// nem suspicious por volume, nem trusted, nem cadência de bot.
	gaps := []time.Duration{
		0, 300 * time.Millisecond, 5 * time.Second, 200 * time.Millisecond,
		7 * time.Second, time.Second, 4 * time.Second, 150 * time.Millisecond,
		6 * time.Second, 2 * time.Second, 3 * time.Second, 400 * time.Millisecond,
		5 * time.Second, time.Second, 2 * time.Second, 800 * time.Millisecond,
		4 * time.Second, 3 * time.Second, time.Second, 2 * time.Second,
	}
	stamps := make([]time.Time, 0, len(gaps))
	cursor := start
	for _, g := range gaps {
		cursor = cursor.Add(g)
		stamps = append(stamps, cursor)
	}
	recordIPHistory(t, store, "203.0.113.52", stamps)

	clock := newFakeClock(cursor.Add(5 * time.Second))
	analyzer := newTestAnalyzer(t, store, clock)

	score, err := analyzer.Classify(context.Background(), "203.0.113.52")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Suspicious || score.Trusted {
		t.Fatalf("expected neutral regime, got %+v", score)
	}
}

func TestPatternAnalyzer_RegularTimingIsSuspicious(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := memory.New()

	// 12 requisições em cadência exata de 10s: volume baixo (4 no último
	// minuto), mas o desvio padrão zero dos intervalos marca bot.
	stamps := make([]time.Time, 0, 12)
	for i := 0; i < 12; i++ {
		stamps = append(stamps, start.Add(time.Duration(i)*10*time.Second))
	}
	recordIPHistory(t, store, "203.0.113.53", stamps)

	clock := newFakeClock(start.Add(115 * time.Second))
	analyzer := newTestAnalyzer(t, store, clock)

	score, err := analyzer.Classify(context.Background(), "203.0.113.53")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !score.Suspicious {
		t.Fatalf("expected regular timing to be suspicious, got %+v", score)
	}
	if score.Trusted {
		t.Fatalf("regular timing must not stay trusted, got %+v", score)
	}
}

func TestPatternAnalyzer_FewSamplesSkipRegularityCheck(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := memory.New()

	// Cadência exata, mas só 4 amostras: abaixo do mínimo para a heurística.
	stamps := make([]time.Time, 0, 4)
	for i := 0; i < 4; i++ {
		stamps = append(stamps, start.Add(time.Duration(i)*10*time.Second))
	}
	recordIPHistory(t, store, "203.0.113.54", stamps)

	clock := newFakeClock(start.Add(35 * time.Second))
	analyzer := newTestAnalyzer(t, store, clock)

	score, err := analyzer.Classify(context.Background(), "203.0.113.54")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Suspicious {
		t.Fatalf("expected regularity check to be skipped, got %+v", score)
	}
}

func TestAdjustPolicy(t *testing.T) {
	base := domain.LimitPolicy{Window: time.Minute, Max: 100}

	suspicious := AdjustPolicy(base, domain.PatternScore{Suspicious: true})
	if suspicious.Max != 10 || suspicious.Window != 30*time.Second {
		t.Fatalf("expected 10%% quota and half window, got %+v", suspicious)
	}

	trusted := AdjustPolicy(base, domain.PatternScore{Trusted: true})
	if trusted.Max != 200 || trusted.Window != 2*time.Minute {
		t.Fatalf("expected double quota and window, got %+v", trusted)
	}

	neutral := AdjustPolicy(base, domain.PatternScore{})
	if neutral != base {
		t.Fatalf("expected unchanged policy, got %+v", neutral)
	}

	// Piso de 1: cota nunca cai a zero.
	tiny := AdjustPolicy(domain.LimitPolicy{Window: time.Minute, Max: 5}, domain.PatternScore{Suspicious: true})
	if tiny.Max != 1 {
		t.Fatalf("expected floor of 1, got %d", tiny.Max)
	}
}

func TestDynamicLimiter_SuspiciousIPThrottledToTenPercent(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	set := testPolicySet(nil)
	set.Policies[domain.CategoryIP] = domain.LimitPolicy{Window: time.Minute, Max: 100}
	clock := newFakeClock(start)
	svc, store := newTestService(t, set, clock, nil)

	// Tráfego denso o bastante para classificar o IP como suspeito.
	stamps := make([]time.Time, 0, 60)
	for i := 0; i < 60; i++ {
		jitter := time.Duration(i%5) * 157 * time.Millisecond
		stamps = append(stamps, start.Add(time.Duration(i)*700*time.Millisecond+jitter))
	}
	recordIPHistory(t, store, "203.0.113.60", stamps)
	clock.Advance(50 * time.Second)

	analyzer := newTestAnalyzer(t, store, clock)
	dynamic, err := NewDynamicLimiter(analyzer, svc)
	if err != nil {
		t.Fatalf("failed to create dynamic limiter: %v", err)
	}

	ctx := context.Background()
	reqCtx := RequestContext{Method: "GET", Path: "/api/feed"}

	// Cota efetiva cai para 10% da base: 10 admitidas, a 11ª negada.
	for i := 0; i < 10; i++ {
		decision, err := dynamic.Check(ctx, "203.0.113.60", reqCtx)
		if err != nil {
			t.Fatalf("unexpected error at dynamic attempt %d: %v", i+1, err)
		}
		if !decision.Allowed {
			t.Fatalf("expected dynamic attempt %d to be admitted", i+1)
		}
		if decision.Category != domain.CategoryDynamic {
			t.Fatalf("expected dynamic category, got %s", decision.Category)
		}
	}

	if _, err := dynamic.Check(ctx, "203.0.113.60", reqCtx); !domain.IsLimitExceeded(err) {
		t.Fatalf("expected 11th dynamic attempt to be denied, got %v", err)
	}
}

func TestDynamicLimiter_TrustedIPGetsDoubleQuota(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	set := testPolicySet(nil)
	set.Policies[domain.CategoryIP] = domain.LimitPolicy{Window: time.Minute, Max: 2}
	clock := newFakeClock(start)
	svc, store := newTestService(t, set, clock, nil)

	analyzer := newTestAnalyzer(t, store, clock)
	dynamic, err := NewDynamicLimiter(analyzer, svc)
	if err != nil {
		t.Fatalf("failed to create dynamic limiter: %v", err)
	}

	ctx := context.Background()

	// Sem histórico o IP é trusted: a cota dinâmica dobra a base.
	for i := 0; i < 4; i++ {
		decision, err := dynamic.Check(ctx, "203.0.113.61", RequestContext{})
		if err != nil {
			t.Fatalf("unexpected error at attempt %d: %v", i+1, err)
		}
		if decision.Policy.Max != 4 {
			t.Fatalf("expected doubled quota of 4, got %d", decision.Policy.Max)
		}
	}
	if _, err := dynamic.Check(ctx, "203.0.113.61", RequestContext{}); !domain.IsLimitExceeded(err) {
		t.Fatalf("expected 5th attempt to be denied, got %v", err)
	}
}
