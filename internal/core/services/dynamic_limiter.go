package services

import (
	"context"
	"fmt"

	"github.com/JeanGrijp/admission-control/internal/core/domain"
)

// DynamicLimiter aperta ou afrouxa a política base de IP conforme o score
// do PatternAnalyzer e delega a checagem para a categoria dynamic.
//
// A categoria dynamic tem espaço de chaves próprio: montada na mesma rota
// que o limiter estático de IP, as duas contagens são independentes. A
// composição aqui roda o estágio dinâmico por último, então o limite
// estático segue sendo o teto e o dinâmico só aperta abaixo dele.
type DynamicLimiter struct {
	analyzer *PatternAnalyzer
	svc      *AdmissionService
}

func NewDynamicLimiter(analyzer *PatternAnalyzer, svc *AdmissionService) (*DynamicLimiter, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("pattern analyzer is required")
	}
	if svc == nil {
		return nil, fmt.Errorf("admission service is required")
	}
	return &DynamicLimiter{analyzer: analyzer, svc: svc}, nil
}

func (d *DynamicLimiter) Check(ctx context.Context, ip string, reqCtx RequestContext) (domain.Decision, error) {
	score, err := d.analyzer.Classify(ctx, ip)
	if err != nil {
		return domain.Decision{}, err
	}

	base := d.svc.Registry().Policy(domain.CategoryIP, "")
	adjusted := AdjustPolicy(base, score)

	return d.svc.CheckWithPolicy(ctx, domain.CategoryDynamic, ip, adjusted, reqCtx)
}

// AdjustPolicy escala a política base conforme o regime classificado:
// suspicious corta a cota para 10% (piso 1) e encurta a janela pela
// metade; trusted dobra cota e janela; regime neutro mantém a base.
func AdjustPolicy(base domain.LimitPolicy, score domain.PatternScore) domain.LimitPolicy {
	adjusted := base
	switch {
	case score.Suspicious:
		adjusted.Max = base.Max / 10
		if adjusted.Max < 1 {
			adjusted.Max = 1
		}
		adjusted.Window = base.Window / 2
	case score.Trusted:
		adjusted.Max = base.Max * 2
		adjusted.Window = base.Window * 2
	}
	return adjusted
}
