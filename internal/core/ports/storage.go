// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/admission-control/internal/core/domain"
)

// CounterStore mantém, por (categoria, chave), a sequência ordenada de
// timestamps das requisições admitidas dentro da janela deslizante.
//
// A implementação padrão vive em memória no próprio processo. Para
// operação multi-instância, a mesma interface admite um backend
// compartilhado (increment atômico + expiração) — ver o adapter Redis.
type CounterStore interface {
	// CheckAndRecord poda as entradas fora da janela, decide admitir ou
	// negar e, apenas quando admite, registra now na sequência.
	CheckAndRecord(ctx context.Context, cat domain.Category, key string, policy domain.LimitPolicy, now time.Time) (domain.Decision, error)

	// RemoveNewest descarta a entrada mais recente da chave, usado pelo
	// ajuste skip-on-outcome. Best-effort: com requisições concorrentes
	// em voo para a mesma chave, a entrada removida pode não corresponder
	// à requisição que terminou.
	RemoveNewest(ctx context.Context, cat domain.Category, key string) error

	// History devolve os timestamps admitidos em (since, now], mais
	// antigos primeiro, sem mutar o contador.
	History(ctx context.Context, cat domain.Category, key string, since, now time.Time) ([]time.Time, error)

	// Status calcula a visão corrente do contador sem mutá-lo.
	Status(ctx context.Context, cat domain.Category, key string, policy domain.LimitPolicy, now time.Time) (domain.Status, error)

	// Reset limpa contadores: todas as categorias quando cats está vazio,
	// ou apenas as informadas.
	Reset(ctx context.Context, cats ...domain.Category) error
}
