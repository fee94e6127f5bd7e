// Package middleware disponibiliza os middlewares HTTP de controle de admissão.
//
// A cadeia completa roda, nesta ordem: global → ip → user (quando
// autenticado) → override de endpoint (quando o caminho tem um) → burst
// guard (rotas sensíveis) → limiter dinâmico (quando habilitado). Qualquer
// estágio pode encerrar com 429. Falha interna em um estágio admite a
// requisição (fail-open): disponibilidade vale mais que rigor do limiter.
//
// Os limiters estático de IP e dinâmico usam espaços de chaves
// independentes; montados juntos, o estático segue sendo o teto e o
// dinâmico só aperta abaixo dele para chaves suspeitas.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JeanGrijp/admission-control/internal/core/domain"
	"github.com/JeanGrijp/admission-control/internal/core/services"
)

type ctxKey int

const userIDKey ctxKey = iota

// WithUserID anexa o id do usuário autenticado ao contexto. Deve ser
// chamado pelo middleware de autenticação, antes do estágio user.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID recupera o id anexado por WithUserID, ou vazio.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

type KeyFunc func(r *http.Request) string

type Options struct {
	// Dynamic habilita o estágio dinâmico quando não-nil.
	Dynamic *services.DynamicLimiter

	// SensitivePaths recebem o burst guard antes dos estágios pesados.
	SensitivePaths map[string]bool

	// LegacyHeaders liga o X-RateLimit-Used além dos headers padrão.
	LegacyHeaders bool

	Logger *zap.Logger
}

// finalizer registra o ajuste skip-on-outcome de um estágio admitido,
// executado exatamente uma vez depois que a resposta termina.
type finalizer struct {
	cat    domain.Category
	key    string
	policy domain.LimitPolicy
}

// Admission monta a cadeia completa de admissão.
func Admission(svc *services.AdmissionService, opts Options) func(http.Handler) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, finalizers := admit(svc, opts, w, r)
			if !allowed {
				// Estágios admitidos antes da negação também observam o
				// desfecho: uma política skip-on-failure não cobra o 429.
				runFinalizers(svc, opts.Logger, r.Context(), finalizers, http.StatusTooManyRequests)
				return
			}

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			runFinalizers(svc, opts.Logger, r.Context(), finalizers, rec.Status())
		})
	}
}

// admit roda os estágios. Retorna allowed=false apenas quando um limite
// foi de fato estourado (e o 429 já foi escrito); os finalizers dos
// estágios admitidos antes da negação são devolvidos mesmo assim, para
// que o desfecho 429 seja aplicado a eles. Pânico em qualquer ponto da
// decisão admite a requisição.
func admit(svc *services.AdmissionService, opts Options, w http.ResponseWriter, r *http.Request) (allowed bool, finalizers []finalizer) {
	defer func() {
		if rec := recover(); rec != nil {
			opts.Logger.Error("admission check panicked, failing open", zap.Any("panic", rec), zap.String("path", r.URL.Path))
			allowed = true
		}
	}()

	ip := ClientIP(r)
	reqCtx := services.RequestContext{Method: r.Method, Path: r.URL.Path}
	registry := svc.Registry()

	type stage struct {
		cat    domain.Category
		key    string
		policy domain.LimitPolicy
	}

	// Os estágios de categoria da cadeia usam o default da categoria; o
	// override de caminho entra só no estágio endpoint. Overrides dentro
	// de um grupo de rotas ficam a cargo do CategoryLimiter.
	stages := []stage{
		{cat: domain.CategoryGlobal, key: "global", policy: registry.Policy(domain.CategoryGlobal, "")},
		{cat: domain.CategoryIP, key: ip, policy: registry.Policy(domain.CategoryIP, "")},
	}
	if uid := UserID(r.Context()); uid != "" {
		stages = append(stages, stage{cat: domain.CategoryUser, key: uid, policy: registry.Policy(domain.CategoryUser, "")})
	}
	if override, ok := registry.Override(r.URL.Path); ok {
		stages = append(stages, stage{cat: domain.CategoryEndpoint, key: ip + ":" + r.URL.Path, policy: override})
	}
	if opts.SensitivePaths[r.URL.Path] {
		stages = append(stages, stage{cat: domain.CategoryBurst, key: ip, policy: registry.Policy(domain.CategoryBurst, "")})
	}

	for _, st := range stages {
		decision, err := svc.CheckWithPolicy(r.Context(), st.cat, st.key, st.policy, reqCtx)
		if err != nil {
			if domain.IsLimitExceeded(err) {
				emitLimitHeaders(w, decision, opts.LegacyHeaders)
				writeLimitExceeded(w, decision)
				return false, finalizers
			}
			opts.Logger.Error("admission check failed, failing open",
				zap.String("category", st.cat.String()), zap.String("key", st.key), zap.Error(err))
			continue
		}

		emitLimitHeaders(w, decision, opts.LegacyHeaders)
		if decision.Policy.SkipOnSuccess || decision.Policy.SkipOnFailure {
			finalizers = append(finalizers, finalizer{cat: st.cat, key: st.key, policy: decision.Policy})
		}
	}

	if opts.Dynamic != nil {
		decision, err := opts.Dynamic.Check(r.Context(), ip, reqCtx)
		if err != nil {
			if domain.IsLimitExceeded(err) {
				emitLimitHeaders(w, decision, opts.LegacyHeaders)
				writeLimitExceeded(w, decision)
				return false, finalizers
			}
			opts.Logger.Error("dynamic check failed, failing open", zap.String("ip", ip), zap.Error(err))
		} else {
			emitLimitHeaders(w, decision, opts.LegacyHeaders)
		}
	}

	return true, finalizers
}

// CategoryLimiter monta um estágio único para um grupo de rotas (ex: auth,
// payment, sensitive). A política é resolvida por caminho, com override
// vencendo o default, mas o espaço de chaves continua o da categoria.
func CategoryLimiter(svc *services.AdmissionService, cat domain.Category, keyFn KeyFunc, opts Options) func(http.Handler) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if keyFn == nil {
		keyFn = ClientIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			reqCtx := services.RequestContext{Method: r.Method, Path: r.URL.Path}

			decision, err := svc.Check(r.Context(), cat, key, reqCtx)
			if err != nil {
				if domain.IsLimitExceeded(err) {
					emitLimitHeaders(w, decision, opts.LegacyHeaders)
					writeLimitExceeded(w, decision)
					return
				}
				opts.Logger.Error("admission check failed, failing open",
					zap.String("category", cat.String()), zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			emitLimitHeaders(w, decision, opts.LegacyHeaders)

			if !decision.Policy.SkipOnSuccess && !decision.Policy.SkipOnFailure {
				next.ServeHTTP(w, r)
				return
			}

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			runFinalizers(svc, opts.Logger, r.Context(), []finalizer{{cat: cat, key: key, policy: decision.Policy}}, rec.Status())
		})
	}
}

// runFinalizers aplica o skip-on-outcome: se a política manda ignorar o
// desfecho observado, a contagem mais recente da chave é descartada.
// Best-effort sob concorrência na mesma chave (ver CounterStore.RemoveNewest).
func runFinalizers(svc *services.AdmissionService, logger *zap.Logger, ctx context.Context, finalizers []finalizer, status int) {
	for _, f := range finalizers {
		success := status < http.StatusBadRequest
		if (f.policy.SkipOnSuccess && success) || (f.policy.SkipOnFailure && !success) {
			if err := svc.Discount(ctx, f.cat, f.key); err != nil {
				logger.Warn("skip-on-outcome discount failed",
					zap.String("category", f.cat.String()), zap.String("key", f.key), zap.Error(err))
			}
		}
	}
}

// ClientIP extrai o IP do cliente: primeiro salto do X-Forwarded-For,
// depois X-Real-IP, por fim o host do RemoteAddr.
func ClientIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if xRealIP != "" {
		return xRealIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
