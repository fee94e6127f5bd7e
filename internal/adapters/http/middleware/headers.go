package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/JeanGrijp/admission-control/internal/core/domain"
)

const defaultLimitMessage = "you have reached the maximum number of requests allowed within this time frame"

// emitLimitHeaders decora a resposta com os headers de rate limit.
// Estágios posteriores sobrescrevem os anteriores, então a resposta
// carrega os valores do limiter mais específico que rodou.
func emitLimitHeaders(w http.ResponseWriter, d domain.Decision, legacy bool) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Policy.Max))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetTime.Unix(), 10))
	if legacy {
		h.Set("X-RateLimit-Used", strconv.Itoa(d.Current))
	}
}

type limitExceededBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
	LimitType  string `json:"limitType"`
	ResetTime  string `json:"resetTime"`
}

// writeLimitExceeded encerra a requisição com 429 e o corpo estruturado
// de negação.
func writeLimitExceeded(w http.ResponseWriter, d domain.Decision) {
	message := d.Policy.Message
	if message == "" {
		message = defaultLimitMessage
	}
	retryAfter := d.Policy.RetryAfter()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(limitExceededBody{
		Error:      message,
		RetryAfter: retryAfter,
		LimitType:  d.Category.String(),
		ResetTime:  d.ResetTime.UTC().Format(time.RFC3339),
	})
}

// statusRecorder captura o status final para o ajuste skip-on-outcome.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w}
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.status = http.StatusOK
		r.wroteHeader = true
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Status() int {
	if !r.wroteHeader {
		return http.StatusOK
	}
	return r.status
}
