package domain

import "errors"

var (
	// ErrLimitExceeded sinaliza que a política da categoria negou a requisição.
	// Não é uma falha interna: é o desfecho esperado de um limite estourado.
	ErrLimitExceeded = errors.New("rate limit exceeded")
)

func IsLimitExceeded(err error) bool {
	return errors.Is(err, ErrLimitExceeded)
}
