package ports

import "time"

// Clock abstrai a fonte de tempo para permitir múltiplas instâncias
// independentes em testes, sem estado global escondido.
type Clock interface {
	Now() time.Time
}
