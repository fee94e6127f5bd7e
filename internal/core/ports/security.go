package ports

// SecurityEventSink recebe eventos do pipeline de segurança (violações de
// limite, falhas internas recuperadas). Estritamente best-effort: a
// implementação nunca deve propagar falha para o caminho da requisição.
type SecurityEventSink interface {
	LogEvent(eventType string, details map[string]any)
}
