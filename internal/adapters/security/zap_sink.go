// Package security implementa os sinks do pipeline de eventos de segurança.
package security

import (
	"go.uber.org/zap"

	"github.com/JeanGrijp/admission-control/internal/core/ports"
)

// ZapSink publica eventos como logs estruturados. Best-effort por
// construção: zap não retorna erro no caminho de log e o chamador já
// isola qualquer pânico.
type ZapSink struct {
	logger *zap.Logger
}

var _ ports.SecurityEventSink = (*ZapSink)(nil)

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("security")}
}

func (s *ZapSink) LogEvent(eventType string, details map[string]any) {
	fields := make([]zap.Field, 0, len(details)+1)
	fields = append(fields, zap.String("event", eventType))
	for k, v := range details {
		fields = append(fields, zap.Any(k, v))
	}
	s.logger.Warn("security event", fields...)
}
