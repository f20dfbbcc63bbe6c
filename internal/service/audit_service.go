package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/secure-api/internal/events"
)

// EventRecorder counts handled audit events.
type EventRecorder interface {
	RecordEvent(eventType string)
}

// AuditService writes the audit trail for authentication events.
type AuditService struct {
	logger   *zap.Logger
	recorder EventRecorder
}

// NewAuditService creates the service. recorder may be nil.
func NewAuditService(logger *zap.Logger, recorder EventRecorder) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{logger: logger.Named("audit"), recorder: recorder}
}

// RegisterHandlers subscribes Handle to every audit event, synchronously.
func (a *AuditService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, t := range events.AllTypes {
		dispatcher.Subscribe(t, a.Handle)
	}
}

// Handle records one event.
func (a *AuditService) Handle(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("subject", event.Subject),
		zap.Time("at", event.Timestamp),
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}

	switch event.Type {
	case events.EventLoginFailed:
		a.logger.Warn("LoginFailed", fields...)
	case events.EventUserRegistered:
		a.logger.Info("UserRegistered", fields...)
	case events.EventLoginSucceeded:
		a.logger.Info("LoginSucceeded", fields...)
	case events.EventAdminBootstrapped:
		a.logger.Info("AdminBootstrapped", fields...)
	default:
		a.logger.Debug("unhandled event", fields...)
		return nil
	}
	if a.recorder != nil {
		a.recorder.RecordEvent(string(event.Type))
	}
	return nil
}
