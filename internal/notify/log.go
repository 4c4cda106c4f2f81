package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/soaringjerry/Vigil/internal/services"
)

// LogNotifier renders messages and writes them to the log instead of sending.
// Used in development and when no email provider is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendResults(_ context.Context, msg services.ResultMessage) (string, error) {
	r, err := renderResults(msg)
	if err != nil {
		return "", err
	}
	id := "log-" + uuid.NewString()
	n.log.Info("results email",
		zap.String("delivery_id", id),
		zap.String("to", msg.To),
		zap.String("subject", r.Subject),
		zap.String("results_url", msg.ResultsURL),
	)
	return id, nil
}

func (n *LogNotifier) SendWelcome(_ context.Context, msg services.WelcomeMessage) (string, error) {
	r, err := renderWelcome(msg)
	if err != nil {
		return "", err
	}
	id := "log-" + uuid.NewString()
	n.log.Info("welcome email", zap.String("delivery_id", id), zap.String("to", msg.To), zap.String("subject", r.Subject))
	return id, nil
}

var _ services.ResultNotifier = (*LogNotifier)(nil)
