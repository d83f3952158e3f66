package notify

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
)

// LogNotifier writes messages to the log instead of sending them.
// Meant for development, where the activation link is read from the log.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("module", "notify")}
}

func (n *LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.log.Info(ctx, "outgoing mail", "to", to, "subject", subject, "body", body)
	return nil
}
