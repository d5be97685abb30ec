// Package notify is the user-facing notification surface: the client-side
// equivalent of a toast. The session manager pushes short messages here when
// an operation fails in a way the user should see.
package notify

import "github.com/rs/zerolog"

// Severity of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier receives user-facing messages. Implementations must not block.
type Notifier interface {
	Notify(severity Severity, message string)
}

// LogNotifier writes notifications to a zerolog logger. It is the default
// surface for headless consumers of the SDK.
type LogNotifier struct {
	log zerolog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(severity Severity, message string) {
	event := n.log.Info()
	switch severity {
	case SeverityWarning:
		event = n.log.Warn()
	case SeverityError:
		event = n.log.Error()
	}
	event.Str("notification", string(severity)).Msg(message)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

var _ Notifier = NopNotifier{}

func (NopNotifier) Notify(Severity, string) {}
