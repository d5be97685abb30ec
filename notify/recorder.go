package notify

import "sync"

// Notification is a recorded message, kept for assertions in tests.
type Notification struct {
	Severity Severity
	Message  string
}

// Recorder captures notifications for inspection.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
}

var _ Notifier = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(severity Severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, Notification{Severity: severity, Message: message})
}

// All returns a copy of the recorded notifications in arrival order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// Messages returns just the message texts in arrival order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	messages := make([]string, 0, len(r.notifications))
	for _, n := range r.notifications {
		messages = append(messages, n.Message)
	}
	return messages
}

// Reset clears all recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = nil
}
