package xray

import "log"

// ConfigNotifier receives a fire-and-forget signal after a user's
// effective inbound set changes, so the engine can be reloaded.
type ConfigNotifier interface {
	NotifyConfigChanged(username string, tags []string)
}

// LogNotifier is the default notifier: it only records the change. Wiring
// an actual engine reload behind this interface is a deployment concern.
type LogNotifier struct{}

func (LogNotifier) NotifyConfigChanged(username string, tags []string) {
	log.Printf("config changed for %s: %d inbounds", username, len(tags))
}
