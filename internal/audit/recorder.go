package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/cloudlink-core/internal/event"
)

// sourceSession marks rows written from session lifecycle events.
const sourceSession = "session"

// defaultWriteTimeout bounds one audit insert.
const defaultWriteTimeout = 5 * time.Second

// Recorder is an event handler that writes lifecycle events to a Repository.
type Recorder struct {
	repo    Repository
	timeout time.Duration

	// RecordState enables rows for DeviceStateEvent, which can be frequent.
	RecordState bool
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, timeout: defaultWriteTimeout}
}

// HandleEvent implements event.Handler.
func (r *Recorder) HandleEvent(e event.Event) error {
	log, ok := r.logFor(e)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.repo.Create(ctx, log); err != nil {
		return fmt.Errorf("recording %s: %w", e.Kind(), err)
	}
	return nil
}

// logFor maps an event to an audit row. It reports false for events that
// are not recorded.
func (r *Recorder) logFor(e event.Event) (*Log, bool) {
	switch ev := e.(type) {
	case event.DeviceOnlineEvent:
		action := ActionOnlineStatus
		if ev.Discovered {
			action = ActionDeviceDiscovered
		}
		return &Log{
			Action:     action,
			EntityType: EntityDevice,
			EntityID:   ev.Device.ID(),
			Source:     sourceSession,
			Details: map[string]any{
				"name":   ev.Device.Name(),
				"type":   ev.Device.Type(),
				"online": ev.Online,
			},
			CreatedAt: ev.Time,
		}, true

	case event.ConnectionEvent:
		return &Log{
			Action:     ActionConnectionState,
			EntityType: EntityCloud,
			Source:     sourceSession,
			Details:    map[string]any{"state": ev.State},
			CreatedAt:  ev.Time,
		}, true

	case event.DeviceStateEvent:
		if !r.RecordState {
			return nil, false
		}
		return &Log{
			Action:     ActionStateChanged,
			EntityType: EntityDevice,
			EntityID:   ev.Device.ID(),
			Source:     sourceSession,
			Details: map[string]any{
				"namespace": ev.Namespace,
				"state":     ev.State,
			},
			CreatedAt: ev.Time,
		}, true

	default:
		return nil, false
	}
}
