package session

import (
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/mqtt"
)

// HandlePush routes a device notification to its handle.
//
// The target is identified by the UUID segment of the header "from" field.
// A notification from an unknown device triggers exactly one discovery pass
// and is then dropped, whether or not the device was found. Errors are
// logged, never returned.
func (m *Manager) HandlePush(msg *mqtt.Message, fromSelf bool) {
	if msg == nil {
		return
	}

	id, err := msg.OriginUUID()
	if err != nil {
		m.logger.Warn("dropping notification with malformed origin",
			"from", msg.Header.From,
			"namespace", msg.Header.Namespace,
			"error", err,
		)
		return
	}

	if h, ok := m.registry.Get(id); ok {
		if !h.HandlePushNotification(msg.Header.Namespace, msg.Payload, fromSelf) {
			m.logger.Debug("notification not handled by device",
				"device", id,
				"namespace", msg.Header.Namespace,
			)
		}
		return
	}

	m.logger.Info("notification from unknown device; running discovery",
		"uuid", id,
		"namespace", msg.Header.Namespace,
	)
	if _, err := m.Discover(m.ctx, false); err != nil {
		m.logger.Error("discovery after unknown notification failed", "uuid", id, "error", err)
		return
	}
	if _, ok := m.registry.Get(id); !ok {
		m.logger.Warn("device still unknown after discovery", "uuid", id)
	}
}
