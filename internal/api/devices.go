package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/cloudlink-core/internal/audit"
	"github.com/nerrad567/cloudlink-core/internal/device"
)

// discoverTimeout bounds a discovery pass triggered through the API.
const discoverTimeout = 30 * time.Second

// handleListDevices returns tracked devices, with optional query filters.
//
// Query parameters (first match wins):
//   - name: exact device name
//   - type: device type, e.g. mss310
//   - capability: toggle, light, hub, sub_device, thermostat, sensor, battery
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var handles []device.Handle
	switch {
	case q.Get("name") != "":
		h, err := s.manager.DeviceByName(q.Get("name"))
		if err != nil && !errors.Is(err, device.ErrDeviceNotFound) {
			writeInternalError(w, "failed to look up device")
			return
		}
		if h != nil {
			handles = []device.Handle{h}
		}
	case q.Get("type") != "":
		handles = s.manager.DevicesByType(q.Get("type"))
	case q.Get("capability") != "":
		c, err := device.ParseCapability(q.Get("capability"))
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		handles = s.manager.DevicesByKind(c)
	default:
		handles = s.manager.SupportedDevices()
	}

	devices := describeAll(handles)
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one device by its registry ID. Sub-devices use
// the composite "hub:sub" form.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h, err := s.manager.DeviceByUUID(id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to look up device")
		return
	}

	writeJSON(w, http.StatusOK, device.Describe(h))
}

// handleDeviceStats returns registry counters.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Stats())
}

// handleDiscover runs a discovery pass and returns every tracked device.
//
// Query parameters:
//   - online_only: "true" skips devices the cloud reports as not online
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	onlineOnly, _ := strconv.ParseBool(r.URL.Query().Get("online_only")) //nolint:errcheck // invalid means false

	ctx, cancel := context.WithTimeout(r.Context(), discoverTimeout)
	defer cancel()

	handles, err := s.manager.Discover(ctx, onlineOnly)
	if err != nil {
		s.logger.Error("discovery via API failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, "discovery failed: "+err.Error())
		return
	}

	devices := describeAll(handles)
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleListEvents returns recorded lifecycle events.
//
// Query parameters:
//   - action: device_discovered, online_status, connection_state, state_changed
//   - entity_type: device or cloud
//   - entity_id: device registry ID
//   - since: RFC 3339 lower bound
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusNotImplemented, ErrCodeNotConfigured, "event history not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list events", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// describeAll projects handles for JSON, ordered by ID for stable output.
func describeAll(handles []device.Handle) []device.Info {
	out := make([]device.Info, 0, len(handles))
	for _, h := range handles {
		out = append(out, device.Describe(h))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
