package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/cloudlink-core/internal/device"
	"github.com/nerrad567/cloudlink-core/internal/event"
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/mqtt"
)

// Discoverer lists the devices visible to the cloud account.
type Discoverer interface {
	ListDevices(ctx context.Context) ([]device.Descriptor, error)
	ListHubSubDevices(ctx context.Context, hubUUID string) ([]device.Descriptor, error)
}

// Transport is the push channel: it delivers device notifications and
// carries commands from device handles.
type Transport interface {
	device.Requester
	Connect(ctx context.Context) error
	Close() error
	State() mqtt.ConnectionState
	IsSubscribed() bool
	SetMessageHandler(h mqtt.PushHandler)
	SetOnStateChange(cb func(mqtt.ConnectionState))
}

// Factory builds device handles from descriptors.
type Factory interface {
	BuildDevice(kind, uuid string, req device.Requester, desc device.Descriptor) (device.Handle, error)
	BuildSubDevice(kind, subID string, hub device.Hub, req device.Requester, desc device.Descriptor) (device.Handle, error)
}

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// State is the lifecycle state of a Manager.
type State string

// Lifecycle states.
const (
	StateCreated State = "created"
	StateStarted State = "started"
	StateStopped State = "stopped"
)

// Manager owns the device registry and event bus of one cloud session.
//
// All public methods are thread-safe.
type Manager struct {
	discoverer Discoverer
	transport  Transport
	factory    Factory

	registry *device.Registry
	bus      *event.Bus
	logger   Logger

	// ctx bounds discovery passes triggered by notifications; cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	starting bool

	// stopPending records a Stop that arrived while Start was running.
	stopPending bool
}

// New creates a manager with an empty registry and event bus and wires the
// transport's message and state callbacks to it.
//
// Returns ErrMissingDependency if any collaborator is nil.
func New(discoverer Discoverer, transport Transport, factory Factory) (*Manager, error) {
	if discoverer == nil || transport == nil || factory == nil {
		return nil, ErrMissingDependency
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		discoverer: discoverer,
		transport:  transport,
		factory:    factory,
		registry:   device.NewRegistry(),
		bus:        event.NewBus(),
		logger:     noopLogger{},
		ctx:        ctx,
		cancel:     cancel,
		state:      StateCreated,
	}

	transport.SetMessageHandler(m.HandlePush)
	transport.SetOnStateChange(m.handleConnectionState)

	return m, nil
}

// SetLogger sets the logger for the manager, its registry, and its event bus.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
	m.registry.SetLogger(logger)
	m.bus.SetLogger(logger)
}

// Start connects the transport and performs an initial discovery pass.
//
// On failure the transport is closed and the manager stays in StateCreated.
// If Stop is called while Start is running, Start finishes by closing the
// transport and returns ErrStopped.
//
// Returns:
//   - error: ErrAlreadyStarted, ErrStopped, or the wrapped collaborator error
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.state == StateStopped:
		m.mu.Unlock()
		return ErrStopped
	case m.state == StateStarted || m.starting:
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.starting = true
	m.mu.Unlock()

	err := m.start(ctx)

	m.mu.Lock()
	m.starting = false
	stop := m.stopPending
	switch {
	case stop:
		m.state = StateStopped
	case err == nil:
		m.state = StateStarted
	}
	m.mu.Unlock()

	if !stop {
		return err
	}
	if err != nil {
		// start already closed the transport.
		return fmt.Errorf("%w: %w", ErrStopped, err)
	}
	m.closeTransport()
	m.logger.Info("session stopped during start")
	return ErrStopped
}

func (m *Manager) start(ctx context.Context) error {
	if err := m.transport.Connect(ctx); err != nil {
		m.closeTransport()
		return fmt.Errorf("connecting transport: %w", err)
	}

	devices, err := m.Discover(ctx, false)
	if err != nil {
		m.closeTransport()
		return fmt.Errorf("initial discovery: %w", err)
	}

	m.logger.Info("session started", "devices", len(devices))
	return nil
}

// Stop closes the transport and cancels discovery passes in flight.
// Stopping a stopped manager is a no-op. A Stop during Start is recorded and
// carried out by Start once it returns.
func (m *Manager) Stop() error {
	m.mu.Lock()
	switch {
	case m.state == StateStopped:
		m.mu.Unlock()
		return nil
	case m.starting:
		m.stopPending = true
		m.mu.Unlock()
		m.cancel()
		return nil
	case m.state == StateCreated:
		m.mu.Unlock()
		return ErrNotStarted
	}
	m.state = StateStopped
	m.mu.Unlock()

	m.cancel()
	if err := m.transport.Close(); err != nil {
		return fmt.Errorf("closing transport: %w", err)
	}

	m.logger.Info("session stopped")
	return nil
}

func (m *Manager) closeTransport() {
	if err := m.transport.Close(); err != nil {
		m.logger.Warn("closing transport", "error", err)
	}
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ConnectionState returns the transport's connection state.
func (m *Manager) ConnectionState() mqtt.ConnectionState {
	return m.transport.State()
}

// handleConnectionState forwards transport state changes to observers.
func (m *Manager) handleConnectionState(s mqtt.ConnectionState) {
	m.logger.Info("push channel state changed", "state", s)
	m.bus.Fire(event.ConnectionEvent{State: string(s), Time: time.Now().UTC()})
}

// ensureSubscribed logs a warning when the push channel is not subscribed.
// Queries still answer from the registry.
func (m *Manager) ensureSubscribed() {
	if !m.transport.IsSubscribed() {
		m.logger.Warn("push channel not subscribed; device data may be stale. Was the manager started?",
			"state", m.transport.State())
	}
}

// DeviceByUUID returns the device with the given identity: a UUID, or
// "<hubUUID>:<subDeviceID>" for sub-devices.
//
// Returns device.ErrDeviceNotFound if no device has that identity.
func (m *Manager) DeviceByUUID(id string) (device.Handle, error) {
	m.ensureSubscribed()

	h, ok := m.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}
	return h, nil
}

// DeviceByName returns a device whose name matches name, ignoring case.
//
// Returns device.ErrDeviceNotFound if no device has that name.
func (m *Manager) DeviceByName(name string) (device.Handle, error) {
	m.ensureSubscribed()

	h, ok := m.registry.GetByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: name %q", device.ErrDeviceNotFound, name)
	}
	return h, nil
}

// SupportedDevices returns a snapshot of every known device.
func (m *Manager) SupportedDevices() []device.Handle {
	m.ensureSubscribed()
	return m.registry.All()
}

// DevicesByKind returns the devices declaring capability c.
func (m *Manager) DevicesByKind(c device.Capability) []device.Handle {
	m.ensureSubscribed()
	return m.registry.ByCapability(c)
}

// DevicesByType returns the devices whose type tag matches typeName, ignoring case.
func (m *Manager) DevicesByType(typeName string) []device.Handle {
	m.ensureSubscribed()
	return m.registry.ByType(typeName)
}

// Stats returns registry statistics.
func (m *Manager) Stats() device.Stats {
	return m.registry.GetStats()
}

// RegisterEventHandler adds h to the manager's observers.
//
// h receives discovery and connection events from the manager and is also
// registered on every known device handle, so it receives device online and
// state changes. Devices discovered later get it at discovery time.
// It returns false if h was already registered.
func (m *Manager) RegisterEventHandler(h event.Handler) bool {
	if !m.bus.Register(h) {
		return false
	}
	for _, d := range m.registry.All() {
		d.RegisterEventHandler(h)
	}
	return true
}

// UnregisterEventHandler removes h from the manager and from every known device.
// It returns false if h was not registered.
func (m *Manager) UnregisterEventHandler(h event.Handler) bool {
	if !m.bus.Unregister(h) {
		return false
	}
	for _, d := range m.registry.All() {
		d.UnregisterEventHandler(h)
	}
	return true
}

// Request sends a command through the transport. It lets callers that hold
// only the manager reach devices by UUID.
func (m *Manager) Request(ctx context.Context, uuid, method, namespace string, payload any) (json.RawMessage, error) {
	return m.transport.Request(ctx, uuid, method, namespace, payload)
}
