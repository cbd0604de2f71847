package eventbus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/core/metrics"
)

// IngestFunc receives signals read from the socket
type IngestFunc func(signal api.Signal)

// EventBus distributes plugin signals to subscribers and optionally accepts
// signals from other processes over a Unix Domain Socket
type EventBus struct {
	socketPath  string
	listener    net.Listener
	subscribers []subscription
	ingest      IngestFunc
	mutex       sync.RWMutex
	logger      api.Logger
	metrics     *metrics.Metrics
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

type subscription struct {
	filter  api.SignalFilter
	handler api.SignalHandler
}

// Compile-time interface check.
var _ api.SignalSink = (*EventBus)(nil)

// NewEventBus creates a new event bus. An empty socketPath disables the socket.
func NewEventBus(socketPath string, logger api.Logger, m *metrics.Metrics) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventBus{
		socketPath:  socketPath,
		subscribers: make([]subscription, 0),
		logger:      logger,
		metrics:     m,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetIngest sets the function that receives socket signals. Without one,
// socket signals are published on the bus directly.
func (eb *EventBus) SetIngest(fn IngestFunc) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	eb.ingest = fn
}

// Start starts listening for socket connections when a socket path is set
func (eb *EventBus) Start() error {
	if eb.socketPath == "" {
		eb.logger.Debug("EventBus socket disabled")
		return nil
	}

	// Remove existing socket file if it exists
	if err := os.RemoveAll(eb.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", eb.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}

	eb.listener = listener
	eb.logger.Info("EventBus started", "socket", eb.socketPath)

	eb.wg.Add(1)
	go eb.acceptConnections()

	return nil
}

// Stop stops the event bus
func (eb *EventBus) Stop() error {
	eb.cancel()
	if eb.listener == nil {
		return nil
	}

	if err := eb.listener.Close(); err != nil {
		eb.logger.Error("Failed to close listener", "error", err)
	}
	eb.wg.Wait()

	// Remove socket file
	if err := os.Remove(eb.socketPath); err != nil && !os.IsNotExist(err) {
		eb.logger.Error("Failed to remove socket file", "error", err)
	}

	eb.logger.Info("EventBus stopped")
	return nil
}

// Publish delivers a signal to every matching subscriber, in subscription
// order, on the caller's goroutine
func (eb *EventBus) Publish(signal api.Signal) error {
	if signal.Type == "" {
		return oops.Code(api.CodeInvalidSignal).In("eventbus").
			With("source", signal.Source).
			Wrapf(api.ErrInvalidSignal, "signal type is required")
	}
	if signal.ID == "" {
		signal.ID = ulid.Make().String()
	}
	if signal.Timestamp.IsZero() {
		signal.Timestamp = time.Now()
	}

	eb.mutex.RLock()
	subscribers := append([]subscription(nil), eb.subscribers...)
	eb.mutex.RUnlock()

	eb.metrics.RecordSignal(signal.Type)

	for _, sub := range subscribers {
		if !eb.matchesFilter(signal, sub.filter) {
			continue
		}
		if err := sub.handler(signal); err != nil {
			eb.logger.Error("Signal handler failed", "error", err, "signal_id", signal.ID, "type", signal.Type)
		}
	}

	return nil
}

// Subscribe registers a handler for signals matching the given filter
func (eb *EventBus) Subscribe(filter api.SignalFilter, handler api.SignalHandler) error {
	for field, pattern := range filter.Regex {
		if _, err := regexp.Compile(pattern); err != nil {
			return oops.In("eventbus").With("field", field).Wrapf(err, "invalid regex %q", pattern)
		}
	}

	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	eb.subscribers = append(eb.subscribers, subscription{
		filter:  filter,
		handler: handler,
	})

	eb.logger.Debug("New signal subscription added", "filter", filter)
	return nil
}

// acceptConnections accepts incoming socket connections
func (eb *EventBus) acceptConnections() {
	defer eb.wg.Done()

	for {
		conn, err := eb.listener.Accept()
		if err != nil {
			select {
			case <-eb.ctx.Done():
				return
			default:
				eb.logger.Error("Failed to accept connection", "error", err)
				continue
			}
		}

		eb.wg.Add(1)
		go eb.handleConnection(conn)
	}
}

// handleConnection reads newline-delimited JSON signals from one connection
func (eb *EventBus) handleConnection(conn net.Conn) {
	defer eb.wg.Done()
	defer conn.Close()

	go func() {
		<-eb.ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var signal api.Signal
		if err := json.Unmarshal(line, &signal); err != nil {
			eb.logger.Error("Failed to decode signal", "error", err)
			continue
		}
		if signal.Source == "" {
			signal.Source = "socket"
		}

		eb.mutex.RLock()
		ingest := eb.ingest
		eb.mutex.RUnlock()

		if ingest != nil {
			ingest(signal)
			continue
		}
		if err := eb.Publish(signal); err != nil {
			eb.logger.Error("Failed to publish signal", "error", err)
		}
	}
}

// matchesFilter checks if a signal matches the given filter
func (eb *EventBus) matchesFilter(signal api.Signal, filter api.SignalFilter) bool {
	// Check sources filter
	if len(filter.Sources) > 0 && !contains(filter.Sources, signal.Source) {
		return false
	}

	// Check types filter
	if len(filter.Types) > 0 && !contains(filter.Types, signal.Type) {
		return false
	}

	// Check regex filters
	for field, pattern := range filter.Regex {
		var fieldValue string

		switch field {
		case "source":
			fieldValue = signal.Source
		case "type":
			fieldValue = signal.Type
		default:
			// Check in payload
			if payload, ok := signal.Payload.(map[string]interface{}); ok {
				if val, exists := payload[field]; exists {
					fieldValue = fmt.Sprintf("%v", val)
				}
			}
		}

		matched, err := regexp.MatchString(pattern, fieldValue)
		if err != nil {
			eb.logger.Error("Invalid regex pattern", "pattern", pattern, "error", err)
			return false
		}

		if !matched {
			return false
		}
	}

	return true
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
