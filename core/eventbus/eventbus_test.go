package eventbus_test

import (
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/api/apitest"
	"github.com/sammwyy/easel/core/eventbus"
	"github.com/sammwyy/easel/core/metrics"
)

func newBus(t *testing.T, socketPath string) (*eventbus.EventBus, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return eventbus.NewEventBus(socketPath, api.NewLogger("eventbus"), m), m
}

func TestEventBus_PublishDeliversInOrder(t *testing.T) {
	bus, m := newBus(t, "")
	var got []string

	require.NoError(t, bus.Subscribe(api.SignalFilter{}, func(s api.Signal) error {
		got = append(got, "first:"+s.Type)
		return nil
	}))
	require.NoError(t, bus.Subscribe(api.SignalFilter{}, func(s api.Signal) error {
		got = append(got, "second:"+s.Type)
		return nil
	}))

	require.NoError(t, bus.Publish(api.Signal{Source: "beacon", Type: "scene.changed"}))

	assert.Equal(t, []string{"first:scene.changed", "second:scene.changed"}, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Signals.WithLabelValues("scene.changed")))
}

func TestEventBus_PublishStampsSignal(t *testing.T) {
	bus, _ := newBus(t, "")
	var got api.Signal
	require.NoError(t, bus.Subscribe(api.SignalFilter{}, func(s api.Signal) error {
		got = s
		return nil
	}))

	require.NoError(t, bus.Publish(api.Signal{Type: "ping"}))

	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestEventBus_PublishRejectsEmptyType(t *testing.T) {
	bus, _ := newBus(t, "")

	err := bus.Publish(api.Signal{Source: "x"})
	apitest.AssertErrorCode(t, err, api.CodeInvalidSignal)
}

func TestEventBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus, _ := newBus(t, "")
	delivered := 0

	require.NoError(t, bus.Subscribe(api.SignalFilter{}, func(api.Signal) error {
		return errors.New("boom")
	}))
	require.NoError(t, bus.Subscribe(api.SignalFilter{}, func(api.Signal) error {
		delivered++
		return nil
	}))

	require.NoError(t, bus.Publish(api.Signal{Type: "ping"}))
	assert.Equal(t, 1, delivered)
}

func TestEventBus_Filters(t *testing.T) {
	tests := []struct {
		name   string
		filter api.SignalFilter
		signal api.Signal
		want   bool
	}{
		{"empty filter", api.SignalFilter{}, api.Signal{Type: "a"}, true},
		{"source match", api.SignalFilter{Sources: []string{"beacon"}}, api.Signal{Source: "beacon", Type: "a"}, true},
		{"source miss", api.SignalFilter{Sources: []string{"beacon"}}, api.Signal{Source: "other", Type: "a"}, false},
		{"type match", api.SignalFilter{Types: []string{"a", "b"}}, api.Signal{Type: "b"}, true},
		{"type miss", api.SignalFilter{Types: []string{"a"}}, api.Signal{Type: "c"}, false},
		{"regex type", api.SignalFilter{Regex: map[string]string{"type": `^scene\.`}}, api.Signal{Type: "scene.changed"}, true},
		{
			"regex payload",
			api.SignalFilter{Regex: map[string]string{"orchestrator": `^flow-`}},
			api.Signal{Type: "flow.coordinate", Payload: map[string]interface{}{"orchestrator": "flow-pipeline"}},
			true,
		},
		{
			"regex payload missing",
			api.SignalFilter{Regex: map[string]string{"orchestrator": `^flow-`}},
			api.Signal{Type: "flow.coordinate", Payload: "not a map"},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus, _ := newBus(t, "")
			matched := false
			require.NoError(t, bus.Subscribe(tt.filter, func(api.Signal) error {
				matched = true
				return nil
			}))

			require.NoError(t, bus.Publish(tt.signal))
			assert.Equal(t, tt.want, matched)
		})
	}
}

func TestEventBus_SubscribeRejectsBadRegex(t *testing.T) {
	bus, _ := newBus(t, "")

	err := bus.Subscribe(api.SignalFilter{Regex: map[string]string{"type": "("}}, func(api.Signal) error { return nil })
	assert.Error(t, err)
}

func TestEventBus_SocketIngest(t *testing.T) {
	defer goleak.VerifyNone(t)

	socketPath := filepath.Join(t.TempDir(), "easel.sock")
	bus, _ := newBus(t, socketPath)

	var mu sync.Mutex
	var received []api.Signal
	bus.SetIngest(func(s api.Signal) {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
	})
	require.NoError(t, bus.Start())

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)

	enc := json.NewEncoder(conn)
	require.NoError(t, enc.Encode(api.Signal{Type: "flow.coordinate", Payload: map[string]any{"orchestrator": "flow-pipeline"}}))
	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)
	require.NoError(t, enc.Encode(api.Signal{Type: "scene.save", Source: "cli"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.NoError(t, bus.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "flow.coordinate", received[0].Type)
	assert.Equal(t, "socket", received[0].Source)
	assert.Equal(t, "cli", received[1].Source)
}

func TestEventBus_SocketPublishesWithoutIngest(t *testing.T) {
	defer goleak.VerifyNone(t)

	socketPath := filepath.Join(t.TempDir(), "easel.sock")
	bus, _ := newBus(t, socketPath)

	got := make(chan api.Signal, 1)
	require.NoError(t, bus.Subscribe(api.SignalFilter{Types: []string{"ping"}}, func(s api.Signal) error {
		got <- s
		return nil
	}))
	require.NoError(t, bus.Start())

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	require.NoError(t, json.NewEncoder(conn).Encode(api.Signal{Type: "ping"}))

	select {
	case s := <-got:
		assert.Equal(t, "ping", s.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("signal not delivered")
	}

	require.NoError(t, bus.Stop())
	require.NoError(t, conn.Close())
}
