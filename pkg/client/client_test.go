package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/tpbal/pkg/events"
	"github.com/charlie0129/tpbal/pkg/powerinfo"
)

func serveUnix(t *testing.T, h http.Handler) *Client {
	t.Helper()

	sock := filepath.Join(t.TempDir(), "tpbal.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(h)
	srv.Listener = l
	srv.Start()
	t.Cleanup(srv.Close)

	return NewClient(sock)
}

func TestDaemonNotRunning(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	_, err := c.GetVersion()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDaemonNotRunning), "got %v", err)
}

func TestNotFound(t *testing.T) {
	c := serveUnix(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`"no snapshot taken yet"`))
	}))

	_, err := c.GetSnapshot()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestServerError(t *testing.T) {
	c := serveUnix(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`"no battery found"`))
	}))

	_, err := c.GetBatteryInfo()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "got 500")
}

func TestGetters(t *testing.T) {
	pct := 55.0
	snap := powerinfo.Snapshot{
		Primary: powerinfo.Reading{Status: powerinfo.StatusIdle, Percentage: &pct},
	}
	decision := powerinfo.Decision{Command: powerinfo.Force(powerinfo.Secondary), Reason: "secondary holds more charge"}

	mux := http.NewServeMux()
	reply := func(path string, v any) {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(v)
		})
	}
	reply("/snapshot", snap)
	reply("/decision", decision)
	reply("/version", "v1.2.3")
	reply("/battery-info", []powerinfo.Battery{{Index: 1, State: powerinfo.StateCharging}})

	c := serveUnix(t, mux)

	gotSnap, err := c.GetSnapshot()
	require.NoError(t, err)
	require.NotNil(t, gotSnap.Primary.Percentage)
	assert.Equal(t, 55.0, *gotSnap.Primary.Percentage)
	assert.Equal(t, powerinfo.StatusIdle, gotSnap.Primary.Status)

	gotDecision, err := c.GetDecision()
	require.NoError(t, err)
	assert.Equal(t, decision.Command, gotDecision.Command)

	v, err := c.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)

	bats, err := c.GetBatteryInfo()
	require.NoError(t, err)
	require.Len(t, bats, 1)
	assert.Equal(t, 1, bats[0].Index)
}

func TestStreamEvents(t *testing.T) {
	c := serveUnix(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 3; i++ {
			_, _ = fmt.Fprintf(w, "event:%s\ndata:{\"target\":\"primary\",\"ts\":%d}\n\n", events.Switch, i)
		}
	}))

	var got []events.SwitchEvent
	err := c.StreamEvents(context.Background(), func(ev events.Event) bool {
		assert.Equal(t, events.Switch, ev.Name)
		se, err := events.DecodeAs[events.SwitchEvent](ev)
		require.NoError(t, err)
		got = append(got, se)
		return len(got) < 2
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "primary", got[0].Target)
	assert.Equal(t, int64(1), got[1].Ts)
}
