package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/memprune/internal/logging"
	"github.com/blackwell-systems/memprune/internal/meminfo"
	"github.com/blackwell-systems/memprune/internal/scheduler"
)

type fixedState scheduler.StateView

func (f fixedState) Snapshot() scheduler.StateView { return scheduler.StateView(f) }

type recordingTrigger struct {
	err   error
	kinds []scheduler.Kind
}

func (r *recordingTrigger) Trigger(kind scheduler.Kind) error {
	r.kinds = append(r.kinds, kind)
	return r.err
}

func newTestServer(trig *recordingTrigger, mem MemoryReader) *httptest.Server {
	state := fixedState{Running: true, Phase: scheduler.PhaseWaiting, Cycles: 4, Killed: 11}
	s := New("127.0.0.1:0", state, trig, mem, logging.New(io.Discard, logging.ErrorLevel))
	return httptest.NewServer(s.NewRouter())
}

func TestStatus(t *testing.T) {
	mem := func() (meminfo.Info, error) {
		return meminfo.Info{TotalKb: 1000, AvailableKb: 250}, nil
	}
	ts := newTestServer(&recordingTrigger{}, mem)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.State.Running)
	assert.Equal(t, scheduler.PhaseWaiting, body.State.Phase)
	assert.Equal(t, 11, body.State.Killed)
	require.NotNil(t, body.Memory)
	assert.Equal(t, 75, body.Memory.UsedPercent)
}

func TestStatus_MemoryUnavailable(t *testing.T) {
	mem := func() (meminfo.Info, error) {
		return meminfo.Info{}, errors.New("no meminfo")
	}
	ts := newTestServer(&recordingTrigger{}, mem)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Nil(t, body.Memory)
}

func TestTrigger(t *testing.T) {
	trig := &recordingTrigger{}
	ts := newTestServer(trig, nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/trigger/manual", "", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []scheduler.Kind{scheduler.TriggerManual}, trig.kinds)
}

func TestTrigger_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{"unknown kind", "/trigger/reboot", nil, http.StatusNotFound},
		{"periodic not triggerable", "/trigger/periodic", nil, http.StatusNotFound},
		{"below threshold", "/trigger/screen_off", scheduler.ErrBelowThreshold, http.StatusConflict},
		{"disabled", "/trigger/screen_off", scheduler.ErrDisabled, http.StatusConflict},
		{"busy", "/trigger/manual", scheduler.ErrBusy, http.StatusTooManyRequests},
		{"stopped", "/trigger/manual", scheduler.ErrStopped, http.StatusServiceUnavailable},
		{"other", "/trigger/manual", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(&recordingTrigger{err: tt.err}, nil)
			defer ts.Close()

			resp, err := http.Post(ts.URL+tt.path, "", nil)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestTrigger_WrongMethod(t *testing.T) {
	ts := newTestServer(&recordingTrigger{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/trigger/manual")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_StartStop(t *testing.T) {
	s := New("127.0.0.1:0", fixedState{}, &recordingTrigger{}, nil, logging.New(io.Discard, logging.ErrorLevel))
	require.NoError(t, s.Start())
	addr := s.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop())
}
