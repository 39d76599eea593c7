package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/liminal/agent/scheduler"
	"github.com/BaSui01/liminal/config"
	"github.com/BaSui01/liminal/types"
)

func TestSettingsHandler_Get(t *testing.T) {
	cfg := config.DefaultConfig()
	h := NewSettingsHandler(scheduler.NewRoster(cfg), nil)

	w := do(t, h.HandleSettings, http.MethodGet, "/api/v1/settings", "")
	require.Equal(t, http.StatusOK, w.Code)

	view, resp := decode[scheduler.RosterView](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, cfg.Conversation.NumAIs, view.NumAIs)
	assert.Equal(t, cfg.Participants, view.Participants)
}

func TestSettingsHandler_Put(t *testing.T) {
	roster := scheduler.NewRoster(config.DefaultConfig())
	h := NewSettingsHandler(roster, nil)

	w := do(t, h.HandleSettings, http.MethodPut, "/api/v1/settings",
		`{"num_ais":3,"max_iterations":2,"prompt_pair":"muse","turn_delay_seconds":1.5}`)
	require.Equal(t, http.StatusOK, w.Code)

	view, _ := decode[scheduler.RosterView](t, w)
	assert.Equal(t, 3, view.NumAIs)
	assert.Equal(t, 2, view.MaxIterations)
	assert.Equal(t, "muse", view.PromptPair)
	assert.Equal(t, 1500*time.Millisecond, view.TurnDelay)
	assert.Equal(t, view, roster.View())
}

func TestSettingsHandler_PutInvalid(t *testing.T) {
	roster := scheduler.NewRoster(config.DefaultConfig())
	before := roster.View()
	h := NewSettingsHandler(roster, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"num_ais out of range", `{"num_ais":9}`, string(types.ErrInvalidConfig)},
		{"unknown pair", `{"prompt_pair":"missing"}`, string(types.ErrInvalidConfig)},
		{"unknown field", `{"speed":3}`, string(types.ErrInvalidRequest)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h.HandleSettings, http.MethodPut, "/api/v1/settings", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			_, resp := decode[scheduler.RosterView](t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
	assert.Equal(t, before, roster.View())
}

type failingStore struct{ scheduler.RosterView }

func (f failingStore) View() scheduler.RosterView { return f.RosterView }

func (failingStore) Update(scheduler.RosterUpdate) error { return errors.New("at most 5 participants") }

func TestSettingsHandler_PlainErrorBecomesInvalidConfig(t *testing.T) {
	h := NewSettingsHandler(failingStore{}, nil)

	w := do(t, h.HandleSettings, http.MethodPut, "/api/v1/settings", `{"participants":["a"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, resp := decode[scheduler.RosterView](t, w)
	assert.Equal(t, string(types.ErrInvalidConfig), resp.Error.Code)
	assert.Equal(t, "at most 5 participants", resp.Error.Message)
}

func TestSettingsHandler_MethodNotAllowed(t *testing.T) {
	h := NewSettingsHandler(failingStore{}, nil)
	w := do(t, h.HandleSettings, http.MethodPost, "/api/v1/settings", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, PUT", w.Header().Get("Allow"))
}
