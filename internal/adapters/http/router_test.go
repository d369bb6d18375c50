package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlorchat/parlor/internal/app"
	"github.com/parlorchat/parlor/internal/config"
)

type nopConn struct{}

func (nopConn) TrySend(app.Frame) error { return nil }
func (nopConn) Close()                  {}

func newTestRouter(t *testing.T) (*httptest.Server, *app.Engine) {
	t.Helper()
	store := app.NewStore(afero.NewMemMapFs(), "chat-data.json")
	store.Restore()
	engine := app.NewEngine(store)
	cfg := &config.Config{Mode: "release", Secret: "test-secret"}
	srv := httptest.NewServer(SetupRouter(context.Background(), cfg, engine))
	t.Cleanup(srv.Close)
	return srv, engine
}

func TestLivenessRoute(t *testing.T) {
	srv, _ := newTestRouter(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheckUsernameRequiresParam(t *testing.T) {
	srv, _ := newTestRouter(t)

	resp, err := http.Get(srv.URL + "/check-username")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckUsernameAgainstLiveSessions(t *testing.T) {
	srv, engine := newTestRouter(t)
	engine.Connect("c1", nopConn{})
	engine.RegisterUser("c1", app.RegisterUserPayload{Username: "Alice"})

	check := func(name string) bool {
		resp, err := http.Get(srv.URL + "/check-username?username=" + name)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body struct {
			Available bool `json:"available"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body.Available
	}

	assert.False(t, check("alice"), "case-insensitive match against a live session")
	assert.True(t, check("bob"))

	// Names are only reserved while the session lives.
	engine.Disconnect("c1")
	assert.True(t, check("alice"))
}
