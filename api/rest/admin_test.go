package rest_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmin_RequiresKey(t *testing.T) {
	ts := newTestServer(t)

	w := getReq(ts.r, "/api/admin/metrics")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = getReq(ts.r, "/api/admin/metrics", "X-Admin-Key", "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = getReq(ts.r, "/api/admin/metrics", "X-Admin-Key", testAdminKey)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminMetrics_Counts(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.register(t, "alice")
	ts.register(t, "bob")
	createGuild(t, ts, token, "Ember Watch")

	w := getReq(ts.r, "/api/admin/metrics", "X-Admin-Key", testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, float64(2), resp["profiles"])
	assert.Equal(t, float64(1), resp["guilds"])
}

func TestAdminBan_LocksOutProfile(t *testing.T) {
	ts := newTestServer(t)
	id, _ := ts.register(t, "troll")

	w := postJSON(ts.r, fmt.Sprintf("/api/admin/profiles/%d/ban", id),
		map[string]bool{"ban": true}, "X-Admin-Key", testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)

	// Banned profiles cannot log back in.
	login := postJSON(ts.r, "/api/auth/login", map[string]string{
		"username": "troll", "password": "hunter22",
	})
	assert.Equal(t, http.StatusForbidden, login.Code)

	// Unban restores access.
	w = postJSON(ts.r, fmt.Sprintf("/api/admin/profiles/%d/ban", id),
		map[string]bool{"ban": false}, "X-Admin-Key", testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	login = postJSON(ts.r, "/api/auth/login", map[string]string{
		"username": "troll", "password": "hunter22",
	})
	assert.Equal(t, http.StatusOK, login.Code)
}

func TestAdminBan_UnknownProfile(t *testing.T) {
	ts := newTestServer(t)
	w := postJSON(ts.r, "/api/admin/profiles/9999/ban",
		map[string]bool{"ban": true}, "X-Admin-Key", testAdminKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRankingRefresh(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "player")

	w := postJSON(ts.r, "/api/admin/ranking/refresh", nil, "X-Admin-Key", testAdminKey)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminScheduler_Empty(t *testing.T) {
	ts := newTestServer(t)
	w := getReq(ts.r, "/api/admin/scheduler", "X-Admin-Key", testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode(t, w)["tasks"])
}
