package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/airbadge/internal/auth"
	"github.com/gdg-garage/airbadge/internal/clock"
	"github.com/gdg-garage/airbadge/internal/config"
	"github.com/gdg-garage/airbadge/internal/models"
	"github.com/gdg-garage/airbadge/internal/remotesync"
	"github.com/gdg-garage/airbadge/internal/session"
	"github.com/gdg-garage/airbadge/internal/storage"
	"github.com/gdg-garage/airbadge/internal/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testServer struct {
	srv      *httptest.Server
	db       *gorm.DB
	auth     *auth.AuthHandler
	sessions *session.Manager
	user     models.User
}

func setup(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.UserProgress{}))

	user := models.User{DiscordID: "123456789", Username: "tester"}
	require.NoError(t, db.Create(&user).Error)

	ts := &testServer{db: db, user: user}
	logger := zap.NewNop()
	ts.auth = auth.NewAuthHandler(&config.Config{JWTSecret: "test-secret"}, db, nil)

	factory := func(userID uint) (session.SyncClient, error) {
		return remotesync.NewClient(ts.srv.URL, ts.auth.TokenSource(userID), logger,
			remotesync.WithRetries(0, time.Millisecond)), nil
	}
	ts.sessions = session.NewManager(storage.NewMemory(), factory, logger,
		session.WithTrackerOptions(tracker.WithClock(clock.NewFake(time.Now()))))
	ts.auth.SetSessions(ts.sessions)

	r := chi.NewRouter()
	RegisterRoutes(r, logger, ts.auth, NewProgressHandler(ts.sessions, ts.auth), NewSyncHandler(db, ts.auth, logger))
	ts.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		ts.sessions.Shutdown(context.Background())
		ts.srv.Close()
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	token, err := ts.auth.GenerateToken(ts.user.ID)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) stored(t *testing.T) (models.UserProgress, bool) {
	t.Helper()
	var record models.UserProgress
	err := ts.db.Where("user_id = ?", ts.user.ID).First(&record).Error
	return record, err == nil
}

func TestSyncEndpointRoundTrip(t *testing.T) {
	ts := setup(t)
	client := remotesync.NewClient(ts.srv.URL, ts.auth.TokenSource(ts.user.ID), zap.NewNop())
	ctx := context.Background()

	snap, err := client.Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Progress)

	p := models.DefaultProgress()
	p.ReportsSubmitted = 5
	p.CitiesViewed = []string{"Prague"}
	earned := []models.EarnedBadge{{ID: "report_contributor", Name: "Report Contributor", EarnedAt: time.Now().UTC(), ProgressAtAward: 5}}
	require.NoError(t, client.Sync(ctx, models.Snapshot{Badges: earned, Progress: &p}))

	p.ReportsSubmitted = 6
	require.NoError(t, client.Sync(ctx, models.Snapshot{Badges: earned, Progress: &p}))

	var count int64
	ts.db.Model(&models.UserProgress{}).Count(&count)
	assert.Equal(t, int64(1), count)

	snap, err = client.Fetch(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Progress)
	assert.Equal(t, 6, snap.Progress.ReportsSubmitted)
	assert.Equal(t, []string{"Prague"}, snap.Progress.CitiesViewed)
	require.Len(t, snap.Badges, 1)
	assert.Equal(t, "report_contributor", snap.Badges[0].ID)
}

func TestSyncEndpointRejectsForeignToken(t *testing.T) {
	ts := setup(t)
	other := auth.NewAuthHandler(&config.Config{JWTSecret: "other-secret"}, ts.db, nil)
	client := remotesync.NewClient(ts.srv.URL, other.TokenSource(ts.user.ID), zap.NewNop())

	p := models.DefaultProgress()
	err := client.Sync(context.Background(), models.Snapshot{Badges: []models.EarnedBadge{}, Progress: &p})
	assert.ErrorIs(t, err, remotesync.ErrUnauthorized)

	_, err = client.Fetch(context.Background())
	assert.ErrorIs(t, err, remotesync.ErrUnauthorized)
}

func TestTrackAwardsAndSyncsImmediately(t *testing.T) {
	ts := setup(t)

	resp := ts.do(t, http.MethodPost, "/actions", map[string]string{"type": "quiz_complete"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result tracker.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Progress.QuizzesCompleted)
	require.Len(t, result.NewlyEarned, 1)
	assert.Equal(t, "quiz_starter", result.NewlyEarned[0].ID)

	require.Eventually(t, func() bool {
		record, ok := ts.stored(t)
		return ok && len(record.Badges) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp = ts.do(t, http.MethodGet, "/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view tracker.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, []string{"quiz_starter"}, view.EarnedBadges)
}

func TestTrackValidation(t *testing.T) {
	ts := setup(t)

	resp := ts.do(t, http.MethodPost, "/actions", map[string]string{"type": "city_view"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/actions", map[string]string{"type": "dance"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/progress", nil)
	anon, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer anon.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, anon.StatusCode)
}

func TestBadges(t *testing.T) {
	ts := setup(t)

	ts.do(t, http.MethodPost, "/actions", map[string]string{"type": "city_view", "city": "Brno"})

	resp := ts.do(t, http.MethodGet, "/badges", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Badges []BadgeStatus `json:"badges"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Badges)
	assert.Equal(t, "report_contributor", body.Badges[0].ID)
	for _, b := range body.Badges {
		if b.ID == "city_explorer" {
			assert.Equal(t, 1, b.Progress.Current)
			assert.Equal(t, 20, b.Progress.Percentage)
			assert.False(t, b.Progress.Earned)
		}
	}

	resp = ts.do(t, http.MethodGet, "/badges/air_watcher", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var def models.BadgeDefinition
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&def))
	assert.Equal(t, 3, def.Threshold)

	resp = ts.do(t, http.MethodGet, "/badges/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogoutFlushesPendingProgress(t *testing.T) {
	ts := setup(t)

	resp := ts.do(t, http.MethodPost, "/actions", map[string]string{"type": "report_submit"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, ok := ts.stored(t)
	assert.False(t, ok, "debounced sync should still be pending")

	resp = ts.do(t, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	record, ok := ts.stored(t)
	require.True(t, ok)
	assert.Equal(t, 1, record.Progress.Data().ReportsSubmitted)

	_, open := ts.sessions.Get(ts.user.ID)
	assert.False(t, open)
}

func TestProgressViewSchema(t *testing.T) {
	registry := huma.NewMapRegistry("#/components/schemas/", huma.DefaultSchemaNamer)
	schema := registry.Schema(reflect.TypeOf(tracker.View{}), false, "")
	require.NotNil(t, schema)

	for _, field := range []string{"reports_submitted", "cities_viewed", "aqi_checks", "last_check_date", "earned_badges"} {
		assert.Contains(t, schema.Properties, field)
	}
}
