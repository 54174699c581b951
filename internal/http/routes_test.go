package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/http/handlers"
	"github.com/toprakhenaz/sword-combat/internal/league"
	"github.com/toprakhenaz/sword-combat/internal/repository/memstore"
	"github.com/toprakhenaz/sword-combat/internal/service"
	"github.com/toprakhenaz/sword-combat/internal/session"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	router    *gin.Engine
	auth      *service.AuthService
	sessions  *session.Manager
	clock     *clock
	uploadDir string
}

const adminPassword = "correct horse"

func newServer(t *testing.T) *testServer {
	t.Helper()
	st := memstore.New()
	st.SeedDemo()
	leagues := league.Default()

	game := service.NewGameService(st, leagues, nil)
	audit := service.NewAuditService(st)
	hash, err := service.HashPassword(adminPassword)
	if err != nil {
		t.Fatal(err)
	}
	auth := service.NewAuthService(service.AuthConfig{
		JWTSecret:         "test-secret",
		TTL:               time.Hour,
		DevMode:           true,
		AdminPasswordHash: hash,
	}, game, audit)
	admin := service.NewAdminService(st, game, audit, nil)

	clk := &clock{now: time.Now()}
	sessions := session.NewManager(game, leagues, session.Options{
		CoinWindow:   time.Hour,
		EnergyWindow: time.Hour,
		TickInterval: time.Hour,
		SaveInterval: time.Hour,
		RegenBase:    time.Hour,
		Now:          clk.Now,
	}, time.Hour)
	t.Cleanup(func() { _ = sessions.Shutdown(context.Background()) })

	dir := t.TempDir()
	h := handlers.NewHandler(game, auth, admin, sessions, handlers.HandlerConfig{
		BotUsername:   "SwordCombatBot",
		UploadDir:     dir,
		PublicBaseURL: "https://cdn.example.com",
	})
	r := NewRouter(Deps{
		Handler: h,
		Health:  handlers.NewHealthHandler(st, nil, sessions, "test"),
		Tokens:  auth,
		Limits:  Limits{Auth: 100},
	})
	return &testServer{router: r, auth: auth, sessions: sessions, clock: clk, uploadDir: dir}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func (s *testServer) login(t *testing.T, tgID int64, username string) (string, int64) {
	t.Helper()
	user, _ := json.Marshal(map[string]any{"id": tgID, "username": username, "first_name": username})
	initData := url.Values{"user": {string(user)}}.Encode()
	code, body := s.do(t, "POST", "/api/v1/auth/telegram", "", map[string]string{"init_data": initData})
	if code != nethttp.StatusOK {
		t.Fatalf("login: %d %v", code, body)
	}
	u := body["user"].(map[string]any)
	return body["token"].(string), int64(u["id"].(float64))
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	code, body := s.do(t, "POST", "/api/v1/admin/login", "", map[string]string{"password": adminPassword})
	if code != nethttp.StatusOK {
		t.Fatalf("admin login: %d %v", code, body)
	}
	return body["token"].(string)
}

func state(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	st, ok := body["state"].(map[string]any)
	if !ok {
		t.Fatalf("no state in %v", body)
	}
	return st
}

func TestHealthAndLeagues(t *testing.T) {
	s := newServer(t)

	if code, body := s.do(t, "GET", "/health", "", nil); code != nethttp.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", code, body)
	}
	if code, _ := s.do(t, "GET", "/health/ready", "", nil); code != nethttp.StatusOK {
		t.Fatalf("ready: %d", code)
	}
	code, body := s.do(t, "GET", "/api/v1/leagues", "", nil)
	if code != nethttp.StatusOK {
		t.Fatalf("leagues: %d", code)
	}
	if n := len(body["leagues"].([]any)); n != 7 {
		t.Fatalf("leagues = %d, want 7", n)
	}
}

func TestTelegramLogin(t *testing.T) {
	s := newServer(t)

	if code, _ := s.do(t, "POST", "/api/v1/auth/telegram", "", map[string]string{}); code != nethttp.StatusBadRequest {
		t.Fatalf("missing init data: %d", code)
	}

	user, _ := json.Marshal(map[string]any{"id": 777, "username": "paladin", "first_name": "Pal"})
	body := map[string]string{"init_data": url.Values{"user": {string(user)}}.Encode()}
	code, first := s.do(t, "POST", "/api/v1/auth/telegram", "", body)
	if code != nethttp.StatusOK || first["new"] != true || first["token"] == "" {
		t.Fatalf("first login: %d %v", code, first)
	}
	if u := first["user"].(map[string]any); u["username"] != "paladin" {
		t.Fatalf("user = %v", u)
	}
	code, again := s.do(t, "POST", "/api/v1/auth/telegram", "", body)
	if code != nethttp.StatusOK || again["new"] != false {
		t.Fatalf("second login: %d %v", code, again)
	}
}

func TestTapThroughSession(t *testing.T) {
	s := newServer(t)
	token, _ := s.login(t, 111, "hero")

	code, body := s.do(t, "POST", "/api/v1/game/tap", token, nil)
	if code != nethttp.StatusOK {
		t.Fatalf("tap: %d %v", code, body)
	}
	st := state(t, body)
	if st["coins"].(float64) != 1001 || st["energy"].(float64) != 99 {
		t.Fatalf("state after tap = %v", st)
	}

	// same instant: limited
	code, body = s.do(t, "POST", "/api/v1/game/tap", token, nil)
	if code != nethttp.StatusTooManyRequests || body["code"] != "rate_limited" {
		t.Fatalf("second tap: %d %v", code, body)
	}

	s.clock.advance(50 * time.Millisecond)
	if code, _ = s.do(t, "POST", "/api/v1/game/tap", token, nil); code != nethttp.StatusOK {
		t.Fatalf("third tap: %d", code)
	}

	// refresh writes the queued taps and keeps the local view
	code, body = s.do(t, "POST", "/api/v1/game/refresh", token, nil)
	if code != nethttp.StatusOK {
		t.Fatalf("refresh: %d %v", code, body)
	}
	if st := state(t, body); st["coins"].(float64) != 1002 || st["energy"].(float64) != 98 {
		t.Fatalf("state after refresh = %v", st)
	}
}

func TestGameErrorStatuses(t *testing.T) {
	s := newServer(t)
	token, _ := s.login(t, 222, "knight")

	tests := []struct {
		name, path string
		status     int
		code       string
	}{
		{"unknown boost", "/api/v1/game/boosts/godMode/upgrade", nethttp.StatusBadRequest, "invalid_boost"},
		{"boost too expensive", "/api/v1/game/boosts/multiTouch/upgrade", nethttp.StatusBadRequest, "insufficient_funds"},
		{"combo index", "/api/v1/game/combo/7", nethttp.StatusBadRequest, "invalid_card"},
		{"missing task", "/api/v1/game/tasks/9999/complete", nethttp.StatusNotFound, "not_found"},
		{"no league reward", "/api/v1/game/league/collect", nethttp.StatusBadRequest, "nothing_to_collect"},
		{"too early", "/api/v1/game/collect-hourly", nethttp.StatusBadRequest, "too_early"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.do(t, "POST", tt.path, token, nil)
			if code != tt.status || body["code"] != tt.code {
				t.Fatalf("%s: %d %v", tt.path, code, body)
			}
		})
	}
}

func TestTaskFlow(t *testing.T) {
	s := newServer(t)
	token, _ := s.login(t, 333, "archer")

	code, body := s.do(t, "GET", "/api/v1/tasks", token, nil)
	if code != nethttp.StatusOK {
		t.Fatalf("tasks: %d", code)
	}
	tasks := body["tasks"].([]any)
	if len(tasks) == 0 {
		t.Fatal("no tasks")
	}
	task := tasks[0].(map[string]any)
	path := "/api/v1/game/tasks/" + jsonID(task["id"])
	reward := task["reward"].(float64)

	if code, body = s.do(t, "POST", path+"/complete", token, nil); code != nethttp.StatusBadRequest || body["code"] != "not_started" {
		t.Fatalf("complete before start: %d %v", code, body)
	}
	s.do(t, "POST", path+"/start", token, nil)
	if code, body = s.do(t, "POST", path+"/complete", token, nil); code != nethttp.StatusBadRequest || body["code"] != "not_ready" {
		t.Fatalf("complete at 50: %d %v", code, body)
	}
	s.do(t, "POST", path+"/start", token, nil)

	code, body = s.do(t, "POST", path+"/complete", token, nil)
	if code != nethttp.StatusOK {
		t.Fatalf("complete: %d %v", code, body)
	}
	if st := state(t, body); st["coins"].(float64) != 1000+reward {
		t.Fatalf("coins = %v, want %v", st["coins"], 1000+reward)
	}
	if code, body = s.do(t, "POST", path+"/complete", token, nil); code != nethttp.StatusConflict {
		t.Fatalf("second complete: %d %v", code, body)
	}
}

func TestRoleSeparation(t *testing.T) {
	s := newServer(t)
	player, _ := s.login(t, 444, "mage")
	admin := s.adminToken(t)

	tests := []struct {
		name, method, path, token string
		want                      int
	}{
		{"anonymous me", "GET", "/api/v1/me", "", nethttp.StatusUnauthorized},
		{"player me", "GET", "/api/v1/me", player, nethttp.StatusOK},
		{"admin me", "GET", "/api/v1/me", admin, nethttp.StatusForbidden},
		{"player stats", "GET", "/api/v1/admin/stats", player, nethttp.StatusForbidden},
		{"admin stats", "GET", "/api/v1/admin/stats", admin, nethttp.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := s.do(t, tt.method, tt.path, tt.token, nil); code != tt.want {
				t.Fatalf("%s %s = %d %v, want %d", tt.method, tt.path, code, body, tt.want)
			}
		})
	}

	code, _ := s.do(t, "POST", "/api/v1/admin/login", "", map[string]string{"password": "wrong"})
	if code != nethttp.StatusUnauthorized {
		t.Fatalf("bad password: %d", code)
	}
}

func TestAdminCatalogAndCoins(t *testing.T) {
	s := newServer(t)
	admin := s.adminToken(t)
	_, uid := s.login(t, 555, "rogue")

	code, body := s.do(t, "POST", "/api/v1/admin/items", admin, map[string]any{
		"name": "Rune Blade", "category": "weapons", "base_hourly_income": 500, "base_upgrade_cost": 8000,
	})
	if code != nethttp.StatusCreated || body["id"].(float64) == 0 {
		t.Fatalf("create item: %d %v", code, body)
	}
	if code, body = s.do(t, "POST", "/api/v1/admin/items", admin, map[string]any{"base_upgrade_cost": -1}); code != nethttp.StatusBadRequest {
		t.Fatalf("invalid item: %d %v", code, body)
	}

	userPath := "/api/v1/admin/users/" + jsonID(float64(uid))
	if code, body = s.do(t, "PUT", userPath+"/coins", admin, map[string]any{"coins": 5}); code != nethttp.StatusOK {
		t.Fatalf("set coins: %d %v", code, body)
	}
	if code, body = s.do(t, "PUT", userPath+"/coins", admin, map[string]any{"add": 10}); code != nethttp.StatusOK || body["coins"].(float64) != 15 {
		t.Fatalf("add coins: %d %v", code, body)
	}
	if code, body = s.do(t, "PUT", userPath+"/coins", admin, map[string]any{}); code != nethttp.StatusBadRequest {
		t.Fatalf("empty coins: %d %v", code, body)
	}
	if code, body = s.do(t, "GET", userPath, admin, nil); code != nethttp.StatusOK || body["coins"].(float64) != 15 {
		t.Fatalf("get user: %d %v", code, body)
	}
	if code, _ = s.do(t, "GET", "/api/v1/admin/users/999999", admin, nil); code != nethttp.StatusNotFound {
		t.Fatalf("missing user: %d", code)
	}

	code, body = s.do(t, "GET", "/api/v1/admin/transactions?type=admin_adjust", admin, nil)
	if code != nethttp.StatusOK || body["total"].(float64) != 2 {
		t.Fatalf("transactions: %d %v", code, body)
	}
}

func TestBanEndsSession(t *testing.T) {
	s := newServer(t)
	admin := s.adminToken(t)
	token, uid := s.login(t, 666, "villain")

	if code, _ := s.do(t, "POST", "/api/v1/game/tap", token, nil); code != nethttp.StatusOK {
		t.Fatalf("tap: %d", code)
	}
	code, body := s.do(t, "POST", "/api/v1/admin/users/"+jsonID(float64(uid))+"/ban", admin, nil)
	if code != nethttp.StatusOK || body["is_banned"] != true {
		t.Fatalf("ban: %d %v", code, body)
	}
	if s.sessions.Len() != 0 {
		t.Fatalf("sessions = %d after ban", s.sessions.Len())
	}

	s.clock.advance(time.Second)
	code, body = s.do(t, "POST", "/api/v1/game/tap", token, nil)
	if code != nethttp.StatusForbidden || body["code"] != "banned" {
		t.Fatalf("tap while banned: %d %v", code, body)
	}
}

func TestUpload(t *testing.T) {
	s := newServer(t)
	admin := s.adminToken(t)

	upload := func(kind string, content []byte) (int, map[string]any) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "sword.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
		mw.Close()

		req := httptest.NewRequest("POST", "/api/v1/admin/uploads/"+kind, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+admin)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		var out map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		return w.Code, out
	}

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	code, body := upload("items", png)
	if code != nethttp.StatusCreated {
		t.Fatalf("upload: %d %v", code, body)
	}
	u := body["url"].(string)
	if !strings.HasPrefix(u, "https://cdn.example.com/uploads/items/") || !strings.HasSuffix(u, ".png") {
		t.Fatalf("url = %q", u)
	}
	if _, err := os.Stat(filepath.Join(s.uploadDir, "items", filepath.Base(u))); err != nil {
		t.Fatalf("stored file: %v", err)
	}

	if code, _ = upload("items", []byte("#!/bin/sh\necho hi\n")); code != nethttp.StatusUnsupportedMediaType {
		t.Fatalf("script upload: %d", code)
	}
	if code, _ = upload("weapons", png); code != nethttp.StatusNotFound {
		t.Fatalf("unknown kind: %d", code)
	}
}

func jsonID(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
