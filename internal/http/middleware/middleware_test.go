package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/service"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuth() *service.AuthService {
	return service.NewAuthService(service.AuthConfig{JWTSecret: "test-secret", TTL: time.Hour}, nil, nil)
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRoles(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/me", JWT(auth), func(c *gin.Context) {
		id, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})
	r.GET("/admin", JWT(auth), RequireRole(service.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	player, err := auth.IssueToken(7, 700, service.RolePlayer)
	if err != nil {
		t.Fatal(err)
	}
	admin, err := auth.IssueToken(0, 900, service.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name, path, token string
		want              int
	}{
		{"no token", "/me", "", http.StatusUnauthorized},
		{"garbage", "/me", "not-a-token", http.StatusUnauthorized},
		{"player", "/me", player, http.StatusOK},
		{"player on admin", "/admin", player, http.StatusForbidden},
		{"admin", "/admin", admin, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(r, http.MethodGet, tt.path, tt.token); w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	if w := do(r, http.MethodGet, "/me?token="+player, ""); w.Code != http.StatusOK {
		t.Fatalf("query token: status = %d", w.Code)
	}
}

func TestLocalRateLimit(t *testing.T) {
	r := gin.New()
	r.POST("/login", LocalRateLimit(2, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		if w := do(r, http.MethodPost, "/login", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}
	if w := do(r, http.MethodPost, "/login", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: %d", w.Code)
	}
}

func TestRateLimiterWithoutRedisFailsOpen(t *testing.T) {
	rl := NewRateLimiter(nil)
	r := gin.New()
	r.GET("/x", rl.ByIP(1, time.Minute), rl.ByUser(1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	for i := 0; i < 3; i++ {
		if w := do(r, http.MethodGet, "/x", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodGet, "/", "")
	if w.Header().Get(HeaderRequestID) == "" {
		t.Fatal("missing request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(HeaderRequestID); got != "abc" {
		t.Fatalf("request id = %q", got)
	}
}
