package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T, cfg AuthConfig) (*AuthService, *GameService) {
	t.Helper()
	g, st, _ := newTestGame(t)
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret"
	}
	return NewAuthService(cfg, g, NewAuditService(st)), g
}

func TestTokenRoundTrip(t *testing.T) {
	a, _ := newTestAuth(t, AuthConfig{})

	tok, err := a.IssueToken(7, 700, RolePlayer)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := a.ParseToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 7 || claims.TgID != 700 || claims.Role != RolePlayer {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := a.ParseToken(tok + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token err = %v", err)
	}
}

func TestTokenExpires(t *testing.T) {
	a, _ := newTestAuth(t, AuthConfig{TTL: time.Minute})
	tok, _ := a.IssueToken(7, 700, RolePlayer)

	a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := a.ParseToken(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token err = %v", err)
	}
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	a, _ := newTestAuth(t, AuthConfig{JWTSecret: "one"})
	b, _ := newTestAuth(t, AuthConfig{JWTSecret: "two"})
	tok, _ := a.IssueToken(1, 1, RoleAdmin)
	if _, err := b.ParseToken(tok); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestLoginTelegramCreatesPlayer(t *testing.T) {
	const botToken = "test-bot-token"
	a, _ := newTestAuth(t, AuthConfig{BotToken: botToken})
	initData := buildInitData(t, botToken, map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":4242,"username":"knight","first_name":"Sir"}`,
	})

	sess, err := a.LoginTelegram(context.Background(), initData)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Player == nil || sess.Player.User.TgID != 4242 || !sess.Player.Created {
		t.Fatalf("session = %+v", sess)
	}
	claims, err := a.ParseToken(sess.Token)
	if err != nil || claims.UserID != sess.Player.User.ID || claims.Role != RolePlayer {
		t.Fatalf("claims = %+v, %v", claims, err)
	}

	if _, err := a.LoginTelegram(context.Background(), initData+"&x=1"); !errors.Is(err, ErrInvalidInitData) {
		t.Fatalf("tampered init data err = %v", err)
	}
}

func TestLoginTelegramDevModeAcceptsUnsigned(t *testing.T) {
	a, _ := newTestAuth(t, AuthConfig{BotToken: "x", DevMode: true})
	sess, err := a.LoginTelegram(context.Background(), `user={"id":5,"username":"dev"}`)
	if err != nil || sess.Player.User.TgID != 5 {
		t.Fatalf("dev login = %+v, %v", sess, err)
	}
}

func TestLoginAdminPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := newTestAuth(t, AuthConfig{AdminPasswordHash: string(hash)})
	ctx := context.Background()

	if _, err := a.LoginAdmin(ctx, "wrong", "", "127.0.0.1"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	sess, err := a.LoginAdmin(ctx, "hunter2", "", "127.0.0.1")
	if err != nil || sess.Role != RoleAdmin {
		t.Fatalf("LoginAdmin = %+v, %v", sess, err)
	}
	claims, err := a.ParseToken(sess.Token)
	if err != nil || claims.Role != RoleAdmin {
		t.Fatalf("claims = %+v, %v", claims, err)
	}

	logs, _ := a.audit.Recent(ctx, 10)
	if len(logs) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(logs))
	}
}

func TestLoginAdminTelegramAllowList(t *testing.T) {
	const botToken = "test-bot-token"
	a, _ := newTestAuth(t, AuthConfig{BotToken: botToken, AdminTelegramIDs: []int64{99}})
	mk := func(id int) string {
		return buildInitData(t, botToken, map[string]string{
			"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
			"user":      `{"id":` + strconv.Itoa(id) + `}`,
		})
	}

	if _, err := a.LoginAdmin(context.Background(), "", mk(98), ""); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("non-admin err = %v", err)
	}
	sess, err := a.LoginAdmin(context.Background(), "", mk(99), "")
	if err != nil || sess.Role != RoleAdmin {
		t.Fatalf("admin login = %+v, %v", sess, err)
	}
}
