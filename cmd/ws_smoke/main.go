// Command ws_smoke drives a websocket session against a running server:
// it waits for the ready handshake, taps a few times, refreshes and prints
// the final state.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/config"
	"github.com/toprakhenaz/sword-combat/internal/db"
	"github.com/toprakhenaz/sword-combat/internal/league"
	"github.com/toprakhenaz/sword-combat/internal/logger"
	"github.com/toprakhenaz/sword-combat/internal/protocol"
	"github.com/toprakhenaz/sword-combat/internal/repository"
	"github.com/toprakhenaz/sword-combat/internal/service"
	"github.com/toprakhenaz/sword-combat/internal/store"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

const smokeTgID = 3001

func main() {
	logger.Init("info", false)
	_ = godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	taps := 5
	if v := os.Getenv("SMOKE_TAPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			taps = n
		}
	}

	ctx := context.Background()
	pool := db.Connect(ctx, cfg.DatabaseURL)
	defer pool.Close()

	st := repository.NewStore(pool)
	game := service.NewGameService(st, league.Default(), nil)
	audit := service.NewAuditService(st)
	auth := service.NewAuthService(service.AuthConfig{JWTSecret: cfg.JWTSecret, TTL: time.Hour}, game, audit)

	u, err := st.Users().GetByTgID(ctx, smokeTgID)
	if errors.Is(err, store.ErrNotFound) {
		u, err = service.NewAdminService(st, game, audit, nil).CreateUser(ctx, 0, smokeTgID, "smoke", "Smoke")
	}
	if err != nil {
		logger.Fatal("prepare user", "error", err)
	}
	token, err := auth.IssueToken(u.ID, u.TgID, service.RolePlayer)
	if err != nil {
		logger.Fatal("issue token", "error", err)
	}

	// 127.0.0.1 avoids resolving to [::1]
	url := fmt.Sprintf("ws://127.0.0.1:%s/ws?token=%s", cfg.AppPort, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		logger.Fatal("dial", "error", err)
	}
	defer conn.Close()

	ready := waitFor(conn, protocol.TypeReady, "", 3*time.Second)
	logger.Info("session ready", "state", ready)

	for i := 0; i < taps; i++ {
		id := "tap-" + strconv.Itoa(i)
		send(conn, protocol.Request{Type: protocol.TypeTap, ID: id})
		if res := waitFor(conn, protocol.TypeResult, id, 2*time.Second); res == nil {
			logger.Warn("no result", "id", id)
		}
		// stay above the server's minimum tap spacing
		time.Sleep(60 * time.Millisecond)
	}

	send(conn, protocol.Request{Type: protocol.TypeRefresh, ID: "refresh"})
	waitFor(conn, protocol.TypeResult, "refresh", 3*time.Second)
	final := waitFor(conn, protocol.TypeState, "refresh", 3*time.Second)
	logger.Info("smoke test finished", "taps", taps, "state", final)
}

func send(conn *websocket.Conn, req protocol.Request) {
	if err := conn.WriteJSON(req); err != nil {
		logger.Fatal("write", "type", req.Type, "error", err)
	}
}

// waitFor reads until a message of the given type (and id, when set) arrives
// and returns its payload. Error messages are logged and skipped.
func waitFor(conn *websocket.Conn, typ, id string, timeout time.Duration) any {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var resp protocol.Response
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Warn("read", "error", err)
			return nil
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		if resp.Type == protocol.TypeError {
			logger.Warn("server error", "id", resp.ID, "payload", resp.Payload)
			if resp.ID == id {
				return nil
			}
			continue
		}
		if resp.Type == typ && (id == "" || resp.ID == id) {
			return resp.Payload
		}
	}
	return nil
}
