package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RolePlayer = "player"
	RoleAdmin  = "admin"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidInitData = errors.New("invalid telegram init data")
	ErrBadCredentials  = errors.New("invalid credentials")
	ErrNotAdmin        = errors.New("not an admin")
)

// Claims is the JWT payload issued to players and operators.
type Claims struct {
	UserID int64  `json:"user_id"`
	TgID   int64  `json:"tg_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthConfig configures AuthService.
type AuthConfig struct {
	JWTSecret         string
	TTL               time.Duration
	BotToken          string
	DevMode           bool
	AdminPasswordHash string
	AdminTelegramIDs  []int64
}

// AuthService authenticates players via Telegram init data and operators
// via a bcrypt password or an allow-listed Telegram id.
type AuthService struct {
	cfg    AuthConfig
	secret []byte
	game   *GameService
	audit  *AuditService
	now    func() time.Time
}

func NewAuthService(cfg AuthConfig, game *GameService, audit *AuditService) *AuthService {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &AuthService{cfg: cfg, secret: []byte(cfg.JWTSecret), game: game, audit: audit, now: time.Now}
}

// IssueToken signs a token for the given identity.
func (s *AuthService) IssueToken(userID, tgID int64, role string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		TgID:   tgID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken validates a token and returns its claims.
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == 0 && claims.Role != RoleAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TelegramUser is the "user" object embedded in Telegram init data.
type TelegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Session is returned by a successful login.
type Session struct {
	Token  string  `json:"token"`
	Player *Player `json:"player,omitempty"`
	Role   string  `json:"role"`
}

// parseInitData validates init data and extracts the user and the optional
// start_param referrer.
func (s *AuthService) parseInitData(initData string) (*TelegramUser, int64, error) {
	values, err := VerifyInitData(initData, s.cfg.BotToken, s.now())
	if err != nil {
		if !s.cfg.DevMode {
			return nil, 0, fmt.Errorf("%w: %v", ErrInvalidInitData, err)
		}
		// dev mode accepts unsigned init data
		if values, err = parseUnsigned(initData); err != nil {
			return nil, 0, ErrInvalidInitData
		}
	}
	var tu TelegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &tu); err != nil || tu.ID == 0 {
		return nil, 0, ErrInvalidInitData
	}
	referrer, _ := strconv.ParseInt(values.Get("start_param"), 10, 64)
	return &tu, referrer, nil
}

// LoginTelegram authenticates a player and opens or creates the account.
func (s *AuthService) LoginTelegram(ctx context.Context, initData string) (*Session, error) {
	tu, referrer, err := s.parseInitData(initData)
	if err != nil {
		return nil, err
	}
	p, err := s.game.InitPlayer(ctx, InitParams{
		TgID:         tu.ID,
		Username:     tu.Username,
		FirstName:    tu.FirstName,
		ReferrerTgID: referrer,
	})
	if err != nil {
		return nil, err
	}
	token, err := s.IssueToken(p.User.ID, tu.ID, RolePlayer)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	if p.Created {
		logger.WithContext(ctx).Info("player registered", "user_id", p.User.ID, "tg_id", tu.ID, "referrer_tg_id", referrer)
	}
	return &Session{Token: token, Player: p, Role: RolePlayer}, nil
}

// LoginAdmin accepts either a password or init data of an allow-listed
// Telegram account.
func (s *AuthService) LoginAdmin(ctx context.Context, password, initData, ip string) (*Session, error) {
	var tgID int64
	switch {
	case password != "":
		if s.cfg.AdminPasswordHash == "" ||
			bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)) != nil {
			s.audit.LogRequest(ctx, 0, domain.AuditActionLogin, domain.AuditCategoryAuth, 0, ip,
				map[string]interface{}{"success": false, "method": "password"})
			return nil, ErrBadCredentials
		}
	case initData != "":
		tu, _, err := s.parseInitData(initData)
		if err != nil {
			return nil, err
		}
		if !s.IsAdminTgID(tu.ID) {
			s.audit.LogRequest(ctx, 0, domain.AuditActionLogin, domain.AuditCategoryAuth, tu.ID, ip,
				map[string]interface{}{"success": false, "method": "telegram"})
			return nil, ErrNotAdmin
		}
		tgID = tu.ID
	default:
		return nil, ErrBadCredentials
	}

	token, err := s.IssueToken(0, tgID, RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.audit.LogRequest(ctx, tgID, domain.AuditActionLogin, domain.AuditCategoryAuth, 0, ip,
		map[string]interface{}{"success": true})
	return &Session{Token: token, Role: RoleAdmin}, nil
}

func (s *AuthService) IsAdminTgID(tgID int64) bool {
	for _, id := range s.cfg.AdminTelegramIDs {
		if id == tgID {
			return true
		}
	}
	return false
}

// HashPassword produces a bcrypt hash for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
