package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInitDataSignature = errors.New("init data signature mismatch")
	ErrInitDataExpired   = errors.New("init data expired")
)

const (
	// init data older than this is rejected as a replay
	initDataMaxAge = time.Hour
	initDataSkew   = 5 * time.Minute
)

// webAppKey derives the Mini App signing key from the bot token.
func webAppKey(botToken string) []byte {
	m := hmac.New(sha256.New, []byte("WebAppData"))
	m.Write([]byte(botToken))
	return m.Sum(nil)
}

// dataCheckString joins every field except hash as sorted key=value lines.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(values.Get(k))
	}
	return sb.String()
}

// SignInitData returns the hash Telegram attaches to values.
func SignInitData(values url.Values, botToken string) string {
	m := hmac.New(sha256.New, webAppKey(botToken))
	m.Write([]byte(dataCheckString(values)))
	return hex.EncodeToString(m.Sum(nil))
}

// VerifyInitData checks the signature and freshness of Mini App init data
// and returns its fields without the hash.
func VerifyInitData(initData, botToken string, now time.Time) (url.Values, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInitDataSignature
	}
	provided, err := hex.DecodeString(values.Get("hash"))
	if err != nil || len(provided) == 0 {
		return nil, ErrInitDataSignature
	}
	expected, _ := hex.DecodeString(SignInitData(values, botToken))
	if !hmac.Equal(expected, provided) {
		return nil, ErrInitDataSignature
	}

	sec, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, ErrInitDataExpired
	}
	age := now.Sub(time.Unix(sec, 0))
	if age > initDataMaxAge || age < -initDataSkew {
		return nil, ErrInitDataExpired
	}

	values.Del("hash")
	return values, nil
}

// parseUnsigned reads init data without verifying it. Dev mode only.
func parseUnsigned(initData string) (url.Values, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}
	values.Del("hash")
	return values, nil
}
