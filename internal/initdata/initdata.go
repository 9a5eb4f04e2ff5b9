// Package initdata проверяет подпись initData, которую Telegram передаёт в Mini App.
//
// Алгоритм:
//
//	secret   = HMAC-SHA256(key="WebAppData", msg=botToken)
//	expected = hex(HMAC-SHA256(key=secret, msg=dataCheckString))
//
// где dataCheckString — отсортированные по ключу пары key=value без hash,
// склеенные через "\n".
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"
)

const (
	hashKey      = "hash"
	userKey      = "user"
	webAppDataID = "WebAppData"
)

var (
	ErrNoUser      = errors.New("init data has no user")
	ErrInvalidUser = errors.New("init data user is malformed")
)

// TelegramUser — содержимое поля user.
type TelegramUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Validate проверяет подпись raw. При успехе возвращает все поля, кроме hash.
// Ошибка разбора или отсутствие hash — (false, пустая map).
func Validate(raw, botToken string) (bool, map[string]string) {
	claims, err := parse(raw)
	if err != nil {
		return false, map[string]string{}
	}

	received, ok := claims[hashKey]
	if !ok {
		return false, map[string]string{}
	}
	delete(claims, hashKey)

	expected := computeHash(claims, botToken)
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return false, map[string]string{}
	}
	return true, claims
}

// Sign строит подписанную строку initData из values. Нужна тестам и локальной отладке.
func Sign(values map[string]string, botToken string) string {
	claims := make(map[string]string, len(values))
	q := url.Values{}
	for k, v := range values {
		if k == hashKey || v == "" {
			continue
		}
		claims[k] = v
		q.Set(k, v)
	}
	q.Set(hashKey, computeHash(claims, botToken))
	return q.Encode()
}

// ParseUser достаёт пользователя из проверенных claims.
func ParseUser(claims map[string]string) (*TelegramUser, error) {
	raw, ok := claims[userKey]
	if !ok || raw == "" {
		return nil, ErrNoUser
	}
	var u TelegramUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, ErrInvalidUser
	}
	if u.ID == 0 {
		return nil, ErrInvalidUser
	}
	return &u, nil
}

// parse разбирает query-строку. Пары с пустым значением отбрасываются,
// при повторе ключа побеждает последнее значение.
// Разбор строгий: битый %-escape или ';' как разделитель делают весь
// payload невалидным. Telegram такие строки не присылает.
func parse(raw string) (map[string]string, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) == 0 {
			continue
		}
		v := vs[len(vs)-1]
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out, nil
}

func dataCheckString(claims map[string]string) string {
	keys := make([]string, 0, len(claims))
	for k := range claims {
		if k == hashKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+claims[k])
	}
	return strings.Join(lines, "\n")
}

func computeHash(claims map[string]string, botToken string) string {
	secret := hmac.New(sha256.New, []byte(webAppDataID))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dataCheckString(claims)))
	return hex.EncodeToString(mac.Sum(nil))
}
