package initdata

import (
	"strings"
	"testing"
)

const (
	testBotToken = "123456:TEST-token"
	testHash     = "8d066ec0b9d75ce7323c79896ffaf0c340efeb499070b5e5b565717c10217d8c"
	testPayload  = "auth_date=1700000000&query_id=AAHdF6IQAAAAAN0XohDhrOrc" +
		"&user=%7B%22id%22%3A279058397%2C%22first_name%22%3A%22Vladislav%22%2C%22username%22%3A%22vdkfrost%22%2C%22language_code%22%3A%22ru%22%7D" +
		"&hash=" + testHash
)

func TestValidate_KnownPayload(t *testing.T) {
	ok, claims := Validate(testPayload, testBotToken)
	if !ok {
		t.Fatalf("expected valid payload")
	}
	if _, has := claims["hash"]; has {
		t.Fatalf("hash must be removed from claims")
	}
	if claims["auth_date"] != "1700000000" {
		t.Fatalf("auth_date = %q", claims["auth_date"])
	}

	u, err := ParseUser(claims)
	if err != nil {
		t.Fatalf("ParseUser: %v", err)
	}
	if u.ID != 279058397 || u.Username != "vdkfrost" || u.FirstName != "Vladislav" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestValidate_FlippedHashCharacter(t *testing.T) {
	for i := 0; i < len(testHash); i++ {
		flipped := []byte(testHash)
		if flipped[i] == 'a' {
			flipped[i] = 'b'
		} else {
			flipped[i] = 'a'
		}
		payload := strings.Replace(testPayload, testHash, string(flipped), 1)

		ok, claims := Validate(payload, testBotToken)
		if ok {
			t.Fatalf("flipping hash char %d must invalidate payload", i)
		}
		if len(claims) != 0 {
			t.Fatalf("invalid payload must return empty claims, got %v", claims)
		}
	}
}

func TestValidate_WrongToken(t *testing.T) {
	if ok, _ := Validate(testPayload, "654321:other"); ok {
		t.Fatalf("expected invalid with another bot token")
	}
}

func TestValidate_MissingHashOrGarbage(t *testing.T) {
	cases := []string{
		"",
		"auth_date=1700000000",
		"%zz=1&hash=abc",
	}
	for _, raw := range cases {
		ok, claims := Validate(raw, testBotToken)
		if ok || len(claims) != 0 {
			t.Fatalf("Validate(%q) = %v, %v; want false, empty", raw, ok, claims)
		}
	}
}

func TestValidate_TamperedField(t *testing.T) {
	payload := strings.Replace(testPayload, "auth_date=1700000000", "auth_date=1700000001", 1)
	if ok, _ := Validate(payload, testBotToken); ok {
		t.Fatalf("tampered field must invalidate payload")
	}
}

func TestSign_RoundTrip(t *testing.T) {
	raw := Sign(map[string]string{
		"auth_date": "1700000000",
		"user":      `{"id":42,"username":"alice"}`,
		"empty":     "",
	}, testBotToken)

	ok, claims := Validate(raw, testBotToken)
	if !ok {
		t.Fatalf("signed payload must validate: %s", raw)
	}
	u, err := ParseUser(claims)
	if err != nil {
		t.Fatalf("ParseUser: %v", err)
	}
	if u.ID != 42 || u.Username != "alice" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestParseUser_Errors(t *testing.T) {
	if _, err := ParseUser(map[string]string{}); err != ErrNoUser {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}
	if _, err := ParseUser(map[string]string{"user": "{not json"}); err != ErrInvalidUser {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
	if _, err := ParseUser(map[string]string{"user": `{"username":"x"}`}); err != ErrInvalidUser {
		t.Fatalf("expected ErrInvalidUser for missing id, got %v", err)
	}
}

func TestValidate_StrictQueryParsing(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"bad percent escape", testPayload + "&extra=%zz"},
		{"semicolon separator", testPayload + ";extra=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, claims := Validate(tt.payload, testBotToken)
			if ok || len(claims) != 0 {
				t.Fatalf("expected rejected payload, got ok=%v claims=%v", ok, claims)
			}
		})
	}
}
