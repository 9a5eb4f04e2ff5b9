package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Leganyst/room-booking/internal/clock"
	"github.com/Leganyst/room-booking/internal/db"
	"github.com/Leganyst/room-booking/internal/events"
	"github.com/Leganyst/room-booking/internal/initdata"
	"github.com/Leganyst/room-booking/internal/logger"
	"github.com/Leganyst/room-booking/internal/model"
	"github.com/Leganyst/room-booking/internal/repository"
	"github.com/Leganyst/room-booking/internal/service"
)

const testBotToken = "123456:TEST-token"

var now = time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type testServer struct {
	handler http.Handler
	repos   repository.Repositories
}

func newTestServer(t *testing.T, opts ...func(*RouterConfig)) *testServer {
	t.Helper()

	gdb, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	log := logger.Nop()
	repos := repository.NewGormRepositories(gdb)
	tx := repository.NewGormTxManager(gdb)

	identity := service.NewIdentityService(repos, tx, log)
	bookings := service.NewBookingService(repos, tx, events.NopPublisher{}, clock.Fake(now), log)

	bh, err := NewBookingHandler(bookings, log)
	if err != nil {
		t.Fatalf("NewBookingHandler: %v", err)
	}

	cfg := RouterConfig{
		Bookings:       bh,
		Auth:           NewAuthenticator(testBotToken, identity, log),
		Health:         NewHealthHandler(sqlDB, log),
		RequestTimeout: 5 * time.Second,
		MaxBodyBytes:   1 << 16,
		Log:            log,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testServer{handler: NewRouter(cfg), repos: repos}
}

func initDataFor(id int64, username string) string {
	user := fmt.Sprintf(`{"id":%d,"first_name":"Test","username":%q}`, id, username)
	if username == "" {
		user = fmt.Sprintf(`{"id":%d,"first_name":"Test"}`, id)
	}
	return initdata.Sign(map[string]string{
		"auth_date": "1700000000",
		"query_id":  "AAHdF6IQAAAAAN0XohDhrOrc",
		"user":      user,
	}, testBotToken)
}

func (s *testServer) do(t *testing.T, method, path, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if auth != "" {
		req.Header.Set(InitDataHeader, auth)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func bookBody(room string, start time.Time, d time.Duration) string {
	return fmt.Sprintf(`{"room":%q,"start_time":%q,"end_time":%q,"occupant_label":"305"}`,
		room, start.Format(time.RFC3339), start.Add(d).Format(time.RFC3339))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestListRooms_Public(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/rooms", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var rooms []string
	if err := json.Unmarshal(rec.Body.Bytes(), &rooms); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rooms) != 4 || rooms[0] != "Тенниска" {
		t.Fatalf("rooms = %v", rooms)
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/my-bookings", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: status = %d, want 401", rec.Code)
	}

	tampered := strings.Replace(initDataFor(1, "alice"), "alice", "mallory", 1)
	rec = s.do(t, http.MethodGet, "/api/my-bookings", tampered, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("tampered: status = %d, want 403", rec.Code)
	}
	if body := decodeError(t, rec); body.Detail != "Invalid data" || body.Code != "FORBIDDEN" {
		t.Fatalf("unexpected body: %+v", body)
	}

	noUser := initdata.Sign(map[string]string{"auth_date": "1700000000"}, testBotToken)
	rec = s.do(t, http.MethodGet, "/api/my-bookings", noUser, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("no user: status = %d, want 403", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/my-bookings", initDataFor(1, ""), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("valid: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	u, err := s.repos.Users.FindByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("user must be created on first request: %v", err)
	}
	if u.Username != "user_1" {
		t.Fatalf("username = %q, want user_1", u.Username)
	}
}

func TestCreateAndList(t *testing.T) {
	s := newTestServer(t)
	alice := initDataFor(1, "alice")
	start := now.Add(2 * time.Hour)

	rec := s.do(t, http.MethodPost, "/api/book", alice, bookBody("Тенниска", start, time.Hour))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created model.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode booking: %v", err)
	}
	if created.ID == 0 || created.UserID != 1 || !created.StartTime.Equal(start) {
		t.Fatalf("unexpected booking: %+v", created)
	}

	rec = s.do(t, http.MethodGet, "/api/my-bookings", alice, "")
	var mine []model.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &mine); err != nil {
		t.Fatalf("decode my bookings: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != created.ID {
		t.Fatalf("my bookings = %+v", mine)
	}

	rec = s.do(t, http.MethodGet, "/api/bookings?date="+start.Format("2006-01-02"), initDataFor(2, "bob"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("day view: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var day []publicBooking
	if err := json.Unmarshal(rec.Body.Bytes(), &day); err != nil {
		t.Fatalf("decode day view: %v", err)
	}
	if len(day) != 1 || day[0].User.Username != "alice" {
		t.Fatalf("day view = %+v", day)
	}
	if strings.Contains(rec.Body.String(), "user_id") {
		t.Fatalf("day view must not expose owner ids: %s", rec.Body.String())
	}

	// старый путь Mini App
	rec = s.do(t, http.MethodGet, "/api/bookings-by-date?date="+start.Format("2006-01-02"), alice, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("legacy day view: status = %d", rec.Code)
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	s := newTestServer(t)
	alice := initDataFor(1, "alice")

	tests := []struct {
		name     string
		body     string
		wantCode string
		wantRule string
	}{
		{"past", bookBody("Тенниска", now.Add(-time.Hour), time.Hour), "VALIDATION_ERROR", service.RuleStartInPast},
		{"too short", bookBody("Тенниска", now.Add(time.Hour), 14*time.Minute+59*time.Second), "VALIDATION_ERROR", service.RuleTooShort},
		{"too long", bookBody("Тенниска", now.Add(time.Hour), 4*time.Hour+time.Second), "VALIDATION_ERROR", service.RuleTooLong},
		{"unknown room", bookBody("Подвал", now.Add(time.Hour), time.Hour), "INVALID_INPUT", ""},
		{"unknown field", `{"room":"Тенниска","color":"red"}`, "INVALID_INPUT", ""},
		{"malformed json", `{"room":`, "INVALID_INPUT", ""},
		{"bad time", `{"room":"Тенниска","start_time":"tomorrow","end_time":"2030-06-01T12:00:00Z","occupant_label":"1"}`, "INVALID_INPUT", ""},
		{"missing label", fmt.Sprintf(`{"room":"Тенниска","start_time":%q,"end_time":%q}`,
			now.Add(time.Hour).Format(time.RFC3339), now.Add(2*time.Hour).Format(time.RFC3339)), "INVALID_INPUT", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/book", alice, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
			}
			body := decodeError(t, rec)
			if body.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if tt.wantRule != "" && body.Details["rule"] != tt.wantRule {
				t.Fatalf("rule = %v, want %q", body.Details["rule"], tt.wantRule)
			}
			if body.Detail == "" {
				t.Fatalf("detail must carry a human readable reason")
			}
		})
	}
}

func TestCreate_UnknownRoomCheckedBeforeTimeRules(t *testing.T) {
	s := newTestServer(t)

	// прошлое время и слишком короткая бронь, но комнаты нет в каталоге
	rec := s.do(t, http.MethodPost, "/api/book", initDataFor(1, "alice"), bookBody("Подвал", now.Add(-time.Hour), time.Minute))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Code != "INVALID_INPUT" || body.Detail != service.ErrUnknownRoom.Error() {
		t.Fatalf("unexpected body: %+v", body)
	}
	if _, ok := body.Details["rule"]; ok {
		t.Fatalf("unknown room must not be reported as a booking rule: %+v", body.Details)
	}
}

func TestCreate_LegacyRoomNumberField(t *testing.T) {
	s := newTestServer(t)
	alice := initDataFor(1, "alice")
	start := now.Add(time.Hour)

	body := fmt.Sprintf(`{"room":"Тенниска","start_time":%q,"end_time":%q,"user_room_number":"412","reason":null}`,
		start.Format(time.RFC3339), start.Add(time.Hour).Format(time.RFC3339))
	rec := s.do(t, http.MethodPost, "/api/book", alice, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created model.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode booking: %v", err)
	}
	if created.OccupantLabel != "412" {
		t.Fatalf("occupant label = %q, want 412", created.OccupantLabel)
	}

	rec = s.do(t, http.MethodGet, "/api/bookings-by-date?date="+start.Format("2006-01-02"), alice, "")
	var day []publicBooking
	if err := json.Unmarshal(rec.Body.Bytes(), &day); err != nil {
		t.Fatalf("decode day view: %v", err)
	}
	if len(day) != 1 || day[0].UserRoomNumber != "412" || day[0].OccupantLabel != "412" {
		t.Fatalf("day view = %+v", day)
	}
}

func TestCreate_RoomTaken(t *testing.T) {
	s := newTestServer(t)
	start := now.Add(time.Hour)

	if rec := s.do(t, http.MethodPost, "/api/book", initDataFor(1, "alice"), bookBody("Тенниска", start, time.Hour)); rec.Code != http.StatusCreated {
		t.Fatalf("first: status = %d", rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/api/book", initDataFor(2, "bob"), bookBody("Тенниска", start.Add(30*time.Minute), time.Hour))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second: status = %d, want 400", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Detail != service.ErrRoomTaken.Reason || body.Details["rule"] != service.RuleRoomTaken {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestCreate_WrongContentType(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/book", strings.NewReader(bookBody("Тенниска", now.Add(time.Hour), time.Hour)))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set(InitDataHeader, initDataFor(1, "alice"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rec.Code)
	}
}

func TestDelete(t *testing.T) {
	s := newTestServer(t)
	alice := initDataFor(1, "alice")
	bob := initDataFor(2, "bob")

	rec := s.do(t, http.MethodPost, "/api/book", alice, bookBody("Тенниска", now.Add(time.Hour), time.Hour))
	var created model.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode booking: %v", err)
	}
	path := fmt.Sprintf("/api/booking/%d", created.ID)

	rec = s.do(t, http.MethodDelete, path, bob, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("non-owner: status = %d, want 404", rec.Code)
	}
	if _, err := s.repos.Bookings.GetByID(context.Background(), created.ID); err != nil {
		t.Fatalf("booking must survive non-owner delete: %v", err)
	}

	rec = s.do(t, http.MethodDelete, path, alice, "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("owner: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodDelete, path, alice, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", rec.Code)
	}
	if _, err := s.repos.Bookings.GetByID(context.Background(), created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("booking must be gone, got %v", err)
	}

	rec = s.do(t, http.MethodDelete, "/api/booking/abc", alice, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d, want 400", rec.Code)
	}
}

func TestBookingsOnDate_BadParams(t *testing.T) {
	s := newTestServer(t)
	alice := initDataFor(1, "alice")

	for _, path := range []string{
		"/api/bookings",
		"/api/bookings?date=01.06.2030",
		"/api/bookings?date=2030-06-01&tz=Mars/Olympus",
	} {
		if rec := s.do(t, http.MethodGet, path, alice, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", path, rec.Code)
		}
	}

	if rec := s.do(t, http.MethodGet, "/api/bookings?date=2030-06-01&tz=UTC", alice, ""); rec.Code != http.StatusOK {
		t.Fatalf("valid tz: status = %d", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(t, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: status = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: status = %d", rec.Code)
	}

	down := newTestServer(t, func(c *RouterConfig) {
		c.Health = NewHealthHandler(pingFunc(func(context.Context) error {
			return errors.New("connection refused")
		}), logger.Nop())
	})
	if rec := down.do(t, http.MethodGet, "/ready", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready with db down: status = %d, want 503", rec.Code)
	}
}

func TestWebhookAndStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>mini app</html>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}

	var hits int
	s := newTestServer(t, func(c *RouterConfig) {
		c.StaticDir = dir
		c.Webhook = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits++
			w.WriteHeader(http.StatusOK)
		})
	})

	if rec := s.do(t, http.MethodPost, "/webhook", "", `{"update_id":1}`); rec.Code != http.StatusOK || hits != 1 {
		t.Fatalf("webhook: status = %d, hits = %d", rec.Code, hits)
	}

	rec := s.do(t, http.MethodGet, "/", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "mini app") {
		t.Fatalf("static: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if rec := s.do(t, http.MethodGet, "/api/unknown", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown api route: status = %d, want 404", rec.Code)
	}
}
