package httpapi

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/Leganyst/room-booking/internal/apperror"
	"github.com/Leganyst/room-booking/internal/initdata"
	"github.com/Leganyst/room-booking/internal/logger"
	"github.com/Leganyst/room-booking/internal/model"
)

// InitDataHeader — заголовок, в котором Mini App передаёт подписанный initData.
const InitDataHeader = "X-Telegram-Init-Data"

type userKey struct{}

// IdentityResolver — то, что нужно авторизации от сервиса пользователей.
type IdentityResolver interface {
	ResolveOrCreate(ctx context.Context, id int64, username string) (*model.User, bool, error)
}

// Authenticator проверяет initData и кладёт пользователя в контекст запроса.
type Authenticator struct {
	botToken string
	identity IdentityResolver
	log      *logger.Logger
}

func NewAuthenticator(botToken string, identity IdentityResolver, log *logger.Logger) *Authenticator {
	return &Authenticator{botToken: botToken, identity: identity, log: log}
}

// Require оборачивает хендлер: нет заголовка — 401, подпись не сошлась — 403.
func (a *Authenticator) Require(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		raw := r.Header.Get(InitDataHeader)
		if raw == "" {
			writeError(w, r, a.log, "auth", apperror.Unauthorized("Not authorized"))
			return
		}

		valid, claims := initdata.Validate(raw, a.botToken)
		if !valid {
			writeError(w, r, a.log, "auth", apperror.Forbidden("Invalid data"))
			return
		}

		tgUser, err := initdata.ParseUser(claims)
		if err != nil {
			writeError(w, r, a.log, "auth", apperror.Forbidden("Invalid data"))
			return
		}

		user, _, err := a.identity.ResolveOrCreate(r.Context(), tgUser.ID, tgUser.Username)
		if err != nil {
			writeError(w, r, a.log, "auth", err)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)), ps)
	}
}

// UserFromContext возвращает пользователя, положенного Require.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey{}).(*model.User)
	return u, ok
}
