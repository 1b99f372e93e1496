package handler

import (
	"net/http"

	"chatroom/internal/app/chat"
	"chatroom/internal/app/user"
	"chatroom/internal/configs"
	"chatroom/internal/pkg/auth/jwt"
	"chatroom/internal/pkg/errs"
	"chatroom/internal/pkg/resp"
)

// AppDeps carries the collaborators shared by all handlers.
type AppDeps struct {
	Manager *chat.Manager
	Config  *configs.AppConfig
}

// currentUser resolves the active user behind the request's token. A valid token of a
// user who has since left is rejected like a missing one. On failure the error response
// has already been written.
func (deps *AppDeps) currentUser(w http.ResponseWriter, r *http.Request) (user.User, bool) {
	claims := jwt.ClaimsFromContext(r)
	if claims == nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return user.User{}, false
	}

	u, ok := deps.Manager.User(claims.UserID)
	if !ok {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return user.User{}, false
	}

	return u, true
}

// userKey keys per-user rate limits.
func userKey(r *http.Request) string {
	if claims := jwt.ClaimsFromContext(r); claims != nil {
		return claims.UserID.String()
	}
	return ""
}
