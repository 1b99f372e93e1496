package handler

import (
	"net/http"

	"chatroom/internal/app/api"
	"chatroom/internal/pkg/req"
	"chatroom/internal/pkg/resp"
)

// HandleActiveUsers lists all active users sorted by name.
func HandleActiveUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := deps.currentUser(w, r); !ok {
			return
		}

		resp.RespondSuccess(w, r, api.UsersOutput{Users: deps.Manager.ActiveUsers()})
	}
}

// HandleUpdateStatus changes the presence status of the calling user.
func HandleUpdateStatus(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := deps.currentUser(w, r)
		if !ok {
			return
		}

		var input api.StatusInput
		if cerr := req.BindJSON(w, r, &input); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		if cerr := deps.Manager.UpdateStatus(u.ID, input.Status); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleUpdateDetails changes the display details of the calling user.
func HandleUpdateDetails(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := deps.currentUser(w, r)
		if !ok {
			return
		}

		var input api.DetailsInput
		if cerr := req.BindJSON(w, r, &input); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		if cerr := deps.Manager.UpdateDetails(u.ID, input.Details); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}
