/*
Package handler provides the HTTP handlers and routing setup for the chatroom server.

This file contains the session handlers: join, leave and token renewal.
*/
package handler

import (
	"net/http"

	"chatroom/internal/app/api"
	"chatroom/internal/app/event"
	"chatroom/internal/pkg/req"
	"chatroom/internal/pkg/resp"
)

// HandleJoin adds a user to the chatroom and returns their session token.
func HandleJoin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input api.JoinInput
		if cerr := req.BindJSON(w, r, &input); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		u, token, cerr := deps.Manager.Join(input.User, input.Flags)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		resp.RespondCreated(w, r, api.TokenOutput{Token: token, User: &u})
	}
}

// HandleLeave removes the calling user from the chatroom.
func HandleLeave(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := deps.currentUser(w, r)
		if !ok {
			return
		}

		deps.Manager.Leave(u.ID, event.LeaveUserAction)
		resp.RespondSuccess(w, r, nil)
	}
}

// HandleRenew issues a fresh token for the calling user.
func HandleRenew(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := deps.currentUser(w, r)
		if !ok {
			return
		}

		token, cerr := deps.Manager.Renew(u.ID)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		resp.RespondSuccess(w, r, api.TokenOutput{Token: token})
	}
}
