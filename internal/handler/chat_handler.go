package handler

import (
	"net/http"

	"chatroom/internal/app/api"
	"chatroom/internal/app/event"
	"chatroom/internal/pkg/req"
	"chatroom/internal/pkg/resp"
)

// HandleSendChat publishes a chat message from the calling user.
func HandleSendChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := deps.currentUser(w, r)
		if !ok {
			return
		}

		var input api.SendChatInput
		if cerr := req.BindJSON(w, r, &input); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		chatID, cerr := deps.Manager.SendChat(u.ID, input.ReceiverID, input.Text)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		resp.RespondSuccess(w, r, api.SendChatOutput{ChatID: chatID})
	}
}

// HandleIndicateTyping records that the calling user started or stopped typing.
func HandleIndicateTyping(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := deps.currentUser(w, r)
		if !ok {
			return
		}

		var input api.TypingInput
		if cerr := req.BindJSON(w, r, &input); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		if cerr := deps.Manager.IndicateTyping(u.ID, input.ReceiverID, input.Typing); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandlePreviousEvents returns a page of stored events, newest first.
func HandlePreviousEvents(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := deps.currentUser(w, r); !ok {
			return
		}

		limit, cerr := req.QueryInt(r, "limit", deps.Config.HistorySize)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		list, cerr := deps.Manager.PreviousEvents(r.Context(), limit)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		if list == nil {
			list = []event.Envelope{}
		}
		resp.RespondSuccess(w, r, event.History{History: list})
	}
}
