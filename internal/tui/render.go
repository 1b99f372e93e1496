package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"chatroom/internal/app/event"
	"chatroom/internal/app/user"
	"chatroom/internal/app/view"
)

const timeLayout = "15:04"

// renderEvent renders one log entry. Received chats without an avatar are
// rendered as continuation lines of the run above them.
func renderEvent(e view.Event) string {
	ts := timeStyle.Render(e.Time.Format(timeLayout))

	switch e.Kind {
	case view.KindUserJoin:
		return fmt.Sprintf("%s %s", ts, noticeStyle.Render(e.User.Name+" joined"))

	case view.KindUserLeave:
		text := e.User.Name + " left"
		if e.Reason == event.LeaveDisconnected {
			text += " (disconnected)"
		}
		return fmt.Sprintf("%s %s", ts, noticeStyle.Render(text))

	case view.KindUserUpdate:
		text := e.User.Name + " updated their profile"
		if e.Before.Name != e.User.Name {
			text = e.Before.Name + " is now " + e.User.Name
		}
		return fmt.Sprintf("%s %s", ts, noticeStyle.Render(text))

	case view.KindReceivedChat:
		if !e.ShowAvatar {
			return "      " + e.Text
		}
		return fmt.Sprintf("%s %s\n      %s", ts, nameStyle(e.User.Color1).Render(e.User.Name), e.Text)

	case view.KindSentChat:
		return fmt.Sprintf("%s %s %s", ts, selfStyle.Render("you:"), e.Text)
	}

	return ""
}

func renderEvents(events []view.Event) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		if line := renderEvent(e); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// typingLine describes who is typing, or returns "" when nobody is.
func typingLine(typing map[uuid.UUID]user.Details) string {
	if len(typing) == 0 {
		return ""
	}

	names := make([]string, 0, len(typing))
	for _, d := range typing {
		names = append(names, d.Name)
	}
	slices.Sort(names)

	switch len(names) {
	case 1:
		return names[0] + " is typing..."
	case 2:
		return names[0] + " and " + names[1] + " are typing..."
	default:
		return fmt.Sprintf("%d people are typing...", len(names))
	}
}

var statusMarks = map[user.Status]string{
	user.StatusDefault: "●",
	user.StatusBusy:    "◐",
	user.StatusAway:    "○",
}

// renderUsers renders the sidebar list; self is marked.
func renderUsers(users []user.User, self uuid.UUID) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Online (%d)", len(users))))

	for _, u := range users {
		b.WriteString("\n")
		b.WriteString(statusMarks[u.Status])
		b.WriteString(" ")
		b.WriteString(nameStyle(u.Details.Color1).Render(u.Details.Name))
		if u.Flags.Has(user.FlagBot) {
			b.WriteString(noticeStyle.Render(" bot"))
		}
		if u.ID == self {
			b.WriteString(noticeStyle.Render(" (you)"))
		}
		if u.Typing {
			b.WriteString(typingStyle.Render(" …"))
		}
	}
	return b.String()
}

// conversationLabel names a conversation tab.
func conversationLabel(key view.Key, lookup func(uuid.UUID) (user.User, bool)) string {
	if key == view.GlobalKey {
		return "#global"
	}
	if u, ok := lookup(key); ok {
		return "@" + u.Details.Name
	}
	return "@" + key.String()[:8]
}
