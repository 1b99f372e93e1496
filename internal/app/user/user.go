/*
Package user defines chat participants: their identity, display details, flags and
presence status, plus the validation rules applied when a user joins.
*/
package user

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"chatroom/internal/pkg/errs"
	"chatroom/internal/pkg/randx"
)

// MaxNameLength is the maximum number of characters in a user name.
const MaxNameLength = 32

// ID is the opaque unique identifier the server assigns to a user on join.
type ID = uuid.UUID

// Flag is a set of boolean user properties.
type Flag uint8

const (
	FlagNone Flag = 0
	FlagBot  Flag = 1 << 0
)

// Has reports whether all bits of flag are set.
func (f Flag) Has(flag Flag) bool { return flag != 0 && f&flag == flag }

// Status is the presence status of a user.
type Status uint8

const (
	StatusDefault Status = iota
	StatusBusy
	StatusAway
)

var statusNames = [...]string{"default", "busy", "away"}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return int(s) < len(statusNames) }

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
	return statusNames[s]
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("user: invalid status %d", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if string(text) == name {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("user: unknown status %q", text)
}

// Details are the display properties of a user.
type Details struct {
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Color1   string `json:"color1"` // primary color, "#rrggbb"
	Color2   string `json:"color2"` // secondary color, "#rrggbb"
}

// User is an active participant.
type User struct {
	ID      ID      `json:"id"`
	Details Details `json:"details"`
	Flags   Flag    `json:"flags"`
	Status  Status  `json:"status"`

	// Typing is local view state of a client and never leaves the process.
	Typing bool `json:"-"`
}

// IdentifierString returns "<id> (<name>)", the form used in log lines.
func (u User) IdentifierString() string {
	return u.ID.String() + " (" + u.Details.Name + ")"
}

// Normalize validates the details of a joining user and fills in defaults:
// initials derived from the name and random colors.
func Normalize(details Details, flags Flag) (Details, *errs.CustomError) {
	details.Name = strings.TrimSpace(details.Name)

	switch {
	case details.Name == "":
		return details, errs.NewError(errs.ErrUserNameEmpty)
	case utf8.RuneCountInString(details.Name) > MaxNameLength:
		return details, errs.NewError(errs.ErrUserNameTooLong, MaxNameLength)
	case strings.HasSuffix(strings.ToLower(details.Name), "bot") && !flags.Has(FlagBot):
		return details, errs.NewError(errs.ErrUserNameBot)
	}

	if details.Initials == "" {
		details.Initials = InitialsFromName(details.Name)
	}

	if details.Color1 == "" {
		c1, c2, err := randx.Colors()
		if err != nil {
			return details, errs.NewError(errs.ErrUnknown, err)
		}
		details.Color1, details.Color2 = c1, c2
	} else if details.Color2 == "" {
		details.Color2 = randx.SecondaryColor
	}

	return details, nil
}

// InitialsFromName returns the upper-cased first letters of the first two words of name.
func InitialsFromName(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return ""
	}

	initials := []rune{firstRune(parts[0])}
	if len(parts) >= 2 {
		initials = append(initials, firstRune(parts[1]))
	}

	return strings.ToUpper(string(initials))
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.ToUpper(r)
}
