/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Chat Business Logic Errors
const (
	// ErrUserNameEmpty indicates that a join request carried an empty user name.
	ErrUserNameEmpty = 2101

	// ErrUserNameBot indicates that a non-bot user tried to use a name ending in "bot".
	ErrUserNameBot = 2102

	// ErrUserNameTaken indicates that the requested name is already used by an active user.
	ErrUserNameTaken = 2103

	// ErrUserNameTooLong indicates that the requested name exceeds the maximum length.
	ErrUserNameTooLong = 2104

	// ErrUserNotFound indicates that the referenced user is not (or no longer) active.
	ErrUserNotFound = 2105

	// ErrReceiverNotFound indicates that a direct message or typing indication targets an unknown user.
	ErrReceiverNotFound = 2106

	// ErrInvalidStatus indicates that the requested presence status is not a known value.
	ErrInvalidStatus = 2107

	// ErrMessageEmpty indicates that the chat message text is empty.
	ErrMessageEmpty = 2201

	// ErrMessageContentTooLong indicates that the user's message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2202

	// ErrHistoryLimitInvalid indicates that a history page size is out of range.
	ErrHistoryLimitInvalid = 2301
)

// 3xxx: Session and Security Errors
const (
	// ErrUnauthorized indicates that the request carries no valid session token.
	ErrUnauthorized = 3001

	// ErrTokenInvalid indicates that a session token could not be decoded.
	ErrTokenInvalid = 3002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrHistoryUnavailable indicates the history store could not be read.
	ErrHistoryUnavailable = 5001
)
