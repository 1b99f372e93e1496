/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Chat Business Logic Errors
	ErrUserNameEmpty:         {Code: ErrUserNameEmpty, Message: "User name should not be empty.", Status: http.StatusBadRequest},
	ErrUserNameBot:           {Code: ErrUserNameBot, Message: "Only bots may use a 'bot' suffix.", Status: http.StatusBadRequest},
	ErrUserNameTaken:         {Code: ErrUserNameTaken, Message: "User name is already taken.", Status: http.StatusConflict},
	ErrUserNameTooLong:       {Code: ErrUserNameTooLong, Message: "User name is longer than %d characters.", Status: http.StatusBadRequest},
	ErrUserNotFound:          {Code: ErrUserNotFound, Message: "User is not active.", Status: http.StatusNotFound},
	ErrReceiverNotFound:      {Code: ErrReceiverNotFound, Message: "Receiver is not active.", Status: http.StatusNotFound},
	ErrInvalidStatus:         {Code: ErrInvalidStatus, Message: "Unknown user status.", Status: http.StatusBadRequest},
	ErrMessageEmpty:          {Code: ErrMessageEmpty, Message: "Message is empty.", Status: http.StatusBadRequest},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long.", Status: http.StatusBadRequest},
	ErrHistoryLimitInvalid:   {Code: ErrHistoryLimitInvalid, Message: "History limit must be between 1 and %d.", Status: http.StatusBadRequest},

	// 3xxx: Session and Security Errors
	ErrUnauthorized: {Code: ErrUnauthorized, Message: "Please join to continue.", Status: http.StatusUnauthorized},
	ErrTokenInvalid: {Code: ErrTokenInvalid, Message: "Session token is invalid.", Status: http.StatusUnauthorized},

	// 5xxx: Internal System Errors
	ErrUnknown:            {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrHistoryUnavailable: {Code: ErrHistoryUnavailable, Message: "Chat history is unavailable.", Status: http.StatusServiceUnavailable},
}
