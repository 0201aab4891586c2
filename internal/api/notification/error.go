package notification

import (
	"AttendanceBackend/pkg/response"
	"net/http"
)

var (
	ErrRecipientNotFound   = response.NewError(http.StatusNotFound, "recipient not found")
	ErrMessageToSelf       = response.NewError(http.StatusBadRequest, "cannot send a message to yourself")
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
)
