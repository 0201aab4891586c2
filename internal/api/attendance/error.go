package attendance

import (
	"AttendanceBackend/pkg/response"
	"net/http"
)

var (
	ErrInvalidClassID      = response.NewError(http.StatusBadRequest, "invalid class id")
	ErrClassNotFound       = response.NewError(http.StatusNotFound, "class not found")
	ErrNotClassOwner       = response.NewError(http.StatusForbidden, "not authorized for this class")
	ErrStudentNotFound     = response.NewError(http.StatusNotFound, "student not found")
	ErrNoImages            = response.NewError(http.StatusBadRequest, "at least one image is required")
	ErrNoFaceFound         = response.NewError(http.StatusBadRequest, "no faces detected in any of the images")
	ErrInvalidFileType     = response.NewError(http.StatusBadRequest, "invalid file type")
	ErrFileTooLarge        = response.NewError(http.StatusBadRequest, "file too large")
	ErrFailedToUploadFile  = response.NewError(http.StatusInternalServerError, "failed to upload file")
	ErrFaceModelFailure    = response.NewError(http.StatusBadGateway, "face model unavailable")
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
)
