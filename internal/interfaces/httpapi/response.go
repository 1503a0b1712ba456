package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"channelwatch/internal/domain/repository"
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Code: 0, Message: "ok", Data: data})
}

func fail(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, APIResponse{Code: httpStatus, Message: message})
}

// failWith maps domain errors onto HTTP statuses.
func failWith(c *gin.Context, err error) {
	var resolution *repository.ResolutionError
	var storage *repository.StorageError

	switch {
	case errors.Is(err, repository.ErrChannelExists):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrChannelNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrInvalidIdentifier), errors.As(err, &resolution):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrMissingCredential):
		fail(c, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, repository.ErrLockTimeout), errors.As(err, &storage):
		fail(c, http.StatusServiceUnavailable, err.Error())
	default:
		fail(c, http.StatusInternalServerError, "internal server error")
	}
}
