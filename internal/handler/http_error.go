package handler

import (
	"net/http"

	"github.com/Dat3K/viet-anh-supply-be/pkg/apperr"
	"github.com/Dat3K/viet-anh-supply-be/pkg/response"

	"github.com/gin-gonic/gin"
)

// abortWithError maps a service error onto an HTTP status and writes the
// standard error envelope.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindUnauthorized:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindBusiness:
		status = http.StatusConflict
	case apperr.KindTransient:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response.Error(status, err.Error()))
}
