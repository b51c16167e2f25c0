package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/api/dto"
	"github.com/kicksideshop/orderapi/pkg/errors"
)

// GenericErrorMessage is returned for every failure that is not the caller's fault.
const GenericErrorMessage = "something went wrong, please try again"

func respond(c *gin.Context, code int, message string, data any) {
	c.JSON(code, dto.Envelope[any]{Status: code, Message: message, Data: data})
}

func respondFields(c *gin.Context, code int, message string, fields map[string]string) {
	c.JSON(code, dto.Envelope[any]{Status: code, Message: message, Fields: fields})
}

// respondError maps typed errors to status codes. Anything untyped is logged
// and answered with GenericErrorMessage.
func respondError(c *gin.Context, logger *zap.Logger, action string, err error) {
	var (
		validation *errors.ErrValidation
		transition *errors.ErrInvalidStateTransition
		unauth     *errors.ErrUnauthorized
		forbidden  *errors.ErrForbidden
		notFound   *errors.ErrNotFound
		conflict   *errors.ErrConflict
	)
	switch {
	case stderrors.As(err, &validation):
		respondFields(c, http.StatusUnprocessableEntity, validation.Error(), validation.Fields)
	case stderrors.As(err, &transition):
		respond(c, http.StatusBadRequest, transition.Error(), nil)
	case stderrors.As(err, &unauth):
		respond(c, http.StatusUnauthorized, unauth.Error(), nil)
	case stderrors.As(err, &forbidden):
		respond(c, http.StatusForbidden, forbidden.Error(), nil)
	case stderrors.As(err, &notFound):
		respond(c, http.StatusNotFound, notFound.Resource+" not found", nil)
	case stderrors.As(err, &conflict):
		respond(c, http.StatusConflict, conflict.Error(), nil)
	default:
		logger.Error("Failed to "+action, zap.Error(err))
		respond(c, http.StatusInternalServerError, GenericErrorMessage, nil)
	}
}
