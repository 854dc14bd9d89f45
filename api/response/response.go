package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"contract-engine/types"
)

type Response struct {
	Code int         `json:"code"` // 0: success, -1: failure
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{
		Code: -1,
		Msg:  msg,
		Data: nil,
	})
}

// Error maps the engine's error taxonomy onto HTTP statuses.
func Error(c *gin.Context, err error) {
	var (
		validationErr *types.ValidationError
		authErr       *types.AuthorizationError
		conflictErr   *types.ConflictError
		stateErr      *types.InvalidStateError
		seqErr        *types.SequenceGapError
		notFoundErr   *types.NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		Fail(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &authErr):
		Fail(c, http.StatusForbidden, err.Error())
	case errors.As(err, &notFoundErr):
		Fail(c, http.StatusNotFound, err.Error())
	case errors.As(err, &conflictErr):
		Fail(c, http.StatusConflict, err.Error())
	case errors.As(err, &stateErr):
		Fail(c, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &seqErr):
		// Internal-consistency fault: needs operator attention.
		Fail(c, http.StatusInternalServerError, err.Error())
	default:
		Fail(c, http.StatusInternalServerError, err.Error())
	}
}
