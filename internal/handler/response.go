package handler

import (
	"errors"
	"net/http"

	"proxy-panel/internal/core"
	"proxy-panel/internal/util"

	"github.com/gin-gonic/gin"
)

// fromError maps a domain error to the right envelope. Validation errors
// additionally carry the list of violated rules.
func fromError(c *gin.Context, err error) {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":       util.CodeInvalidParam,
			"message":    verr.Error(),
			"violations": verr.Violations,
		})
		return
	}
	var nferr *core.NotFoundError
	if errors.As(err, &nferr) {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, nferr.Error())
		return
	}
	var cerr *core.ConflictError
	if errors.As(err, &cerr) {
		util.Error(c, http.StatusConflict, util.CodeConflict, cerr.Error())
		return
	}
	util.Error(c, http.StatusInternalServerError, util.CodeServerErr, err.Error())
}
