package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error string `json:"error"`
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: msg})
}

func unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, errorBody{Error: msg})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, errorBody{Error: msg})
}

func unprocessable(c *gin.Context, msg string) {
	c.JSON(http.StatusUnprocessableEntity, errorBody{Error: msg})
}

func serverError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, errorBody{Error: msg})
}
