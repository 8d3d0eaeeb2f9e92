package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Healthz(context *gin.Context) {
	context.JSON(http.StatusOK, gin.H{"status": "ok"})
}
