package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/evergreensystems/evergreen-ai/app/core"
)

type HttpSrv struct {
	Core   *core.Core
	Engine *gin.Engine
}
