package router

import "github.com/gin-gonic/gin"

// Module is one routable feature area (users, channels, debug). Each module
// mounts its own routes and middleware onto the shared /api group.
type Module interface {
	Register(rg *gin.RouterGroup)
}
