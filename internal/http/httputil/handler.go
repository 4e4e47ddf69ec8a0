package httputil

import "github.com/gin-gonic/gin"

// IHttpHandler is a group of routes mounted under Root in the public,
// private and admin trees of the API.
type IHttpHandler interface {
	Root() string
	SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup)
}
