package cluster

import (
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the internal API peers query for which client a
// sub-domain is bound to on this instance. It must only be exposed on the
// fleet-internal network.
func NewRouter(local HostAnswerer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))

	r.GET(hostsPathPrefix+":sub_domain", func(c *gin.Context) {
		subDomain := c.Param("sub_domain")
		owner, ok := local.OwnerOf(subDomain)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "host not served"})
			return
		}
		c.JSON(http.StatusOK, HostResponse{
			SubDomain: subDomain,
			ClientID:  owner.String(),
		})
	})

	return r
}
