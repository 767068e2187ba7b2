// Package ginroute mounts notification intake on a gin engine.
package ginroute

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-gateways/inbound"
)

// DefaultPath is the route Mount registers, with the provider id as a path
// parameter.
const DefaultPath = "/notifications/:" + inbound.ProviderPathValue

// Handler serves notifications through the dispatcher. The provider id is
// read from the :provider route parameter.
func Handler(dispatcher *inbound.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request
		if provider := strings.TrimSpace(c.Param(inbound.ProviderPathValue)); provider != "" {
			req.SetPathValue(inbound.ProviderPathValue, provider)
		}
		dispatcher.ServeHTTP(c.Writer, req)
		c.Abort()
	}
}

// Mount registers Handler for POST on path, DefaultPath when empty.
func Mount(routes gin.IRoutes, path string, dispatcher *inbound.Dispatcher) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	routes.POST(path, Handler(dispatcher))
}
