// Package httpapi is the thin gin-gonic HTTP adapter over the order
// lifecycle orchestrator: decode request, call the orchestrator,
// encode response/error. No business logic lives here — every branch
// below exists only to move bytes across the wire (spec.md §1 scopes
// the RPC/HTTP surface out of the core's responsibilities).
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/traffictacos/ticketing-core/internal/domain"
	"github.com/traffictacos/ticketing-core/internal/inventory"
	"github.com/traffictacos/ticketing-core/internal/orchestrator"
)

// NewRouter wires every route the lifecycle engine exposes.
func NewRouter(orch *orchestrator.Orchestrator, inv *inventory.Engine, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	orders := r.Group("/orders")
	orders.POST("", createOrder(orch))
	orders.POST("/:orderID/confirm", confirmOrder(orch))
	orders.POST("/:orderID/mark-sold", markAsSold(orch))
	orders.POST("/:orderID/mark-complimentary", markAsComplimentary(orch))

	r.GET("/inventory/:eventID/:ticketType", getInventory(inv))

	return r
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// writeError maps a domain.Error's Kind to an HTTP status code. An
// error that did not originate in the domain layer is classified by
// domain.KindOf as Infrastructure and so is answered with 503.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindDomainRule:
		status = http.StatusConflict
	case domain.KindConcurrency:
		status = http.StatusConflict
	case domain.KindInfrastructure:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
