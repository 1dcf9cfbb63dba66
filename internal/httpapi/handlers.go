package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traffictacos/ticketing-core/internal/domain"
	"github.com/traffictacos/ticketing-core/internal/inventory"
	"github.com/traffictacos/ticketing-core/internal/orchestrator"
)

type createOrderRequest struct {
	CustomerID string `json:"customer_id" binding:"required"`
	EventID    string `json:"event_id" binding:"required"`
	EventName  string `json:"event_name" binding:"required"`
	TicketType string `json:"ticket_type" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
}

func createOrder(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		order, err := orch.CreateOrder(c.Request.Context(), orchestrator.CreateOrderInput{
			CustomerID: req.CustomerID,
			EventID:    req.EventID,
			EventName:  req.EventName,
			TicketType: req.TicketType,
			Quantity:   req.Quantity,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

type confirmOrderRequest struct {
	CustomerInfo domain.CustomerInfo `json:"customer_info"`
}

func confirmOrder(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req confirmOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order, err := orch.Confirm(c.Request.Context(), orchestrator.ConfirmInput{
			OrderID: c.Param("orderID"),
			Info:    req.CustomerInfo,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func markAsSold(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := orch.MarkAsSold(c.Request.Context(), c.Param("orderID"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

type markComplimentaryRequest struct {
	Reason string `json:"reason"`
}

func markAsComplimentary(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req markComplimentaryRequest
		_ = c.ShouldBindJSON(&req)
		order, err := orch.MarkAsComplimentary(c.Request.Context(), c.Param("orderID"), req.Reason)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func getInventory(inv *inventory.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := inv.Get(c.Request.Context(), c.Param("eventID"), c.Param("ticketType"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}
