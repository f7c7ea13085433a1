package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/baristaq/baristaq/internal/domain/order"
	"github.com/baristaq/baristaq/internal/services"
)

// QueueHandler serves the live queue, the completed-order history and
// the two mutation endpoints.
type QueueHandler struct {
	queue   *services.QueueService
	persist bool
	logger  *zap.Logger
}

// NewQueueHandler creates the handler. persist controls write-through
// to the store for received orders.
func NewQueueHandler(queue *services.QueueService, persist bool, logger *zap.Logger) *QueueHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueHandler{queue: queue, persist: persist, logger: logger}
}

// GetQueue returns the current queue snapshot.
func (h *QueueHandler) GetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.Snapshot())
}

// GetHistory returns completed items, most recent first, with the
// session counters.
func (h *QueueHandler) GetHistory(c *gin.Context) {
	counters := h.queue.Counters()
	items := h.queue.CompletedItems()
	if items == nil {
		items = []order.Order{}
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":         items,
		"ordersComplete": counters.OrdersComplete,
		"drinksComplete": counters.DrinksComplete,
	})
}

// Receive accepts a JSON order. Invalid submissions get a bare 422, the
// contract the ordering sites already rely on.
func (h *QueueHandler) Receive(c *gin.Context) {
	var o order.Order
	if err := c.ShouldBindJSON(&o); err != nil {
		h.logger.Warn("order rejected, malformed body", zap.Error(err))
		c.Status(http.StatusUnprocessableEntity)
		return
	}

	if err := h.queue.AddOrder(c.Request.Context(), &o, h.persist); err != nil {
		// A persistence failure happens after the order is live in the
		// queue. A 422 here would invite the ordering site to resubmit
		// and duplicate the order, so acknowledge with the snapshot;
		// the startup replay reconciles the store.
		if errors.Is(err, order.ErrPersistFailed) {
			h.logger.Error("order accepted but not persisted", zap.Int64("orderID", o.OrderID), zap.Error(err))
			c.JSON(http.StatusOK, h.queue.Snapshot())
			return
		}
		h.logger.Warn("order rejected", zap.Int64("orderID", o.OrderID), zap.Error(err))
		c.Status(http.StatusUnprocessableEntity)
		return
	}

	c.JSON(http.StatusOK, h.queue.Snapshot())
}

// Complete marks drinks done. The barista UI posts a form with either
// selectedDrinkIDs (a JSON array of identifiers) or selectedItemIndex
// (a queue position whose whole item is done).
func (h *QueueHandler) Complete(c *gin.Context) {
	ctx := c.Request.Context()

	if idx := c.PostForm("selectedItemIndex"); idx != "" {
		index, err := strconv.Atoi(idx)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "selectedItemIndex must be an integer"})
			return
		}
		if err := h.queue.CompleteItem(ctx, index); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.respondUpdated(c)
		return
	}

	raw := c.PostForm("selectedDrinkIDs")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selectedDrinkIDs or selectedItemIndex required"})
		return
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selectedDrinkIDs must be a JSON array of integers"})
		return
	}
	if err := h.queue.CompleteDrinks(ctx, ids); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.respondUpdated(c)
}

func (h *QueueHandler) respondUpdated(c *gin.Context) {
	snap := h.queue.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"updatedOrderList":   snap.Items,
		"updatedTotalOrders": snap.TotalOrders,
		"updatedTotalDrinks": snap.TotalDrinks,
	})
}
