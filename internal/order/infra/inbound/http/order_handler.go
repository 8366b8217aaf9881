package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/orderbus/internal/order/application"
	"github.com/davicafu/orderbus/internal/order/domain"
	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
	"github.com/davicafu/orderbus/pkg/utils"
)

const (
	HeaderPublishAttempts = "X-Publish-Attempts"
	HeaderAckToken        = "X-Ack-Token"
)

// OrderHandler encapsula los endpoints HTTP relacionados con Order
type OrderHandler struct {
	service *application.OrderService
	log     *zap.Logger
}

// NewOrderHandler crea un nuevo OrderHandler
func NewOrderHandler(service *application.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{service: service, log: log}
}

// createOrderRequest: Amount es puntero para distinguir "ausente" de 0.
type createOrderRequest struct {
	Identifier string   `json:"identifier" binding:"required"`
	Amount     *float64 `json:"amount" binding:"required"`
}

// ---------------- Handlers ----------------

// CreateOrder endpoint POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	accepted, err := h.service.CreateOrder(c.Request.Context(), application.CreateOrderCommand{
		Identifier: req.Identifier,
		Amount:     *req.Amount,
	})
	if err != nil {
		var vErr *sharedDomain.ValidationError
		if errors.As(err, &vErr) {
			utils.SendFieldError(c, vErr.Field, vErr.Error())
			return
		}
		h.log.Error("❌ Error publicando pedido",
			zap.String("identifier", req.Identifier),
			zap.Error(err),
		)
		utils.SendInternalServerError(c, "order could not be published")
		return
	}

	c.Header(HeaderPublishAttempts, strconv.Itoa(accepted.Attempts))
	if accepted.AckToken != "" {
		c.Header(HeaderAckToken, accepted.AckToken)
	}
	c.JSON(http.StatusCreated, accepted)
}

// GetOrder endpoint GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		utils.SendBadRequest(c, "invalid order id")
		return
	}

	view, err := h.service.GetOrder(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			utils.SendNotFound(c, "order not found")
			return
		}
		utils.SendInternalServerError(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, view)
}
