package handlers

import (
	"fmt"

	"market/internal/middleware"
	"market/internal/models"
	"market/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/mine", h.HandleGetMyOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Put("/:id", h.HandleUpdateOrder)
	orderRoutes.Patch("/:id/status", h.HandleUpdateOrderStatus)
	orderRoutes.Post("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Post("/:id/recalculate", h.HandleRecalculateTotal)
	orderRoutes.Delete("/:id/details/:detailId", h.HandleRemoveDetail)
	orderRoutes.Post("/:id/force-delete", h.HandleForceDelete)
}

// HandleGetOrders lists every order for staff and the caller's own orders otherwise.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.List(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListMine(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.Get(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve order", err)
	}
	return c.JSON(order)
}

// HandleCreateOrder creates an order directly from a list of items.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var input services.CreateOrderInput
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c, err)
	}
	if done, err := validateBody(c, h.validate, input); done {
		return err
	}

	order, err := h.service.Create(c.UserContext(), middleware.ActorFrom(c), input)
	if err != nil {
		return respondError(c, h.logger, "Could not create order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleUpdateOrder edits details and the shipping address, then brings the
// total back in line with the details.
func (h *OrderHandler) HandleUpdateOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var input services.UpdateOrderInput
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c, err)
	}
	if done, err := validateBody(c, h.validate, input); done {
		return err
	}

	actor := middleware.ActorFrom(c)
	if _, err := h.service.UpdateDetails(c.UserContext(), actor, orderID, input); err != nil {
		return respondError(c, h.logger, "Could not update order", err)
	}
	order, err := h.service.RecalculateTotal(c.UserContext(), actor, orderID)
	if err != nil {
		return respondError(c, h.logger, "Could not update order", err)
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var updateData struct {
		Status models.OrderStatus `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&updateData); err != nil {
		return badRequest(c, err)
	}
	if done, err := validateBody(c, h.validate, updateData); done {
		return err
	}

	order, err := h.service.UpdateStatus(c.UserContext(), middleware.ActorFrom(c), orderID, updateData.Status)
	if err != nil {
		return respondError(c, h.logger, "Could not update order status", err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s status updated successfully to %s", orderID, order.Status),
		"order":   order,
	})
}

func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	order, err := h.service.Cancel(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not cancel order", err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleRecalculateTotal(c *fiber.Ctx) error {
	order, err := h.service.RecalculateTotal(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not recalculate order total", err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleRemoveDetail(c *fiber.Ctx) error {
	order, err := h.service.RemoveDetail(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), c.Params("detailId"))
	if err != nil {
		return respondError(c, h.logger, "Could not remove order detail", err)
	}
	return c.JSON(order)
}

// HandleForceDelete removes an order with everything attached to it. Staff only.
func (h *OrderHandler) HandleForceDelete(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if err := h.service.ForceDelete(c.UserContext(), middleware.ActorFrom(c), orderID); err != nil {
		return respondError(c, h.logger, "Could not delete order", err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s deleted successfully", orderID),
	})
}
