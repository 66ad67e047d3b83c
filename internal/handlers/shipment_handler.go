package handlers

import (
	"market/internal/middleware"
	"market/internal/models"
	"market/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ShipmentHandler handles HTTP requests for shipments.
type ShipmentHandler struct {
	service  *services.ShipmentService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewShipmentHandler(service *services.ShipmentService, logger *zap.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the shipment routes with the Fiber app.
func (h *ShipmentHandler) RegisterRoutes(router fiber.Router) {
	shipmentRoutes := router.Group("/shipments")
	shipmentRoutes.Get("/", h.HandleGetShipments)
	shipmentRoutes.Post("/", h.HandleCreateShipment)
	shipmentRoutes.Get("/:id/tracking", h.HandleTracking)
	shipmentRoutes.Post("/:id/status", h.HandleUpdateStatus)
}

func (h *ShipmentHandler) HandleGetShipments(c *fiber.Ctx) error {
	shipments, err := h.service.List(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve shipments", err)
	}
	return c.JSON(shipments)
}

func (h *ShipmentHandler) HandleCreateShipment(c *fiber.Ctx) error {
	var input services.CreateShipmentInput
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c, err)
	}
	if done, err := validateBody(c, h.validate, input); done {
		return err
	}

	shipment, err := h.service.Create(c.UserContext(), middleware.ActorFrom(c), input)
	if err != nil {
		return respondError(c, h.logger, "Could not create shipment", err)
	}
	return c.Status(fiber.StatusCreated).JSON(shipment)
}

// HandleTracking returns the customer-facing tracking view of a shipment.
func (h *ShipmentHandler) HandleTracking(c *fiber.Ctx) error {
	tracking, err := h.service.Tracking(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve tracking", err)
	}
	return c.JSON(tracking)
}

func (h *ShipmentHandler) HandleUpdateStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.ShipmentStatus `json:"status" validate:"required,oneof=pending preparing in_transit delivered"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if done, err := validateBody(c, h.validate, req); done {
		return err
	}

	shipment, err := h.service.UpdateStatus(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), req.Status)
	if err != nil {
		return respondError(c, h.logger, "Could not update shipment status", err)
	}
	return c.JSON(shipment)
}
