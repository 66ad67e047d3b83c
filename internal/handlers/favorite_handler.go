package handlers

import (
	"market/internal/middleware"
	"market/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// FavoriteHandler handles HTTP requests for bookmarked products.
type FavoriteHandler struct {
	service  *services.FavoriteService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewFavoriteHandler(service *services.FavoriteService, logger *zap.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the favorite routes with the Fiber app.
func (h *FavoriteHandler) RegisterRoutes(router fiber.Router) {
	favoriteRoutes := router.Group("/favorites")
	favoriteRoutes.Get("/", h.HandleList)
	favoriteRoutes.Post("/", h.HandleAdd)
	favoriteRoutes.Post("/bulk", h.HandleMerge)
	favoriteRoutes.Delete("/:productId", h.HandleRemove)
}

// HandleList lists the caller's favorites. Staff may pass user_id to read
// another user's list.
func (h *FavoriteHandler) HandleList(c *fiber.Ctx) error {
	favorites, err := h.service.List(c.UserContext(), middleware.ActorFrom(c), c.Query("user_id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve favorites", err)
	}
	return c.JSON(favorites)
}

// HandleAdd answers 201 for a new bookmark and 200 when it already existed.
func (h *FavoriteHandler) HandleAdd(c *fiber.Ctx) error {
	var req struct {
		ProductID string `json:"product_id" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if done, err := validateBody(c, h.validate, req); done {
		return err
	}

	created, err := h.service.Add(c.UserContext(), middleware.ActorFrom(c), req.ProductID)
	if err != nil {
		return respondError(c, h.logger, "Could not add favorite", err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"product_id": req.ProductID,
		"created":    created,
	})
}

func (h *FavoriteHandler) HandleMerge(c *fiber.Ctx) error {
	var req struct {
		ProductIDs []string `json:"product_ids" validate:"required,dive,required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if done, err := validateBody(c, h.validate, req); done {
		return err
	}

	added, err := h.service.Merge(c.UserContext(), middleware.ActorFrom(c), req.ProductIDs)
	if err != nil {
		return respondError(c, h.logger, "Could not merge favorites", err)
	}
	return c.JSON(fiber.Map{"added": added})
}

func (h *FavoriteHandler) HandleRemove(c *fiber.Ctx) error {
	if err := h.service.Remove(c.UserContext(), middleware.ActorFrom(c), c.Params("productId")); err != nil {
		return respondError(c, h.logger, "Could not remove favorite", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
