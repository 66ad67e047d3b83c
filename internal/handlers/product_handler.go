package handlers

import (
	"fmt"

	"market/internal/middleware"
	"market/internal/models"
	"market/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service  *services.ProductService
	carts    *services.CartService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewProductHandler creates a new ProductHandler. carts backs the
// add-to-cart shortcut on a product.
func NewProductHandler(service *services.ProductService, carts *services.CartService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		carts:    carts,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Post("/bulk-markup", h.HandleBulkMarkup)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
	productRoutes.Post("/:id/cart", h.HandleAddToCart)
	productRoutes.Patch("/:id/price", h.HandleUpdatePrice)
	productRoutes.Post("/:id/reset-stock", h.HandleResetStock)
}

// HandleGetProducts lists products. Supported query parameters are name,
// category, min_price and max_price.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	filter := models.ProductFilter{
		Name:     c.Query("name"),
		Category: c.Query("category"),
	}
	for param, dst := range map[string]**decimal.Decimal{
		"min_price": &filter.MinPrice,
		"max_price": &filter.MaxPrice,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": fmt.Sprintf("Invalid %s", param),
				"error":   err.Error(),
			})
		}
		*dst = &d
	}

	products, err := h.service.GetAllProducts(c.UserContext(), middleware.ActorFrom(c), filter)
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve products", err)
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve product", err)
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequest(c, err)
	}
	if done, err := validateBody(c, h.validate, product); done {
		return err
	}

	if err := h.service.CreateProduct(c.UserContext(), middleware.ActorFrom(c), &product); err != nil {
		return respondError(c, h.logger, "Could not create product", err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct applies the request body on top of the stored product,
// so fields left out of the body keep their values.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	productID := c.Params("id")
	actor := middleware.ActorFrom(c)

	product, err := h.service.GetProductByID(c.UserContext(), actor, productID)
	if err != nil {
		return respondError(c, h.logger, "Could not update product", err)
	}
	if err := c.BodyParser(product); err != nil {
		return badRequest(c, err)
	}
	product.ID = productID
	if done, err := validateBody(c, h.validate, product); done {
		return err
	}

	if err := h.service.UpdateProduct(c.UserContext(), actor, product); err != nil {
		return respondError(c, h.logger, "Could not update product", err)
	}
	return c.JSON(product)
}

// HandleDeleteProduct deletes a product by its ID.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	productID := c.Params("id")
	if err := h.service.DeleteProduct(c.UserContext(), middleware.ActorFrom(c), productID); err != nil {
		return respondError(c, h.logger, "Could not delete product", err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Product %s deleted successfully", productID),
	})
}

// HandleAddToCart puts the product in the caller's cart. The quantity
// defaults to one.
func (h *ProductHandler) HandleAddToCart(c *fiber.Ctx) error {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
	}

	cart, err := h.carts.AddProduct(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), req.Quantity)
	if err != nil {
		return respondError(c, h.logger, "Could not add product to cart", err)
	}
	return c.Status(fiber.StatusCreated).JSON(cart)
}

func (h *ProductHandler) HandleUpdatePrice(c *fiber.Ctx) error {
	var req struct {
		Price *decimal.Decimal `json:"price" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if done, err := validateBody(c, h.validate, req); done {
		return err
	}

	product, err := h.service.UpdatePrice(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), *req.Price)
	if err != nil {
		return respondError(c, h.logger, "Could not update price", err)
	}
	return c.JSON(product)
}

// HandleResetStock zeroes the sold counter and reports the new availability.
func (h *ProductHandler) HandleResetStock(c *fiber.Ctx) error {
	productID := c.Params("id")
	availability, err := h.service.ResetSold(c.UserContext(), middleware.ActorFrom(c), productID)
	if err != nil {
		return respondError(c, h.logger, "Could not reset stock", err)
	}
	return c.JSON(fiber.Map{
		"product_id":   productID,
		"availability": availability,
	})
}

func (h *ProductHandler) HandleBulkMarkup(c *fiber.Ctx) error {
	var req struct {
		Percentage *decimal.Decimal `json:"percentage" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if done, err := validateBody(c, h.validate, req); done {
		return err
	}

	updated, err := h.service.BulkMarkup(c.UserContext(), middleware.ActorFrom(c), *req.Percentage)
	if err != nil {
		return respondError(c, h.logger, "Could not apply markup", err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Markup of %s%% applied", req.Percentage.String()),
		"updated": updated,
	})
}
