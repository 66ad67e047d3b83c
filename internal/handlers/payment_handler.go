package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"market/internal/middleware"
	"market/internal/models"
	"market/internal/policy"
	"market/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// proofField is the multipart field carrying an uploaded proof of payment.
const proofField = "proof"

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	service   *services.PaymentService
	uploadDir string
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler. Uploaded proofs are stored
// under uploadDir.
func NewPaymentHandler(service *services.PaymentService, uploadDir string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:   service,
		uploadDir: uploadDir,
		validate:  validator.New(),
		logger:    logger,
	}
}

// RegisterRoutes registers the payment routes with the Fiber app.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	paymentRoutes := router.Group("/payments")
	paymentRoutes.Get("/", h.HandleGetPayments)
	paymentRoutes.Post("/", h.HandleCreatePayment)
	paymentRoutes.Get("/:id", h.HandleGetPaymentByID)
	paymentRoutes.Post("/:id/proof", h.HandleSubmitProof)
	paymentRoutes.Post("/:id/review", h.transitionHandler("review", h.service.Review))
	paymentRoutes.Post("/:id/approve", h.transitionHandler("approve", h.service.Approve))
	paymentRoutes.Post("/:id/reject", h.transitionHandler("reject", h.service.Reject))
	paymentRoutes.Post("/:id/complete", h.transitionHandler("complete", h.service.Complete))
	paymentRoutes.Post("/:id/fail", h.transitionHandler("fail", h.service.Fail))
}

// HandleGetPayments lists payments, optionally filtered by status and order_id.
func (h *PaymentHandler) HandleGetPayments(c *fiber.Ctx) error {
	filter := models.PaymentFilter{
		Status:  models.PaymentStatus(c.Query("status")),
		OrderID: c.Query("order_id"),
	}
	payments, err := h.service.List(c.UserContext(), middleware.ActorFrom(c), filter)
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve payments", err)
	}
	return c.JSON(payments)
}

func (h *PaymentHandler) HandleGetPaymentByID(c *fiber.Ctx) error {
	payment, err := h.service.Get(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve payment", err)
	}
	return c.JSON(payment)
}

// HandleCreatePayment accepts either a JSON body or a multipart form. A form
// may carry the proof as a file and the metadata as a JSON string.
func (h *PaymentHandler) HandleCreatePayment(c *fiber.Ctx) error {
	var input services.CreatePaymentInput
	multipart := isMultipart(c)
	if multipart {
		if err := formPaymentInput(c, &input); err != nil {
			return badRequest(c, err)
		}
	} else if err := c.BodyParser(&input); err != nil {
		return badRequest(c, err)
	}
	if done, err := validateBody(c, h.validate, input); done {
		return err
	}

	if multipart {
		file, err := h.saveProof(c)
		if err != nil {
			return respondError(c, h.logger, "Could not store proof of payment", err)
		}
		input.ProofFile = file
	}

	payment, err := h.service.Create(c.UserContext(), middleware.ActorFrom(c), input)
	if err != nil {
		h.discardProof(input.ProofFile)
		return respondError(c, h.logger, "Could not create payment", err)
	}
	return c.Status(fiber.StatusCreated).JSON(payment)
}

// HandleSubmitProof attaches an uploaded file, a proof_url or both.
func (h *PaymentHandler) HandleSubmitProof(c *fiber.Ctx) error {
	var proof services.ProofInput
	if isMultipart(c) {
		proof.URL = c.FormValue("proof_url")
		file, err := h.saveProof(c)
		if err != nil {
			return respondError(c, h.logger, "Could not store proof of payment", err)
		}
		proof.File = file
	} else {
		var req struct {
			ProofURL string `json:"proof_url" validate:"omitempty,url"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		if done, err := validateBody(c, h.validate, req); done {
			return err
		}
		proof.URL = req.ProofURL
	}

	payment, err := h.service.SubmitProof(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), proof)
	if err != nil {
		h.discardProof(proof.File)
		return respondError(c, h.logger, "Could not submit proof of payment", err)
	}
	return c.JSON(payment)
}

type paymentTransition func(ctx context.Context, actor policy.Actor, id string) (*models.Payment, error)

// transitionHandler adapts a body-less payment state change to a route.
func (h *PaymentHandler) transitionHandler(verb string, fn paymentTransition) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payment, err := fn(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
		if err != nil {
			return respondError(c, h.logger, fmt.Sprintf("Could not %s payment", verb), err)
		}
		return c.JSON(payment)
	}
}

// saveProof stores the uploaded proof under a generated name and returns the
// stored file name. It returns "" when the form has no file.
func (h *PaymentHandler) saveProof(c *fiber.Ctx) (string, error) {
	header, err := c.FormFile(proofField)
	if err != nil || header == nil {
		return "", nil
	}
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	name := uuid.New().String() + strings.ToLower(filepath.Ext(header.Filename))
	if err := c.SaveFile(header, filepath.Join(h.uploadDir, name)); err != nil {
		return "", fmt.Errorf("failed to save proof file: %w", err)
	}
	h.logger.Info("proof of payment stored", zap.String("file", name), zap.Int64("size", header.Size))
	return name, nil
}

func (h *PaymentHandler) discardProof(name string) {
	if name == "" {
		return
	}
	if err := os.Remove(filepath.Join(h.uploadDir, name)); err != nil {
		h.logger.Warn("failed to remove unused proof file", zap.String("file", name), zap.Error(err))
	}
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

func formPaymentInput(c *fiber.Ctx, input *services.CreatePaymentInput) error {
	input.OrderID = c.FormValue("order_id")
	input.Method = models.PaymentMethod(c.FormValue("method"))
	input.ProofURL = c.FormValue("proof_url")
	input.ExternalID = c.FormValue("external_id")
	input.ExternalRedirectURL = c.FormValue("external_redirect_url")
	if raw := c.FormValue("amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		input.Amount = &amount
	}
	if raw := c.FormValue("metadata"); raw != "" {
		input.Metadata = json.RawMessage(raw)
	}
	return nil
}
