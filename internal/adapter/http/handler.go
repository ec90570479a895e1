package http

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"workblix/internal/billing"
	"workblix/internal/cvtemplate"
	"workblix/internal/domain"
	"workblix/internal/model"
	"workblix/internal/usecase"
)

type CVService interface {
	Generate(ctx context.Context, templateID string, data model.CVData, opts model.RenderOptions) (string, error)
	ExportProfile(ctx context.Context, userID uuid.UUID, req usecase.ExportRequest) (*usecase.ExportResult, error)
}

type Catalog interface {
	Templates() []cvtemplate.Info
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	SaveProfile(ctx context.Context, p *domain.Profile) error
	GetUsage(ctx context.Context, userID uuid.UUID, monthStart time.Time) (domain.UsageRecord, error)
	FindUserByCustomer(ctx context.Context, customerID string) (uuid.UUID, error)
}

type SessionGateway interface {
	CreateCheckoutSession(ctx context.Context, in billing.CheckoutInput) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

type EventHandler interface {
	Handle(ctx context.Context, ev billing.Event) (billing.Outcome, error)
}

// Deps collects the collaborators of Handler. Gateway and Events may be nil
// when billing is not configured.
type Deps struct {
	CV            CVService
	Catalog       Catalog
	Profiles      ProfileStore
	Gateway       SessionGateway
	Events        EventHandler
	WebhookSecret string
	AppBaseURL    string
	Log           zerolog.Logger
}

type Handler struct {
	cv            CVService
	catalog       Catalog
	profiles      ProfileStore
	gateway       SessionGateway
	events        EventHandler
	webhookSecret string
	appURL        string
	log           zerolog.Logger
	now           func() time.Time
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		cv:            d.CV,
		catalog:       d.Catalog,
		profiles:      d.Profiles,
		gateway:       d.Gateway,
		events:        d.Events,
		webhookSecret: d.WebhookSecret,
		appURL:        strings.TrimRight(d.AppBaseURL, "/"),
		log:           d.Log,
		now:           time.Now,
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrSignature):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrVersionConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrExternalService):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func (h *Handler) fail(c *fiber.Ctx, err error, msg string) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Path()).Str("request_id", requestID(c)).Msg(msg)
	}
	return c.Status(status).JSON(fiber.Map{"error": msg, "details": err.Error()})
}

func userID(c *fiber.Ctx) (uuid.UUID, error) {
	sub, _ := c.Locals(localUserID).(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return id, nil
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}
