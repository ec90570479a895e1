package http

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"workblix/internal/billing"
	"workblix/internal/domain"
)

const signatureHeader = "Stripe-Signature"

type checkoutReq struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

func (h *Handler) CreateCheckoutSession(c *fiber.Ctx) error {
	if h.gateway == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing not configured"})
	}
	uid, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	var req checkoutReq
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	if req.UserID != "" && req.UserID != uid.String() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	in := billing.CheckoutInput{
		UserID:     uid.String(),
		Email:      req.Email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}
	if in.Email == "" {
		in.Email, _ = c.Locals(localEmail).(string)
	}
	if in.SuccessURL == "" {
		in.SuccessURL = h.appURL + "/billing?checkout=success"
	}
	if in.CancelURL == "" {
		in.CancelURL = h.appURL + "/pricing?checkout=cancelled"
	}
	p, err := h.profiles.GetProfile(c.UserContext(), uid)
	switch {
	case err == nil:
		in.CustomerID = p.StripeCustomerID
	case !errors.Is(err, domain.ErrNotFound):
		return h.fail(c, err, "profile lookup failed")
	}

	url, err := h.gateway.CreateCheckoutSession(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err, "checkout session failed")
	}
	return c.JSON(fiber.Map{"url": url})
}

type portalReq struct {
	CustomerID string `json:"customerId"`
	ReturnURL  string `json:"returnUrl"`
}

func (h *Handler) CreatePortalSession(c *fiber.Ctx) error {
	if h.gateway == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing not configured"})
	}
	uid, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	var req portalReq
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	if req.CustomerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customerId is required"})
	}

	owner, err := h.profiles.FindUserByCustomer(c.UserContext(), req.CustomerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return h.fail(c, err, "customer lookup failed")
	}
	if err != nil || owner != uid {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	if req.ReturnURL == "" {
		req.ReturnURL = h.appURL + "/billing"
	}
	url, err := h.gateway.CreatePortalSession(c.UserContext(), req.CustomerID, req.ReturnURL)
	if err != nil {
		return h.fail(c, err, "portal session failed")
	}
	return c.JSON(fiber.Map{"url": url})
}

// StripeWebhook verifies and applies a payment processor event. Anything
// that fails verification is rejected before the store is touched.
func (h *Handler) StripeWebhook(c *fiber.Ctx) error {
	ev, err := billing.VerifyWebhook(c.Body(), c.Get(signatureHeader), h.webhookSecret)
	switch {
	case errors.Is(err, billing.ErrMissingSecret):
		h.log.Error().Msg("stripe webhook secret is not configured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook not configured"})
	case errors.Is(err, domain.ErrSignature):
		h.log.Warn().Err(err).Msg("rejected webhook with invalid signature")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid signature"})
	case err != nil:
		h.log.Warn().Err(err).Msg("rejected malformed webhook event")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event", "details": err.Error()})
	}
	if h.events == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook not configured"})
	}

	outcome, err := h.events.Handle(c.UserContext(), ev)
	if err != nil {
		h.log.Error().Err(err).Str("event", ev.ID).Str("type", ev.Type).Msg("webhook processing failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook processing failed"})
	}
	return c.JSON(fiber.Map{"received": true, "outcome": outcome})
}
