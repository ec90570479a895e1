package http

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"workblix/internal/domain"
)

func (h *Handler) GetProfile(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	p, err := h.profiles.GetProfile(c.UserContext(), uid)
	if err != nil {
		return h.fail(c, err, "profile lookup failed")
	}
	return c.JSON(p)
}

// PutProfile replaces the user's profile wholesale. Billing fields in the
// body are ignored; they belong to the webhook reconciler.
func (h *Handler) PutProfile(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	var p domain.Profile
	if err := json.Unmarshal(c.Body(), &p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}

	current, err := h.profiles.GetProfile(c.UserContext(), uid)
	switch {
	case err == nil:
		p.Billing = current.Billing
		p.CreatedAt = current.CreatedAt
	case errors.Is(err, domain.ErrNotFound):
		p.Billing = domain.Billing{Plan: domain.PlanFree}
	default:
		return h.fail(c, err, "profile lookup failed")
	}
	p.ID = uid

	if err := p.Validate(); err != nil {
		return h.fail(c, err, "invalid profile")
	}
	if err := h.profiles.SaveProfile(c.UserContext(), &p); err != nil {
		return h.fail(c, err, "profile save failed")
	}
	return c.JSON(p)
}

// Usage reports the export counter of the current calendar month.
func (h *Handler) Usage(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	rec, err := h.profiles.GetUsage(c.UserContext(), uid, domain.MonthStart(h.now()))
	if err != nil {
		return h.fail(c, err, "usage lookup failed")
	}
	return c.JSON(rec)
}
