package http

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"workblix/internal/domain"
	"workblix/internal/labels"
	"workblix/internal/layout"
	"workblix/internal/model"
	"workblix/internal/usecase"
)

// Templates lists the catalog templates and the built-in layouts.
func (h *Handler) Templates(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"templates": h.catalog.Templates(),
		"layouts":   layout.Names(),
	})
}

type generateReq struct {
	TemplateID string                 `json:"templateId"`
	CVData     map[string]interface{} `json:"cvData"`
	Language   string                 `json:"language,omitempty"`
}

// Generate populates a catalog template with the posted cvData.
func (h *Handler) Generate(c *fiber.Ctx) error {
	var req generateReq
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	if strings.TrimSpace(req.TemplateID) == "" || req.CVData == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "templateId and cvData are required"})
	}
	if err := model.ValidateMap(req.CVData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid cvData", "details": err.Error()})
	}

	data, err := decodeCVData(req.CVData)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid cvData", "details": err.Error()})
	}

	html, err := h.cv.Generate(c.UserContext(), req.TemplateID, data, model.RenderOptions{
		Language: h.language(c, req.Language),
	})
	if err != nil {
		if statusFor(err) == fiber.StatusNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "template not found", "details": err.Error()})
		}
		h.log.Error().Err(err).Str("template", req.TemplateID).Msg("cv generation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": domain.ErrRender.Error(), "details": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "html": html})
}

type exportReq struct {
	TemplateID   string  `json:"templateId"`
	Layout       string  `json:"layout"`
	Format       string  `json:"format"`
	Language     string  `json:"language"`
	IncludePhoto bool    `json:"includePhoto"`
	Watermark    bool    `json:"watermark"`
	PageFormat   string  `json:"pageFormat"`
	Orientation  string  `json:"orientation"`
	Scale        float64 `json:"scale"`
}

// Export renders the signed-in user's profile and returns it as an attachment.
func (h *Handler) Export(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	var req exportReq
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
		}
	}

	res, err := h.cv.ExportProfile(c.UserContext(), uid, usecase.ExportRequest{
		TemplateID:   req.TemplateID,
		Layout:       req.Layout,
		Format:       usecase.ExportFormat(strings.ToLower(req.Format)),
		Language:     h.language(c, req.Language),
		IncludePhoto: req.IncludePhoto,
		Watermark:    req.Watermark,
		PageFormat:   usecase.PageFormat(strings.ToLower(req.PageFormat)),
		Orientation:  usecase.Orientation(strings.ToLower(req.Orientation)),
		Scale:        req.Scale,
	})
	if err != nil {
		return h.fail(c, err, "export failed")
	}

	c.Set(fiber.HeaderContentType, res.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, res.Filename))
	return c.Status(fiber.StatusOK).Send(res.Body)
}

func (h *Handler) language(c *fiber.Ctx, explicit string) string {
	if explicit != "" {
		return labels.Match(explicit)
	}
	return labels.Match(c.Get(fiber.HeaderAcceptLanguage))
}

func decodeCVData(m map[string]interface{}) (model.CVData, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return model.CVData{}, err
	}
	var d model.CVData
	if err := json.Unmarshal(raw, &d); err != nil {
		return model.CVData{}, err
	}
	return d.Normalize(), nil
}
