package handlers

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"

	"github.com/spec-kit/astro-gateway/internal/auth"
	"github.com/spec-kit/astro-gateway/internal/guard"
	apperrors "github.com/spec-kit/astro-gateway/pkg/util/errorutil"
)

// RoleHeader carries the verified role to the page renderer.
const RoleHeader = "X-Gateway-Role"

// PageHandler serves pages that passed the guard.
type PageHandler struct {
	upstream string
	logger   *zap.Logger
}

// NewPageHandler constructs handler. With an empty upstream it answers with
// a page descriptor instead of proxying.
func NewPageHandler(upstream string, logger *zap.Logger) *PageHandler {
	return &PageHandler{upstream: strings.TrimSuffix(upstream, "/"), logger: logger}
}

// Serve handles GET /*. The upstream receives the canonical path the guard
// decided on, never the raw one.
func (h *PageHandler) Serve(c *fiber.Ctx) error {
	decision, ok := auth.DecisionFromContext(c)
	canonical := decision.Path
	if !ok || canonical == "" {
		canonical = guard.CanonicalPath(c.Path())
	}

	if h.upstream == "" {
		return c.JSON(fiber.Map{
			"data": fiber.Map{
				"path":   canonical,
				"role":   decision.Role,
				"reason": decision.Reason,
			},
		})
	}

	c.Request().Header.Del(RoleHeader)
	if decision.Role != "" {
		c.Request().Header.Set(RoleHeader, string(decision.Role))
	}
	if err := proxy.Do(c, h.upstream+upstreamURI(canonical, c)); err != nil {
		h.logger.Warn("page upstream failed", zap.String("path", canonical), zap.Error(err))
		return apperrors.NewBadGateway("page renderer unavailable", err)
	}
	return nil
}

// upstreamURI re-escapes the canonical path so the renderer decodes it to
// exactly what the guard saw.
func upstreamURI(canonical string, c *fiber.Ctx) string {
	uri := (&url.URL{Path: canonical}).EscapedPath()
	if query := c.Request().URI().QueryString(); len(query) > 0 {
		uri += "?" + string(query)
	}
	return uri
}
