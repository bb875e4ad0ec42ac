package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/albumforge/backoffice/internal/repository"
)

// CatalogHandler exposes the read-only marketing catalog consumed by the
// public site. Responses are cached by the response-cache middleware.
type CatalogHandler struct {
	Products *repository.ProductRepo
}

func NewCatalogHandler(p *repository.ProductRepo) *CatalogHandler {
	return &CatalogHandler{Products: p}
}

type productPart struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  uint32 `json:"price_cents"`
}

// ListProducts returns every active album product.
func (h *CatalogHandler) ListProducts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Products.ListActive(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "catalog unavailable"})
	}
	out := make([]productPart, 0, len(items))
	for _, p := range items {
		out = append(out, productPart{ID: p.ID, Name: p.Name, Description: p.Description, PriceCents: p.PriceCents})
	}
	return c.JSON(http.StatusOK, echo.Map{"products": out})
}

// Status is the public API status probe.
func Status(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
