package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Seeder inserts sample orders.
type Seeder interface {
	Seed(ctx context.Context) (string, error)
}

// AdminHandler handles administrative actions.
type AdminHandler struct {
	seeder Seeder
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(seeder Seeder) *AdminHandler {
	return &AdminHandler{seeder: seeder}
}

// SeedResponse is the HTTP response for the seed action.
type SeedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Seed handles POST /v1/admin/seed
func (h *AdminHandler) Seed(c *gin.Context) {
	message, err := h.seeder.Seed(c.Request.Context())
	if err != nil {
		respondJSON(c, http.StatusInternalServerError, SeedResponse{Success: false, Error: err.Error()})
		return
	}
	respondJSON(c, http.StatusOK, SeedResponse{Success: true, Message: message})
}
