package runs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resumind/internal/shared/server/respond"
	"resumind/internal/shared/telemetry"
)

// Handler serves run progress.
type Handler struct {
	Projector *Projector
}

// NewHandler constructs a Handler.
func NewHandler(p *Projector) *Handler {
	return &Handler{Projector: p}
}

// RegisterRoutes attaches run routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/runs/:id", h.get)
}

func (h *Handler) get(c *gin.Context) {
	st, err := h.Projector.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
			return
		}
		telemetry.Error("runs.get_failed", map[string]any{"run_id": c.Param("id"), "err": err})
		respond.Error(c, http.StatusInternalServerError, "storage_error", "unable to read run", nil)
		return
	}
	respond.OK(c, st)
}
