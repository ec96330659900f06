package analysis

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resumind/internal/shared/server/respond"
)

const maxAnalyzeBodyBytes = 8 << 20

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	ResumeText     string `json:"resumeText"`
	JobTitle       string `json:"jobTitle"`
	JobDescription string `json:"jobDescription"`
}

// Handler exposes the gateway over HTTP.
type Handler struct {
	Gateway *Gateway
}

// NewHandler constructs a Handler.
func NewHandler(gw *Gateway) *Handler {
	return &Handler{Gateway: gw}
}

// RegisterRoutes attaches /api/analyze. Every method is routed so that
// non-POST requests get the contract's 405 body.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.Any("/api/analyze", h.analyze)
}

func (h *Handler) analyze(c *gin.Context) {
	if !strings.EqualFold(c.Request.Method, http.MethodPost) {
		respond.Plain(c, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAnalyzeBodyBytes)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Plain(c, http.StatusRequestEntityTooLarge, "Request body too large", nil)
			return
		}
		respond.Plain(c, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	// Unmarshal rejects trailing data after the object.
	var req *AnalyzeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		respond.Plain(c, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	if req == nil || req.ResumeText == "" || req.JobTitle == "" || req.JobDescription == "" {
		respond.Plain(c, http.StatusBadRequest, "Missing resumeText/jobTitle/jobDescription", nil)
		return
	}

	fb, err := h.Gateway.RequestAnalysis(c.Request.Context(), req.ResumeText, req.JobTitle, req.JobDescription)
	if err != nil {
		var gwErr *GatewayError
		if !errors.As(err, &gwErr) {
			gwErr = classify(h.Gateway.Provider().Kind(), err)
		}
		body := gwErr.Body()
		delete(body, "error")
		respond.Plain(c, gwErr.HTTPStatus(), gwErr.Message, body)
		return
	}
	respond.OK(c, fb)
}
