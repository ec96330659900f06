package resumes

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"resumind/internal/analysis"
	"resumind/internal/extract"
	"resumind/internal/pipeline"
	"resumind/internal/shared/server/middleware"
	"resumind/internal/shared/server/respond"
	"resumind/internal/shared/telemetry"
	"resumind/internal/shared/util"
)

// DefaultMaxUploadBytes is the largest résumé accepted by POST /resumes.
const DefaultMaxUploadBytes = 20 << 20

// Handler exposes the record API and the pipeline trigger.
type Handler struct {
	Repo           *Repo
	Sessions       *pipeline.Sessions
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(repo *Repo, sessions *pipeline.Sessions, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{Repo: repo, Sessions: sessions, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches record routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resumes", h.create)
	rg.GET("/resumes", h.list)
	rg.GET("/resumes/:id", h.get)
	rg.DELETE("/resumes/:id", h.delete)
	rg.DELETE("/resumes", h.wipe)
}

func (h *Handler) create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+1<<20)

	// FormFile parses the multipart body first so an oversized upload surfaces here.
	fileHeader, err := c.FormFile("file")
	in := pipeline.Input{
		CompanyName:    c.PostForm("companyName"),
		JobTitle:       c.PostForm("jobTitle"),
		JobDescription: c.PostForm("jobDescription"),
	}
	switch {
	case err == nil:
		if fileHeader.Size > h.MaxUploadBytes {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "File must be 20 MB or smaller", gin.H{"maxBytes": h.MaxUploadBytes})
			return
		}
		name, err := util.SanitizeFileName(fileHeader.Filename)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid file name", gin.H{"field": "file"})
			return
		}
		data, err := readUpload(fileHeader)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		in.File = &pipeline.File{Name: name, Data: data}
	case isTooLarge(err):
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "File must be 20 MB or smaller", gin.H{"maxBytes": h.MaxUploadBytes})
		return
	}
	// A missing file is reported by pipeline validation.

	// A client that goes away abandons the run without cancelling it; the
	// outcome stays pollable under /runs/:id.
	ctx := pipeline.WithRequestID(context.WithoutCancel(c.Request.Context()), middleware.RequestIDFromContext(c))

	res, err := h.Sessions.Run(ctx, middleware.SessionIDFromContext(c), in)
	if res.Stage != "" {
		c.Set("statusTransition", string(pipeline.StageIdle)+"->"+string(res.Stage))
	}
	if err != nil {
		h.runError(c, res, err)
		return
	}

	c.Set("recordId", res.RecordID)
	fields := map[string]any{
		"record_id":  res.RecordID,
		"run_id":     res.RunID,
		"request_id": middleware.RequestIDFromContext(c),
	}
	if in.File != nil {
		fields["file"] = in.File.Summary()
	}
	telemetry.Info("resumes.created", fields)
	respond.JSON(c, http.StatusCreated, res)
}

func (h *Handler) runError(c *gin.Context, res pipeline.Result, err error) {
	if errors.Is(err, pipeline.ErrRunInProgress) {
		respond.Error(c, http.StatusConflict, "run_in_progress", err.Error(), nil)
		return
	}

	details := gin.H{
		"stage":         res.FailedStage,
		"statusMessage": res.StatusMessage,
		"statusHistory": res.StatusHistory,
	}

	var (
		verr *pipeline.ValidationError
		xerr *extract.ExtractionError
		gerr *analysis.GatewayError
		rerr *analysis.RemoteError
		serr *StorageError
	)
	switch {
	case errors.As(err, &verr):
		details["field"] = verr.Field
		respond.Error(c, http.StatusBadRequest, "validation_error", verr.Message, details)
	case errors.As(err, &xerr):
		respond.Error(c, http.StatusUnprocessableEntity, "extraction_failed", xerr.Error(), details)
	case errors.As(err, &gerr):
		details["kind"] = gerr.Kind
		details["retryable"] = gerr.Retryable()
		if gerr.Details != "" {
			details["upstream"] = gerr.Details
		}
		respond.Error(c, gerr.HTTPStatus(), "analysis_failed", gerr.Message, details)
	case errors.As(err, &rerr):
		respond.Error(c, http.StatusBadGateway, "analysis_failed", rerr.Error(), details)
	case errors.As(err, &serr):
		respond.Error(c, http.StatusInternalServerError, "storage_error", serr.Error(), details)
	case res.FailedStage == pipeline.StageRenderingPreview:
		respond.Error(c, http.StatusUnprocessableEntity, "preview_failed", err.Error(), details)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", err.Error(), details)
	}
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set("recordId", id)

	rec, err := h.Repo.Get(c.Request.Context(), id)
	if err != nil {
		h.recordError(c, err)
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) list(c *gin.Context) {
	recs, err := h.Repo.List(c.Request.Context())
	if err != nil {
		h.recordError(c, err)
		return
	}
	respond.OK(c, recs)
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	c.Set("recordId", id)

	if err := h.Repo.Delete(c.Request.Context(), id); err != nil {
		h.recordError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) wipe(c *gin.Context) {
	n, err := h.Repo.Wipe(c.Request.Context())
	if err != nil {
		h.recordError(c, err)
		return
	}
	respond.OK(c, gin.H{"deleted": n})
}

func (h *Handler) recordError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
	case errors.Is(err, ErrInvalidID):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "storage_error", err.Error(), nil)
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
