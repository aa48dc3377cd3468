// internal/api/handlers/transfer_handler.go
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/bucketsync/internal/bucketsync"
	"github.com/andresuchdata/bucketsync/internal/service"
	"github.com/andresuchdata/bucketsync/internal/storage"
)

type TransferHandler struct {
	transferService *service.TransferService
}

func NewTransferHandler(transferService *service.TransferService) *TransferHandler {
	return &TransferHandler{transferService: transferService}
}

type checkBucketsRequest struct {
	Buckets []string `json:"buckets"`
}

type downloadRequest struct {
	LocalDir            string `json:"local_dir"`
	DeleteAfterDownload bool   `json:"delete_after_download"`
	Filter              string `json:"filter"`
	DeleteScope         string `json:"delete_scope"`
}

type uploadFilesRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

// CheckBuckets verifies the buckets in the body, or the configured bucket
// when the body is empty.
func (h *TransferHandler) CheckBuckets(c *gin.Context) {
	var req checkBucketsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	names := req.Buckets
	if len(names) == 0 {
		names = []string{h.transferService.Bucket()}
	}

	if err := h.transferService.CheckBuckets(c.Request.Context(), names...); err != nil {
		respondError(c, err, "bucket check failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "buckets": names})
}

// ListObjects returns the keys of the configured bucket matching ?filter=.
func (h *TransferHandler) ListObjects(c *gin.Context) {
	filter := c.Query("filter")

	keys, err := h.transferService.ListKeys(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "failed to list objects")
		return
	}
	if keys == nil {
		keys = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"bucket": h.transferService.Bucket(),
		"filter": filter,
		"keys":   keys,
		"count":  len(keys),
	})
}

// Download pulls matching objects into a local directory on the server.
func (h *TransferHandler) Download(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	scope, err := bucketsync.ParseDeleteScope(req.DeleteScope)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.transferService.Download(c.Request.Context(), bucketsync.DownloadRequest{
		LocalDir:            req.LocalDir,
		DeleteAfterDownload: req.DeleteAfterDownload,
		Filter:              req.Filter,
		DeleteScope:         scope,
	})
	if err != nil {
		respondError(c, err, "download failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"downloaded": result.Downloaded,
		"deleted":    result.Deleted,
		"any":        result.Any(),
	})
}

// UploadFiles uploads files that already exist on the server's filesystem.
func (h *TransferHandler) UploadFiles(c *gin.Context) {
	var req uploadFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paths must list at least one file"})
		return
	}

	if err := h.transferService.UploadFiles(c.Request.Context(), req.Paths); err != nil {
		respondError(c, err, "upload failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"uploaded": len(req.Paths)})
}

// UploadObjects uploads the multipart "files" parts, each under its file name.
func (h *TransferHandler) UploadObjects(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	objects := make([]bucketsync.Object, 0, len(files))
	for _, file := range files {
		f, err := file.Open()
		if err != nil {
			log.Error().Err(err).Str("filename", file.Filename).Msg("failed to open uploaded file")
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file " + file.Filename})
			return
		}
		body, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			log.Error().Err(err).Str("filename", file.Filename).Msg("failed to read uploaded file")
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file " + file.Filename})
			return
		}
		objects = append(objects, bucketsync.Object{Key: file.Filename, Body: body})
	}

	if err := h.transferService.UploadObjects(c.Request.Context(), objects); err != nil {
		respondError(c, err, "upload failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"uploaded": len(objects)})
}

func respondError(c *gin.Context, err error, message string) {
	status := statusFor(err)
	log.Error().Err(err).Int("status", status).Msg(message)
	c.JSON(status, gin.H{"error": message, "detail": err.Error()})
}

func statusFor(err error) int {
	var storageErr *storage.Error
	switch {
	case errors.Is(err, service.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, bucketsync.ErrBucketNotFound), errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, bucketsync.ErrSourceNotFound):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrAccessDenied):
		return http.StatusForbidden
	case errors.As(err, &storageErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
