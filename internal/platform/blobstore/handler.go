package blobstore

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/pkg/pagination"
)

// FilesPath is the route prefix blobs are served from.
const FilesPath = "/api/v1/files/"

// URLFor returns the download URL of a blob.
func URLFor(id string) string {
	return FilesPath + id
}

// IDFromURL extracts the blob id from a URL produced by URLFor.
func IDFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, FilesPath) {
		return "", false
	}
	id := strings.TrimPrefix(url, FilesPath)
	return id, id != ""
}

// StoreUpload validates a multipart file and writes it to store on behalf of
// ownerID.
func StoreUpload(ctx context.Context, store BlobStore, fh *multipart.FileHeader, ownerID string) (*BlobMetadata, error) {
	contentType := fh.Header.Get("Content-Type")
	if err := ValidateUpload(fh.Filename, contentType); err != nil {
		return nil, err
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()

	return store.Upload(ctx, BlobMetadata{
		FileName:    filepath.Base(fh.Filename),
		ContentType: contentType,
		OwnerID:     ownerID,
	}, src)
}

// UploadError maps StoreUpload failures onto the service error taxonomy.
func UploadError(err error) error {
	var unsupported *UnsupportedTypeError
	switch {
	case errors.As(err, &unsupported):
		return apperr.Validation("%s", unsupported.Error())
	case errors.Is(err, ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrMissingFileName):
		return apperr.Validation("%s", err.Error())
	default:
		return apperr.Persistence("store upload", err)
	}
}

type uploadResponse struct {
	Msg      string `json:"msg"`
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
}

// Handler serves the generic upload and download routes.
type Handler struct {
	store BlobStore
}

func NewHandler(store BlobStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/upload", h.Upload)
	api.GET("/files", h.List)
	api.GET("/files/:id", h.Download)
}

func (h *Handler) Upload(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c.Request().Context())
	if !ok {
		return apperr.ToHTTP(apperr.Unauthorized("authentication required"))
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.ToHTTP(apperr.Validation("No file uploaded"))
	}

	meta, err := StoreUpload(c.Request().Context(), h.store, fh, caller.ID.String())
	if err != nil {
		return apperr.ToHTTP(UploadError(err))
	}

	return c.JSON(http.StatusOK, uploadResponse{
		Msg:      "File uploaded successfully",
		FileName: meta.ID + strings.ToLower(filepath.Ext(meta.FileName)),
		FilePath: URLFor(meta.ID),
	})
}

// List returns one page of the caller's uploads, newest first.
func (h *Handler) List(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c.Request().Context())
	if !ok {
		return apperr.ToHTTP(apperr.Unauthorized("authentication required"))
	}
	pg := pagination.FromContext(c)
	items, total, err := h.store.ListByOwner(c.Request().Context(), caller.ID.String(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(apperr.Persistence("list files", err))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// Download streams a blob to its owner or to an admin. Anyone else gets a
// 404 so that blob ids cannot be probed.
func (h *Handler) Download(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c.Request().Context())
	if !ok {
		return apperr.ToHTTP(apperr.Unauthorized("authentication required"))
	}

	rc, meta, err := h.store.Download(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return apperr.ToHTTP(apperr.NotFound("file not found"))
		}
		return apperr.ToHTTP(apperr.Persistence("read file", err))
	}
	defer rc.Close()

	if meta.OwnerID != caller.ID.String() && !caller.IsAdmin() {
		return apperr.ToHTTP(apperr.NotFound("file not found"))
	}

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}
