package api

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Dominux/Pentaract/internal/server/database"
)

// HandleUploadFile handles POST /api/storages/:id/files.
// Accepts a multipart form with a "file" field and an optional "path"
// field naming the parent folder. The exact path must be free.
func (h *Handler) HandleUploadFile(c echo.Context) error {
	return h.handleUpload(c, false)
}

// HandleUploadFileAnyway handles POST /api/storages/:id/files/anyway.
// Same as HandleUploadFile, but a taken path is resolved by picking the
// next free "name (n).ext" variant instead of failing.
func (h *Handler) HandleUploadFileAnyway(c echo.Context) error {
	return h.handleUpload(c, true)
}

func (h *Handler) handleUpload(c echo.Context, anyway bool) error {
	storageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid storage id"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "file is required (use form field 'file')",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to read uploaded file",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to read uploaded file",
		})
	}

	parentPath := c.FormValue("path")
	ctx := c.Request().Context()
	user := currentUser(c)

	if anyway {
		err = h.files.UploadAnyway(ctx, user, storageID, parentPath, fileHeader.Filename, data)
	} else {
		err = h.files.UploadTo(ctx, user, storageID, parentPath, fileHeader.Filename, data)
	}
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"message": "file uploaded"})
}

// HandleDownloadFile handles GET /api/storages/:id/files/download?path=...
// Serves the reassembled file as an attachment.
func (h *Handler) HandleDownloadFile(c echo.Context) error {
	storageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid storage id"})
	}

	path := c.QueryParam("path")
	data, filename, err := h.files.Download(c.Request().Context(), currentUser(c), storageID, path)
	if err != nil {
		return mapServiceError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, data)
}

// HandleListDir handles GET /api/storages/:id/files?path=prefix.
func (h *Handler) HandleListDir(c echo.Context) error {
	storageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid storage id"})
	}

	elements, err := h.files.ListDir(c.Request().Context(), currentUser(c), storageID, c.QueryParam("path"))
	if err != nil {
		return mapServiceError(c, err)
	}
	if elements == nil {
		elements = []database.FSElement{}
	}
	return c.JSON(http.StatusOK, elements)
}

// HandleSearchFiles handles GET /api/storages/:id/files/search?path=prefix&query=needle.
func (h *Handler) HandleSearchFiles(c echo.Context) error {
	storageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid storage id"})
	}

	query := c.QueryParam("query")
	if query == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "query is required"})
	}

	elements, err := h.files.Search(c.Request().Context(), currentUser(c), storageID, c.QueryParam("path"), query)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, elements)
}

type renameRequest struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

// HandleRenameFile handles PATCH /api/storages/:id/files.
func (h *Handler) HandleRenameFile(c echo.Context) error {
	storageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid storage id"})
	}

	var req renameRequest
	if err := c.Bind(&req); err != nil || req.OldPath == "" || req.NewPath == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "old_path and new_path are required"})
	}

	if err := h.files.Rename(c.Request().Context(), currentUser(c), storageID, req.OldPath, req.NewPath); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "renamed"})
}

// HandleDeleteFile handles DELETE /api/storages/:id/files?path=...
// A path ending with "/" deletes a folder with all of its contents.
func (h *Handler) HandleDeleteFile(c echo.Context) error {
	storageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid storage id"})
	}

	if err := h.files.Delete(c.Request().Context(), currentUser(c), storageID, c.QueryParam("path")); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}

type createFolderRequest struct {
	ParentPath string `json:"parent_path"`
	FolderName string `json:"folder_name"`
}

// HandleCreateFolder handles POST /api/storages/:id/folders.
func (h *Handler) HandleCreateFolder(c echo.Context) error {
	storageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid storage id"})
	}

	var req createFolderRequest
	if err := c.Bind(&req); err != nil || req.FolderName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "folder_name is required"})
	}

	if err := h.files.CreateFolder(c.Request().Context(), currentUser(c), storageID, req.ParentPath, req.FolderName); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "folder created"})
}
