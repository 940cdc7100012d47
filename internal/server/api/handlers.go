package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Dominux/Pentaract/internal/server/database"
	"github.com/Dominux/Pentaract/internal/server/engine"
	"github.com/Dominux/Pentaract/internal/server/service"
	"github.com/Dominux/Pentaract/internal/server/telegram"
)

// Handler contains the HTTP handlers for the Pentaract API.
type Handler struct {
	auth     *service.AuthService
	storages *service.StoragesService
	workers  *service.StorageWorkersService
	access   *service.AccessService
	files    *service.FilesService
	db       *database.DB
}

// NewHandler creates a new handler with the given service dependencies.
func NewHandler(
	auth *service.AuthService,
	storages *service.StoragesService,
	workers *service.StorageWorkersService,
	access *service.AccessService,
	files *service.FilesService,
	db *database.DB,
) *Handler {
	return &Handler{
		auth:     auth,
		storages: storages,
		workers:  workers,
		access:   access,
		files:    files,
		db:       db,
	}
}

// --- Auth ---

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister handles POST /api/auth/register.
func (h *Handler) HandleRegister(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	user, err := h.auth.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"id": user.ID, "email": user.Email})
}

// HandleLogin handles POST /api/auth/login.
func (h *Handler) HandleLogin(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	token, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"access_token": token, "token_type": "Bearer"})
}

// --- Storages ---

type createStorageRequest struct {
	Name   string `json:"name"`
	ChatID int64  `json:"chat_id"`
}

// HandleCreateStorage handles POST /api/storages.
func (h *Handler) HandleCreateStorage(c echo.Context) error {
	var req createStorageRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and chat_id are required"})
	}

	storage, err := h.storages.Create(c.Request().Context(), currentUser(c), req.Name, req.ChatID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":      storage.ID,
		"name":    storage.Name,
		"chat_id": storage.ChatID,
	})
}

// HandleListStorages handles GET /api/storages.
func (h *Handler) HandleListStorages(c echo.Context) error {
	storages, err := h.storages.List(c.Request().Context(), currentUser(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	out := make([]echo.Map, 0, len(storages))
	for _, s := range storages {
		out = append(out, echo.Map{
			"id":           s.ID,
			"name":         s.Name,
			"chat_id":      s.ChatID,
			"files_amount": s.FilesAmount,
			"size":         s.Size,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// HandleGetStorage handles GET /api/storages/:id.
func (h *Handler) HandleGetStorage(c echo.Context) error {
	storageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid storage id"})
	}

	storage, err := h.storages.Get(c.Request().Context(), currentUser(c), storageID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":      storage.ID,
		"name":    storage.Name,
		"chat_id": storage.ChatID,
	})
}

// HandleDeleteStorage handles DELETE /api/storages/:id.
func (h *Handler) HandleDeleteStorage(c echo.Context) error {
	storageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid storage id"})
	}

	if err := h.storages.Delete(c.Request().Context(), currentUser(c), storageID); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "storage deleted"})
}

// --- Storage workers ---

type createWorkerRequest struct {
	Name      string     `json:"name"`
	Token     string     `json:"token"`
	StorageID *uuid.UUID `json:"storage_id"`
}

// HandleCreateWorker handles POST /api/storage_workers.
func (h *Handler) HandleCreateWorker(c echo.Context) error {
	var req createWorkerRequest
	if err := c.Bind(&req); err != nil || req.Name == "" || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and token are required"})
	}

	worker, err := h.workers.Create(c.Request().Context(), currentUser(c), req.Name, req.Token, req.StorageID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":         worker.ID,
		"name":       worker.Name,
		"storage_id": worker.StorageID,
	})
}

// HandleListWorkers handles GET /api/storage_workers.
func (h *Handler) HandleListWorkers(c echo.Context) error {
	workers, err := h.workers.List(c.Request().Context(), currentUser(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	out := make([]echo.Map, 0, len(workers))
	for _, w := range workers {
		out = append(out, echo.Map{
			"id":         w.ID,
			"name":       w.Name,
			"storage_id": w.StorageID,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// --- Access ---

type grantAccessRequest struct {
	UserEmail  string `json:"user_email"`
	AccessType string `json:"access_type"`
}

// HandleGrantAccess handles POST /api/storages/:id/access.
func (h *Handler) HandleGrantAccess(c echo.Context) error {
	storageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid storage id"})
	}

	var req grantAccessRequest
	if err := c.Bind(&req); err != nil || req.UserEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_email and access_type are required"})
	}

	accessType := database.AccessType(req.AccessType)
	switch accessType {
	case database.AccessRead, database.AccessWrite, database.AccessAdmin:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "access_type must be one of r, w, a"})
	}

	if err := h.access.Grant(c.Request().Context(), currentUser(c), req.UserEmail, storageID, accessType); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "access granted"})
}

// HandleListAccess handles GET /api/storages/:id/access.
func (h *Handler) HandleListAccess(c echo.Context) error {
	storageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid storage id"})
	}

	grants, err := h.access.ListGrants(c.Request().Context(), currentUser(c), storageID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, grants)
}

// --- Health ---

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// mapServiceError translates service-layer errors into HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, database.ErrAlreadyExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already exists"})
	case errors.Is(err, database.ErrNoStorage):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "storage does not exist"})
	case errors.Is(err, service.ErrInvalidPath):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid path"})
	case errors.Is(err, service.ErrInvalidFolderName):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid folder name"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
	case errors.Is(err, service.ErrNotAuthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	case errors.Is(err, service.ErrPermissionDenied):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "permission denied"})
	case errors.Is(err, engine.ErrNoWorkers):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "storage does not have any workers"})
	case errors.Is(err, telegram.ErrBackendRejected),
		errors.Is(err, telegram.ErrBackendUnavailable):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "storage backend failure"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
