package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Dominux/Pentaract/internal/server/service"
)

// SetupRouter creates and configures the echo router with all routes and
// middleware.
func SetupRouter(handler *Handler, auth *service.AuthService) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))
	e.Use(RequestLogger())

	// Health & auth
	e.GET("/health", handler.HandleHealth)
	e.POST("/api/auth/register", handler.HandleRegister)
	e.POST("/api/auth/login", handler.HandleLogin)

	// Everything else requires a valid access token
	authed := e.Group("/api", AuthGuard(auth))

	// Storages
	authed.POST("/storages", handler.HandleCreateStorage)
	authed.GET("/storages", handler.HandleListStorages)
	authed.GET("/storages/:id", handler.HandleGetStorage)
	authed.DELETE("/storages/:id", handler.HandleDeleteStorage)

	// Storage workers
	authed.POST("/storage_workers", handler.HandleCreateWorker)
	authed.GET("/storage_workers", handler.HandleListWorkers)

	// Access grants
	authed.POST("/storages/:id/access", handler.HandleGrantAccess)
	authed.GET("/storages/:id/access", handler.HandleListAccess)

	// Files
	authed.POST("/storages/:id/files", handler.HandleUploadFile)
	authed.POST("/storages/:id/files/anyway", handler.HandleUploadFileAnyway)
	authed.GET("/storages/:id/files", handler.HandleListDir)
	authed.GET("/storages/:id/files/download", handler.HandleDownloadFile)
	authed.GET("/storages/:id/files/search", handler.HandleSearchFiles)
	authed.PATCH("/storages/:id/files", handler.HandleRenameFile)
	authed.DELETE("/storages/:id/files", handler.HandleDeleteFile)
	authed.POST("/storages/:id/folders", handler.HandleCreateFolder)

	return e
}
