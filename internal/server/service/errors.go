package service

import "errors"

// Sentinel errors for the service layer.
var (
	ErrInvalidPath        = errors.New("invalid path")
	ErrInvalidFolderName  = errors.New("invalid folder name")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
