package cli

import "errors"

// Usage errors.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrArgsRequired   = errors.New("missing arguments")
	ErrTooManyArgs    = errors.New("too many arguments")
)

// Config errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config")
	ErrConfigExists       = errors.New("config file already exists")
)

// Command errors.
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidKey = errors.New("invalid key")
	ErrBusy       = errors.New("key is being edited")
)
