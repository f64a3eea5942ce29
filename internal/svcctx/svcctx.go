// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/galleykit/galley/internal/config"
	"github.com/galleykit/galley/internal/defra"
	"github.com/galleykit/galley/internal/extraction"
	"github.com/galleykit/galley/internal/home"
	"github.com/galleykit/galley/internal/scan"
	"github.com/galleykit/galley/internal/store"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	DefraClient   *defra.Client
	Store         *store.Store
	ScanManager   *scan.Manager
	Extractors    *extraction.Registry
	ConfigManager *config.Manager
	Logger        *slog.Logger
	Home          *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// DefraClientFrom extracts the DefraDB client from context.
func DefraClientFrom(ctx context.Context) *defra.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.DefraClient
	}
	return nil
}

// StoreFrom extracts the persistence store from context.
func StoreFrom(ctx context.Context) *store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// ScanManagerFrom extracts the scan session manager from context.
func ScanManagerFrom(ctx context.Context) *scan.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ScanManager
	}
	return nil
}

// ExtractorsFrom extracts the extraction provider registry from context.
func ExtractorsFrom(ctx context.Context) *extraction.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Extractors
	}
	return nil
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
