package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/internal/config"
	"github.com/jakechorley/retro-shifts/pkg/core/services"
	"github.com/jakechorley/retro-shifts/pkg/db"
)

var (
	errNoPermission = errors.New("no permission to manage events")
	errNoUser       = errors.New("no user given: pass --as <user>")
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg      *config.Config
	Service  *services.ShiftService
	Database db.Database
	Logger   *zap.Logger
	Ctx      context.Context

	// User is who signup commands act for; UserRoles gate event management
	User      string
	UserRoles []string
}

func (app *AppContext) requireEventPermission() error {
	if !app.Cfg.HasEventPermission(app.UserRoles) {
		return fmt.Errorf("%w (needs one of %v)", errNoPermission, app.Cfg.EventCreatorRoles)
	}
	return nil
}

func (app *AppContext) requireUser() (string, error) {
	if app.User == "" {
		return "", errNoUser
	}
	return app.User, nil
}
