package cmd

import (
	"fmt"
	"os"

	"github.com/user/secaudit/pkg/audit"
	"github.com/user/secaudit/pkg/config"
	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/store"
	"github.com/user/secaudit/pkg/trail"
	"github.com/user/secaudit/pkg/ui"
)

// app bundles what the persistent commands need
type app struct {
	cfg   *config.Config
	store *store.Store
	svc   *audit.Service
	trail *trail.Trail
	actor audit.Actor
}

func openApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	role, err := audit.ParseRole(cfg.Actor.Role)
	if err != nil {
		return nil, err
	}
	cat, err := engine.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:   cfg,
		store: st,
		svc:   audit.NewService(st, cfg.Engine(cat)),
		trail: trail.New(cfg.TrailPath),
		actor: audit.Actor{ID: cfg.Actor.ID, Role: role},
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}

// mustOpenApp exits on failure
func mustOpenApp() *app {
	a, err := openApp()
	if err != nil {
		fail("Failed to initialize", err)
	}
	return a
}

// record appends to the audit trail. A failed write is fatal.
func (a *app) record(action, entityType, entityID string, forced bool, details map[string]string) {
	err := a.trail.Append(trail.Entry{
		ActorID:    a.actor.ID,
		Role:       string(a.actor.Role),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		Forced:     forced,
	})
	if err != nil {
		fail("Audit trail write failed; the action was applied but is not logged", err)
	}
}

// authorize exits unless the actor may operate on the scan
func (a *app) authorize(scanID string) *store.Scan {
	sc, err := a.svc.GetScan(rootContext(), scanID)
	if err != nil {
		fail("Scan lookup failed", err)
	}
	if !audit.CanOperate(a.actor, sc) {
		fail("Not allowed", fmt.Errorf("%w: %s is not assigned to scan %s", audit.ErrForbidden, a.actor.ID, sc.ID))
	}
	return sc
}

func fail(message string, err error) {
	ui.PrintError(message, err)
	os.Exit(1)
}
