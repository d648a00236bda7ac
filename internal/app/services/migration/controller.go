// Package migration resolves the storage-migration state for a scope.
package migration

import (
	"github.com/appforge/platform/internal/app/domain/migration"
	"github.com/appforge/platform/pkg/logger"
)

// Controller resolves migration flags into read/write decisions. It holds a
// Flags value object injected at construction; it never reads process state.
type Controller struct {
	flags migration.Flags
	log   *logger.Logger
}

// NewController constructs a phase controller over the given flags.
func NewController(flags migration.Flags, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.NewDefault("migration")
	}
	return &Controller{flags: flags, log: log}
}

// Resolve computes the migration decision for an app within a team. Either
// id may be empty when the scope has no override at that level.
//
// Precedence: explicit per-app setting, then per-team setting, then the
// global storage flag. A set DisableOverride always wins and forces the
// disabled phase.
func (c *Controller) Resolve(appID, teamID string) migration.Decision {
	if c.flags.DisableOverride {
		return migration.Decision{Enabled: false, Phase: migration.PhaseDisabled}
	}

	enabled := c.flags.StorageEnabled
	if v, ok := c.flags.TeamOverrides[teamID]; ok && teamID != "" {
		enabled = v
	}
	if v, ok := c.flags.AppOverrides[appID]; ok && appID != "" {
		enabled = v
	}

	phase := migration.ParsePhase(c.flags.Phase)
	decision := migration.Decision{
		Enabled:     enabled,
		Phase:       phase,
		ShouldWrite: enabled && phase != migration.PhaseDisabled,
		ShouldRead:  enabled && readablePhase(phase),
	}

	c.log.WithField("app_id", appID).
		WithField("phase", string(decision.Phase)).
		WithField("should_read", decision.ShouldRead).
		WithField("should_write", decision.ShouldWrite).
		Debug("migration decision resolved")
	return decision
}

// readablePhase deliberately excludes testing: during testing both stores
// receive writes but reads stay on the legacy store so the new store can be
// verified before cutover.
func readablePhase(p migration.Phase) bool {
	switch p {
	case migration.PhaseHybrid, migration.PhaseActive, migration.PhaseComplete:
		return true
	default:
		return false
	}
}
