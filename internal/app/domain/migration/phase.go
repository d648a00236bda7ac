// Package migration models the phased storage migration: an enumerated
// phase plus the configuration flags that gate whether reads and writes
// target the legacy store, the new store, or both.
package migration

// Phase is the consistency stage of the storage migration.
type Phase string

const (
	PhaseDisabled Phase = "disabled"
	PhaseTesting  Phase = "testing"
	PhaseHybrid   Phase = "hybrid"
	PhaseActive   Phase = "active"
	PhaseComplete Phase = "complete"
)

// ParsePhase maps a configuration value to a Phase. Unrecognised values
// default to testing, the safest stage: writes land in both stores while
// reads stay on the legacy store.
func ParsePhase(value string) Phase {
	switch Phase(value) {
	case PhaseDisabled, PhaseTesting, PhaseHybrid, PhaseActive, PhaseComplete:
		return Phase(value)
	default:
		return PhaseTesting
	}
}

// Flags is the explicit configuration value object consumed by the phase
// controller. It is passed in at call time rather than read from process
// state so resolution is reproducible under test.
type Flags struct {
	// StorageEnabled marks the presence of a global storage configuration.
	StorageEnabled bool `yaml:"storage_enabled" env:"MIGRATION_STORAGE_ENABLED,default=false"`
	// Phase is the raw configured phase value; see ParsePhase.
	Phase string `yaml:"phase" env:"MIGRATION_PHASE,default=testing"`
	// DisableOverride forces the disabled phase regardless of other flags.
	DisableOverride bool `yaml:"disable_override" env:"MIGRATION_DISABLE_OVERRIDE,default=false"`
	// TeamOverrides enables or disables offload for individual teams.
	TeamOverrides map[string]bool `yaml:"team_overrides"`
	// AppOverrides enables or disables offload for individual apps and
	// takes precedence over team and global settings.
	AppOverrides map[string]bool `yaml:"app_overrides"`
}

// Decision is the resolved migration state for one scope.
type Decision struct {
	Enabled     bool
	Phase       Phase
	ShouldRead  bool
	ShouldWrite bool
}
