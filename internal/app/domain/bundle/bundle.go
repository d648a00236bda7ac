// Package bundle defines the deployable worker bundle: a single script
// embedding an app's code files and the URL map for its offloaded assets.
package bundle

import (
	"fmt"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/domain/build"
)

// MaxScriptBytes is the hard ceiling on a generated worker script. Bundles
// over this size are rejected before any upload is attempted.
const MaxScriptBytes = 10 * 1024 * 1024

// WorkerBundle is the generated deployable unit for one environment. It is
// ephemeral and regenerated on every deploy.
type WorkerBundle struct {
	Environment app.Environment
	Script      string
	CodeFiles   build.Artifact
	AssetURLs   map[string]string
	Size        int
}

// SizeMB returns the script size in megabytes.
func (b *WorkerBundle) SizeMB() float64 {
	return float64(b.Size) / (1024 * 1024)
}

// SizeLimitError reports a bundle that exceeded MaxScriptBytes. The message
// carries the computed size in MB.
type SizeLimitError struct {
	Size int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("worker bundle is %.2f MB, exceeding the %d MB limit", float64(e.Size)/(1024*1024), MaxScriptBytes/(1024*1024))
}

// UnitName returns the deterministic deployed-unit name for an app and
// environment. Re-deploys overwrite the same unit; there is no versioning.
func UnitName(env app.Environment, appID string) string {
	return fmt.Sprintf("%s-%s", env, appID)
}
