package deploy

import "fmt"

// ConfigurationError means a required credential is absent. It is raised
// before any side effect is attempted.
type ConfigurationError struct {
	Missing string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration: %s", e.Missing)
}

// BuildError wraps a failed build attempt. No upload occurs after one.
type BuildError struct {
	AppID string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed for app %s: %v", e.AppID, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// UploadError wraps a failed asset or bundle upload, carrying the
// transport failure detail.
type UploadError struct {
	Kind string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s upload failed: %v", e.Kind, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
