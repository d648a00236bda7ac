// Package app provides the application composition layer for the
// deployment platform.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── app/            # App record, deployment status, pending RLS
//	│   ├── build/          # Build artifact classification
//	│   ├── bundle/         # Worker bundle and size limit
//	│   ├── schema/         # Table metadata and physical naming
//	│   └── migration/      # Migration phase and flag value object
//	├── services/           # Business logic
//	│   ├── apps/           # App record CRUD
//	│   ├── assets/         # Asset offload uploader
//	│   ├── bundle/         # Worker bundle generator
//	│   ├── deploy/         # Deployment orchestrator
//	│   ├── migration/      # Migration phase controller
//	│   └── schema/         # Schema provisioner, detectors, RLS replay
//	├── storage/            # Store interfaces, memory, postgres, rest, hybrid
//	├── httpapi/            # HTTP API handlers and routing
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus collectors
//
// The app package composes services with their dependencies; business
// rules live under services/, persistence under storage/, and transport
// under httpapi/. Domain models carry no business logic.
package app
