// Package app composes the platform services into a running application.
//
// The layout follows a thin layering:
//
//	internal/app/
//	├── application.go      # service wiring and lifecycle
//	├── domain/             # pure domain models (slot, user, sponsor, ...)
//	├── services/           # business logic per module
//	├── storage/            # store interfaces, memory, postgres, redis
//	├── httpapi/            # REST surface
//	├── metrics/            # Prometheus collectors
//	├── system/             # Service interface and lifecycle Manager
//	└── runtime/            # process wiring: config, db, HTTP server
//
// Business rules live in internal/app/services; this package only wires
// stores to services and registers background work with the lifecycle
// manager.
package app
