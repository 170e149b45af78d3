// Package internal documents the indexes server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - domain: index metadata, quotations, and the registry queries
// - calendar: business-day arithmetic over the holiday set
// - provider: external data source connectors (Quantum)
// - collector: collection run orchestration and synthetic base seeding
// - storage: Postgres repositories and migrations
// - jobs: the scheduled daily collection via River
// - config, metrics: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
