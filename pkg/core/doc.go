// Package core defines the shared language of the tmplsync system.
//
// This package contains:
//   - Domain entities (TemplateItem, ImplementationItem, OtherItem, TemplateLink, JobSpec)
//   - Service interfaces (Registry, LinkStore, Store)
//   - Sync history records (SyncRun, ImplementationSync)
//   - Sentinel and typed errors shared across packages
//
// The Golden Rule: pkg/core imports ONLY pkg/params, yaml.v3 and stdlib.
// All other packages depend on core, not the reverse.
package core
