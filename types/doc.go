// Package types defines the core data model shared by every coordflow
// package: tasks, agent descriptors, coordination requests and results,
// status enumerations, and the structured error model.
//
// The types package is the lowest-level package with no internal
// dependencies, so capability interfaces consumed across package
// boundaries (Executor, HealthReporter, JointSessionRunner) live here
// to avoid circular imports.
package types
