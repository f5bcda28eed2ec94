// Package domain defines core data models and interfaces shared across the
// engine. It contains plain types (wire/state) and contracts (interfaces)
// only; behavior lives in the services, protocol, and client packages.
package domain
