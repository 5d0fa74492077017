// Package triage provides the business boundary for Warden's vulnerability
// triage system. It defines the Engine (orchestration of identifier
// extraction, enrichment, classification, and result recovery), the Service
// (lifecycle and async dispatch), the Store interface (result retention for
// the session), and domain models.
package triage
