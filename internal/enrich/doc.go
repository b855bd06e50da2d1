// Package enrich defines the core types, collaborator interfaces, and error
// taxonomy shared by the record enrichment pipeline.
package enrich
