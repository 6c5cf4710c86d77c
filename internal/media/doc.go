// Package media holds the domain model shared across the pipeline: source
// files, catalogue metadata, detection and match results, the Plex naming
// rules, and the filesystem enumeration helpers that respect reserved
// working directories.
package media
