// Package integration holds end-to-end tests that load real data files and
// drive every query surface against the same dataset.
package integration
