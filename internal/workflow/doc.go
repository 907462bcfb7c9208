// Package workflow defines the Temporal workflow that prepares an SFT
// manifest on a worker.
//
// The workflow first validates the configuration in a short activity, so a
// bad config or a failing processor self-test is reported before any data
// is read. Only then does it start the long-running activity that streams
// records and writes the manifest.
//
// Workflow code stays deterministic: file access, randomness and clocks
// live in the activities.
package workflow
