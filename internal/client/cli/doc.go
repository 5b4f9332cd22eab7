// Package cli implements the scribe command-line client.
//
// Commands:
//   - record: capture a media stream into a crash-safe backup and upload it
//   - backups list|export|upload|discard|prune: recover interrupted sessions
//   - save: post a transcript with selected fields encrypted client-side
//   - ping: check backend connectivity
//
// Configuration is resolved once per invocation from defaults, the
// environment, an optional config file and finally flags. See NewRootCommand.
package cli
