// Package cli provides the interactive Obrasync command-line client.
//
// It wires configuration, the local offline store, the API services, and an
// interactive REPL that supports online/offline operation. Typical flow:
// prompt for credentials, start a background connectivity watcher, and
// execute user commands.
//
// Key features:
//   - Login / Logout with a persisted session
//   - Queue mutations offline: site-log entries, comments, attachments
//   - Inspect the queue: status, pending, failed, retry
//   - Read resources through the offline cache: fetch
//   - Sync with the server, manually or in the background
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// If the local store cannot be opened the app keeps running in disabled
// mode, without offline support.
package cli
