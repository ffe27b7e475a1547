// Package dashboard provides the embedded web UI assets for INS Monitor.
//
// The dashboard plots every device's recent track, shows the latest
// attitude and GNSS state per device, and follows live updates over
// Server-Sent Events. It is compiled into the binary with Go's embed
// directive.
//
// The embedded assets are served by the server package at the root path ("/").
// Users of the insmonitor library should not need to interact with this
// package directly.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Map dashboard with inline CSS and JavaScript
//
// Assets is used by the server package to serve the dashboard. The embed
// directive includes all files in the assets directory at compile time.
//
//go:embed assets/*
var Assets embed.FS
