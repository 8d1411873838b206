// Package viewerrpc implements the viewer capabilities over JSON-RPC
// on a Unix domain socket. The viewer side runs a small adapter that
// exposes the "Viewer" service; this package is the daemon-side client.
package viewerrpc
