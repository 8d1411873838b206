// Package api defines the wire types of the daemon's control API and
// the conversions from internal models. Both the HTTP server and the
// CLI client speak these shapes.
package api
