// Package panel serves the browser wall panel as an embedded asset.
//
// The panel is a single page that connects to the API WebSocket with a
// panel token, draws the render events it receives and sends widget
// presses back. It is embedded with go:embed so the binary has no runtime
// file dependency; api.panel_dir serves a working copy from disk instead.
//
// Unknown paths fall back to index.html.
package panel
