package models

// LaunchSpec is everything a Launcher needs to start the application under test
type LaunchSpec struct {
	Kind        string         // "electron", "browser", "command" or "sim"
	Binary      string         // Executable path
	Args        []string       // Extra arguments appended after the harness arguments
	URL         string         // Start page for the browser kind
	Workspace   string         // Directory opened by the application
	UserDataDir string         // Isolated profile directory
	DebugHost   string         // DevTools listen host
	DebugPort   int            // DevTools port, 0 picks a free one
	Headless    bool
	Env         []string       // Extra KEY=VALUE entries
	Settings    map[string]any // User settings written before launch
}
