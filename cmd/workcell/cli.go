// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Run      RunCmd      `cmd:"" help:"Run a request or a plan file in a project workspace"`
	Serve    ServeCmd    `cmd:"" help:"Serve the HTTP and WebSocket API"`
	Replay   ReplayCmd   `cmd:"" help:"Replay a session pipeline"`
	Projects ProjectsCmd `cmd:"" help:"Manage projects"`
	Files    FilesCmd    `cmd:"" help:"List files in a project workspace"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

// Globals are flags shared by every command.
type Globals struct {
	Config string `short:"c" help:"Config file path (default ./workcell.toml)"`
}

// RunCmd handles one request, or executes a YAML plan.
type RunCmd struct {
	Request []string `arg:"" optional:"" help:"Request text"`
	Project string   `short:"p" default:"default" help:"Project id"`
	Plan    string   `help:"YAML plan file to execute instead of planning"`
	Verbose bool     `short:"v" help:"Show tool calls and results"`
}

// ServeCmd runs the API server.
type ServeCmd struct {
	Addr      string `help:"Listen address (overrides config)"`
	Tailscale bool   `help:"Listen on the tailnet (overrides config)"`
}

// ReplayCmd replays pipelines for analysis.
type ReplayCmd struct {
	Paths   []string `arg:"" help:"Pipeline file(s) or workspace directories"`
	Verbose int      `short:"v" type:"counter" help:"Verbosity level (-v, -vv)"`
	NoPager bool     `help:"Disable pager for output"`
	Follow  bool     `short:"f" help:"Re-render as the pipeline grows"`
}

// ProjectsCmd groups project management.
type ProjectsCmd struct {
	List   ProjectsListCmd   `cmd:"" default:"1" help:"List projects"`
	Create ProjectsCreateCmd `cmd:"" help:"Create a project"`
	Delete ProjectsDeleteCmd `cmd:"" help:"Delete a project and its workspace"`
}

// ProjectsListCmd lists projects.
type ProjectsListCmd struct {
	All bool `short:"a" help:"Include deleted projects"`
}

// ProjectsCreateCmd creates a project.
type ProjectsCreateCmd struct {
	Name        string `arg:"" help:"Project name"`
	Description string `short:"d" help:"Project description"`
}

// ProjectsDeleteCmd deletes a project.
type ProjectsDeleteCmd struct {
	ID string `arg:"" help:"Project id"`
}

// FilesCmd lists workspace files.
type FilesCmd struct {
	Project string `short:"p" default:"default" help:"Project id"`
	Path    string `arg:"" optional:"" default:"." help:"Directory inside the workspace"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
