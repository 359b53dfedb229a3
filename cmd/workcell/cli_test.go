package main

import (
	"testing"

	"github.com/alecthomas/kong"
)

func TestRunCmd_Parse(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"run", "-p", "demo", "-v", "create", "hello.txt"})
	if err != nil {
		t.Fatal(err)
	}

	if cli.Run.Project != "demo" {
		t.Errorf("expected project 'demo', got %q", cli.Run.Project)
	}
	if !cli.Run.Verbose {
		t.Error("expected verbose")
	}
	if len(cli.Run.Request) != 2 || cli.Run.Request[0] != "create" {
		t.Errorf("unexpected request words: %v", cli.Run.Request)
	}
}

func TestRunCmd_Defaults(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"-c", "custom.toml", "run", "--plan", "plan.yaml"})
	if err != nil {
		t.Fatal(err)
	}

	if cli.Config != "custom.toml" {
		t.Errorf("expected config 'custom.toml', got %q", cli.Config)
	}
	if cli.Run.Project != "default" {
		t.Errorf("expected default project, got %q", cli.Run.Project)
	}
	if cli.Run.Plan != "plan.yaml" {
		t.Errorf("expected plan 'plan.yaml', got %q", cli.Run.Plan)
	}
}

func TestReplayCmd_Verbose(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"replay", "-vv", "a", "b"})
	if err != nil {
		t.Fatal(err)
	}

	if cli.Replay.Verbose != 2 {
		t.Errorf("expected verbose=2, got %d", cli.Replay.Verbose)
	}
	if len(cli.Replay.Paths) != 2 {
		t.Errorf("expected 2 paths, got %v", cli.Replay.Paths)
	}
	if cli.Replay.Follow || cli.Replay.NoPager {
		t.Error("flags should default to false")
	}
}

func TestReplayCmd_RequiresPath(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := parser.Parse([]string{"replay"}); err == nil {
		t.Error("expected error without a path")
	}
}

func TestProjectsCmd_DefaultList(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	ctx, err := parser.Parse([]string{"projects"})
	if err != nil {
		t.Fatal(err)
	}
	if ctx.Command() != "projects list" {
		t.Errorf("expected 'projects list', got %q", ctx.Command())
	}
}

func TestProjectsCreateCmd(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"projects", "create", "site", "-d", "static site"})
	if err != nil {
		t.Fatal(err)
	}
	if cli.Projects.Create.Name != "site" || cli.Projects.Create.Description != "static site" {
		t.Errorf("unexpected create args: %+v", cli.Projects.Create)
	}
}

func TestFilesCmd_DefaultPath(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"files", "-p", "demo"})
	if err != nil {
		t.Fatal(err)
	}
	if cli.Files.Path != "." {
		t.Errorf("expected '.', got %q", cli.Files.Path)
	}
}

func TestServeCmd_Flags(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"serve", "--addr", "127.0.0.1:9000", "--tailscale"})
	if err != nil {
		t.Fatal(err)
	}
	if cli.Serve.Addr != "127.0.0.1:9000" || !cli.Serve.Tailscale {
		t.Errorf("unexpected serve flags: %+v", cli.Serve)
	}
}
