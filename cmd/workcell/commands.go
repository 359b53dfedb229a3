package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/vinayprograms/workcell/internal/config"
	"github.com/vinayprograms/workcell/internal/orchestrator"
	"github.com/vinayprograms/workcell/internal/projects"
	"github.com/vinayprograms/workcell/internal/replay"
	"github.com/vinayprograms/workcell/internal/server"
	"github.com/vinayprograms/workcell/internal/sink"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Run handles a request or a plan file and prints the reply.
func (c *RunCmd) Run(g *Globals) error {
	request := strings.TrimSpace(strings.Join(c.Request, " "))
	if request == "" && c.Plan == "" {
		return errors.New("nothing to do: give a request or --plan")
	}

	cfg, err := loadConfig(g.Config)
	if err != nil {
		return err
	}
	rt := newRuntime(cfg, globalCreds)
	defer rt.cleanup()
	if err := rt.setupLLM(); err != nil {
		return err
	}
	jails, err := rt.jails()
	if err != nil {
		return err
	}

	width := 0
	if isTerminal(os.Stderr) {
		width = 100
	}
	orch, err := rt.orchestrator(jails, sink.NewConsole(os.Stderr, width, c.Verbose))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if c.Plan != "" {
		pf, err := orchestrator.LoadPlanFile(c.Plan)
		if err != nil {
			return err
		}
		report, err := orch.RunPlan(ctx, c.Project, pf.Goal, pf.Steps)
		if err != nil {
			return err
		}
		fmt.Println(report.Summary)
		if report.Failed() > 0 {
			return fmt.Errorf("%d of %d steps failed", report.Failed(), len(report.Steps))
		}
		return nil
	}

	reply, err := orch.Run(ctx, c.Project, request)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

// Run starts the API server and blocks until interrupted.
func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	if c.Tailscale {
		cfg.Server.Tailscale = true
	}

	rt := newRuntime(cfg, globalCreds)
	defer rt.cleanup()
	if err := rt.setupLLM(); err != nil {
		return err
	}
	jails, err := rt.jails()
	if err != nil {
		return err
	}
	store, err := rt.projectStore()
	if err != nil {
		return err
	}
	history, err := projects.OpenHistory(cfg.DataPath())
	if err != nil {
		return err
	}

	hub := sink.NewHub()
	orch, err := rt.orchestrator(jails, hub,
		orchestrator.WithProjects(store),
		orchestrator.WithHistory(history),
	)
	if err != nil {
		return err
	}

	ln, closeListener, err := server.Listen(server.ListenConfig{
		Addr:      cfg.Server.Addr,
		Tailscale: cfg.Server.Tailscale,
		Hostname:  cfg.Server.Hostname,
		StateDir:  config.ExpandHome(cfg.Server.StateDir),
		AuthKey:   cfg.AuthKey(),
	})
	if err != nil {
		return err
	}
	defer closeListener()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(os.Stderr, "workcell %s listening on %s\n", version, ln.Addr())
	return server.New(server.Config{
		Orchestrator:   orch,
		Projects:       store,
		History:        history,
		Jails:          jails,
		Hub:            hub,
		CommandTimeout: cfg.CommandTimeout(),
	}).Serve(ctx, ln)
}

// Run replays pipelines, through the pager when stdout is a terminal.
func (c *ReplayCmd) Run() error {
	r := replay.New(os.Stdout, c.Verbose)
	interactive := !c.NoPager && isTerminal(os.Stdout)

	if c.Follow {
		if len(c.Paths) != 1 {
			return errors.New("--follow takes exactly one pipeline")
		}
		if !interactive {
			return errors.New("--follow needs a terminal")
		}
		return r.ReplayFileLive(c.Paths[0])
	}
	if interactive && len(c.Paths) == 1 {
		return r.ReplayFileInteractive(c.Paths[0])
	}
	return r.ReplayFiles(c.Paths)
}

// Run lists projects.
func (c *ProjectsListCmd) Run(g *Globals) error {
	store, err := openStore(g)
	if err != nil {
		return err
	}
	list := store.List(c.All)
	if len(list) == 0 {
		fmt.Println("no projects")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tUPDATED")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Status, p.UpdatedAt)
	}
	return w.Flush()
}

// Run creates a project and its workspace.
func (c *ProjectsCreateCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		return err
	}
	rt := newRuntime(cfg, globalCreds)
	store, err := rt.projectStore()
	if err != nil {
		return err
	}
	jails, err := rt.jails()
	if err != nil {
		return err
	}
	p, err := store.Create(c.Name, c.Description)
	if err != nil {
		return err
	}
	if _, err := jails.GetOrCreate(p.ID); err != nil {
		return err
	}
	fmt.Println(p.ID)
	return nil
}

// Run soft-deletes a project and removes its workspace.
func (c *ProjectsDeleteCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		return err
	}
	rt := newRuntime(cfg, globalCreds)
	store, err := rt.projectStore()
	if err != nil {
		return err
	}
	if err := store.Delete(c.ID); err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			return fmt.Errorf("project %s not found", c.ID)
		}
		return err
	}
	jails, err := rt.jails()
	if err != nil {
		return err
	}
	if err := jails.Delete(c.ID); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", c.ID)
	return nil
}

func openStore(g *Globals) (*projects.Store, error) {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		return nil, err
	}
	return newRuntime(cfg, globalCreds).projectStore()
}

// Run lists a workspace directory.
func (c *FilesCmd) Run(g *Globals) error {
	return c.list(g, os.Stdout)
}

func (c *FilesCmd) list(g *Globals, out io.Writer) error {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		return err
	}
	jails, err := newRuntime(cfg, globalCreds).jails()
	if err != nil {
		return err
	}
	ids, err := jails.ListAll()
	if err != nil {
		return err
	}
	if !slices.Contains(ids, c.Project) {
		return fmt.Errorf("no workspace for project %s", c.Project)
	}
	j, err := jails.GetOrCreate(c.Project)
	if err != nil {
		return err
	}
	for _, f := range j.List(c.Path) {
		if f.IsDir {
			fmt.Fprintf(out, "%s/\n", f.Path)
		} else {
			fmt.Fprintf(out, "%s\t%dB\n", f.Path, f.Size)
		}
	}
	return nil
}

// Run prints version information.
func (c *VersionCmd) Run() error {
	fmt.Printf("workcell version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}
