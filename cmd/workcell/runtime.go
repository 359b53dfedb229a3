package main

import (
	"fmt"
	"os"

	"github.com/vinayprograms/agentkit/credentials"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/telemetry"

	"github.com/vinayprograms/workcell/internal/config"
	"github.com/vinayprograms/workcell/internal/jail"
	"github.com/vinayprograms/workcell/internal/orchestrator"
	"github.com/vinayprograms/workcell/internal/projects"
	"github.com/vinayprograms/workcell/internal/sink"
)

// runtime builds the components a command needs from configuration.
type runtime struct {
	cfg   *config.Config
	creds *credentials.Credentials

	provider llm.Provider
	smallLLM llm.Provider
	telem    telemetry.Exporter
	nats     *sink.NATS

	closers []func()
}

// loadConfig reads the --config file or ./workcell.toml.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadDefault()
}

func newRuntime(cfg *config.Config, creds *credentials.Credentials) *runtime {
	return &runtime{cfg: cfg, creds: creds}
}

// setupLLM creates the main and small providers and the telemetry exporter.
func (rt *runtime) setupLLM() error {
	if err := rt.createProvider(); err != nil {
		return err
	}
	rt.createSmallLLM()
	return rt.setupTelemetry()
}

func (rt *runtime) apiKey(provider string, section config.LLMConfig) string {
	if rt.creds != nil {
		if key := rt.creds.GetAPIKey(provider); key != "" {
			return key
		}
	}
	return section.APIKey()
}

// createProvider creates the main LLM provider.
func (rt *runtime) createProvider() error {
	provider := rt.cfg.LLM.Provider
	if provider == "" {
		provider = llm.InferProviderFromModel(rt.cfg.LLM.Model)
	}
	if provider == "" && rt.cfg.LLM.Model == "" {
		return fmt.Errorf("LLM model not configured")
	}

	var err error
	rt.provider, err = llm.NewProvider(llm.ProviderConfig{
		Provider:    provider,
		Model:       rt.cfg.LLM.Model,
		APIKey:      rt.apiKey(provider, rt.cfg.LLM),
		MaxTokens:   rt.cfg.LLM.MaxTokens,
		BaseURL:     rt.cfg.LLM.BaseURL,
		Thinking:    llm.ThinkingConfig{Level: llm.ThinkingLevel(rt.cfg.LLM.Thinking)},
		RetryConfig: parseRetryConfig(rt.cfg.LLM.MaxRetries, rt.cfg.LLM.RetryBackoff),
	})
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	return nil
}

// createSmallLLM creates the optional model used for classification and
// validation. Failure leaves it unset.
func (rt *runtime) createSmallLLM() {
	if rt.cfg.SmallLLM.Model == "" {
		return
	}
	provider := rt.cfg.SmallLLM.Provider
	if provider == "" {
		provider = llm.InferProviderFromModel(rt.cfg.SmallLLM.Model)
	}
	p, err := llm.NewProvider(llm.ProviderConfig{
		Provider:  provider,
		Model:     rt.cfg.SmallLLM.Model,
		APIKey:    rt.apiKey(provider, rt.cfg.SmallLLM),
		MaxTokens: rt.cfg.SmallLLM.MaxTokens,
		BaseURL:   rt.cfg.SmallLLM.BaseURL,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: small LLM disabled: %v\n", err)
		return
	}
	rt.smallLLM = p
}

// setupTelemetry creates the telemetry exporter.
func (rt *runtime) setupTelemetry() error {
	var err error
	if rt.cfg.Telemetry.Enabled {
		rt.telem, err = telemetry.NewExporter(rt.cfg.Telemetry.Protocol, rt.cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("creating telemetry exporter: %w", err)
		}
	} else {
		rt.telem = telemetry.NewNoopExporter()
	}
	rt.addCloser(func() { rt.telem.Close() })
	return nil
}

// transport returns the NATS sink when configured, or nil.
func (rt *runtime) transport() (sink.Sink, error) {
	if rt.cfg.Transport.NATSURL == "" {
		return nil, nil
	}
	if rt.nats == nil {
		n, err := sink.DialNATS(rt.cfg.Transport.NATSURL, rt.cfg.Transport.Subject)
		if err != nil {
			return nil, err
		}
		rt.nats = n
		rt.addCloser(func() { n.Close() })
	}
	return rt.nats, nil
}

// jails creates the workspace manager with the configured confinement.
func (rt *runtime) jails() (*jail.Manager, error) {
	return jail.NewManager(rt.cfg.WorkspacesPath(),
		jail.WithPathPolicy(jail.PathPolicy(rt.cfg.Jail.PathPolicy)),
		jail.WithCommandPolicy(jail.NewCommandPolicy(rt.cfg.Jail.Allow, rt.cfg.Jail.Deny)),
		jail.WithDefaultTimeout(rt.cfg.CommandTimeout()),
	)
}

func (rt *runtime) projectStore() (*projects.Store, error) {
	return projects.Open(rt.cfg.DataPath())
}

// orchestrator wires the engine to out plus the configured transport.
func (rt *runtime) orchestrator(jails *jail.Manager, out sink.Sink, opts ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	nats, err := rt.transport()
	if err != nil {
		return nil, err
	}
	base := []orchestrator.Option{
		orchestrator.WithSink(sink.Multi{out, nats}),
		orchestrator.WithThreshold(rt.cfg.Validation.Threshold),
		orchestrator.WithMaxIterations(rt.cfg.Executor.MaxIterations),
		orchestrator.WithCommandTimeout(rt.cfg.CommandTimeout()),
	}
	if rt.smallLLM != nil {
		base = append(base, orchestrator.WithFastGateway(rt.smallLLM))
	}
	return orchestrator.New(rt.provider, jails, append(base, opts...)...), nil
}

// cleanup runs all registered cleanup functions.
func (rt *runtime) cleanup() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// addCloser registers a cleanup function.
func (rt *runtime) addCloser(fn func()) {
	rt.closers = append(rt.closers, fn)
}
