// Package runbox compiles and runs untrusted source submissions inside a
// workspace provider and reports what happened: captured output, an exit
// code or a terminating signal, and, when a test fixture drives the run,
// the parsed test report.
//
// Basic usage:
//
//	result, err := runbox.Run(ctx, &executor.RunRequest{
//		Language: "c",
//		Code:     `int main(void) { return 10; }`,
//	})
//
//	// Reuse one runner for many requests
//	r, err := runbox.New(runbox.WithProvider("docker"))
//	defer r.Close()
//
//	result, err = r.Run(ctx, req)
package runbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/happyhackingspace/runbox/internal/factory"
	"github.com/happyhackingspace/runbox/internal/provider"
	"github.com/happyhackingspace/runbox/internal/toolchain"
	"github.com/happyhackingspace/runbox/pkg/assemble"
	"github.com/happyhackingspace/runbox/pkg/event"
	"github.com/happyhackingspace/runbox/pkg/executor"
	"github.com/happyhackingspace/runbox/pkg/fs"
	"github.com/happyhackingspace/runbox/pkg/langdetect"
	"github.com/happyhackingspace/runbox/pkg/protocol"
)

// Runner executes run requests. It is safe for concurrent use; every run
// gets its own workspace.
type Runner interface {
	// Run executes req and blocks until it completes. Compile failures and
	// crashes are reported in the result; the error is reserved for
	// requests that could not be attempted.
	Run(ctx context.Context, req *executor.RunRequest) (*executor.ExecutionResult, error)

	// RunStream is Run with live output and protocol events delivered to
	// handler.
	RunStream(ctx context.Context, req *executor.RunRequest, handler executor.StreamHandler) (*executor.ExecutionResult, error)

	// RunAsync starts req and returns immediately. The channel receives
	// exactly one value and is then closed.
	RunAsync(ctx context.Context, req *executor.RunRequest) (<-chan AsyncResult, error)

	// Subscribe registers an event callback.
	Subscribe(eventType event.EventType, handler event.EventHandler) (unsubscribe func())

	// SubscribeAll registers a callback for every event.
	SubscribeAll(handler event.EventHandler) (unsubscribe func())

	// Provider returns the name of the provider.
	Provider() string

	// Languages returns the languages with a toolchain.
	Languages() []string

	// Close waits for in-flight runs and releases the provider.
	Close() error
}

// AsyncResult is delivered by RunAsync.
type AsyncResult struct {
	Result *executor.ExecutionResult
	Err    error
}

// runner is the concrete implementation of the Runner interface.
type runner struct {
	config     *Config
	provider   provider.Provider
	toolchains *toolchain.Registry
	detector   *langdetect.Detector
	bus        *event.Bus
	log        Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

const (
	openTimeout = 30 * time.Second
	stopTimeout = 30 * time.Second
)

// New creates a runner with the given options.
func New(opts ...Option) (Runner, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return newRunner(cfg)
}

func newRunner(cfg *Config) (*runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, NewError("create", cfg.Provider, "", err)
	}

	toolchains := toolchain.Builtin()
	for language, p := range cfg.Toolchains {
		if err := toolchains.Configure(language, p.toProfile()); err != nil {
			return nil, NewError("create", cfg.Provider, "", fmt.Errorf("%w: toolchain %q: %w", ErrInvalidConfiguration, language, err))
		}
	}

	providerCfg, err := cfg.providerConfig()
	if err != nil {
		return nil, NewError("create", cfg.Provider, "", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	p, err := factory.Open(ctx, cfg.Provider, providerCfg)
	if err != nil {
		if !errors.Is(err, factory.ErrNotRegistered) {
			err = fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
		return nil, NewError("create", cfg.Provider, "", translate(err))
	}

	log := cfg.Logger
	if log == nil {
		log = NopLogger{}
	}

	r := &runner{
		config:     cfg,
		provider:   p,
		toolchains: toolchains,
		detector:   langdetect.New(),
		bus:        event.NewBus(),
		log:        log,
	}

	// Register global event handler if provided
	if cfg.EventHandler != nil {
		r.bus.SubscribeAll(cfg.EventHandler)
	}

	log.Debug("runner created", "provider", cfg.Provider, "timeout", cfg.DefaultTimeout)
	return r, nil
}

// Provider returns the name of the provider.
func (r *runner) Provider() string {
	return r.config.Provider
}

// Languages returns the languages with a toolchain.
func (r *runner) Languages() []string {
	return r.toolchains.Languages()
}

// Subscribe registers an event callback.
func (r *runner) Subscribe(eventType event.EventType, handler event.EventHandler) func() {
	return r.bus.Subscribe(eventType, handler)
}

// SubscribeAll registers a callback for every event.
func (r *runner) SubscribeAll(handler event.EventHandler) func() {
	return r.bus.SubscribeAll(handler)
}

// acquire registers an in-flight run. The caller must call r.wg.Done.
func (r *runner) acquire() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRunnerClosed
	}
	r.wg.Add(1)
	return nil
}

// Run executes req and blocks until it completes.
func (r *runner) Run(ctx context.Context, req *executor.RunRequest) (*executor.ExecutionResult, error) {
	if err := r.acquire(); err != nil {
		return nil, NewError("run", r.Provider(), "", err)
	}
	defer r.wg.Done()
	return r.execute(ctx, "run", req, nil)
}

// RunStream executes req, delivering live events to handler.
func (r *runner) RunStream(ctx context.Context, req *executor.RunRequest, handler executor.StreamHandler) (*executor.ExecutionResult, error) {
	if err := r.acquire(); err != nil {
		return nil, NewError("runStream", r.Provider(), "", err)
	}
	defer r.wg.Done()
	return r.execute(ctx, "runStream", req, handler)
}

// RunAsync starts req and returns immediately.
func (r *runner) RunAsync(ctx context.Context, req *executor.RunRequest) (<-chan AsyncResult, error) {
	if err := r.acquire(); err != nil {
		return nil, NewError("runAsync", r.Provider(), "", err)
	}

	results := make(chan AsyncResult, 1)
	go func() {
		defer r.wg.Done()
		defer close(results)

		result, err := r.execute(ctx, "runAsync", req, nil)
		results <- AsyncResult{Result: result, Err: err}
	}()

	return results, nil
}

// Close waits for in-flight runs, then releases the event bus and the
// provider. Later calls fail with ErrRunnerClosed.
func (r *runner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.wg.Wait()
	r.bus.Close()

	if err := r.provider.Close(); err != nil {
		r.log.Error("provider close failed", "provider", r.Provider(), "error", err)
		return NewError("close", r.Provider(), "", err)
	}
	return nil
}

func (r *runner) emit(eventType event.EventType, runID string, data any) {
	r.bus.Emit(event.NewEvent(eventType, runID, data))
}

// resolveLanguage picks the request language, a detected one, or the
// configured default, in that order.
func (r *runner) resolveLanguage(req *executor.RunRequest) (string, error) {
	if strings.TrimSpace(req.Language) != "" {
		return req.Language, nil
	}
	if r.config.AutoDetectLanguage {
		var parts []string
		for _, src := range []string{req.SetupHeader, req.Setup.Code, req.Code, req.Fixture} {
			if strings.TrimSpace(src) != "" {
				parts = append(parts, src)
			}
		}
		if res := r.detector.Detect(strings.Join(parts, "\n"), req.Filename); res.Language != "" {
			return res.Language, nil
		}
	}
	if r.config.DefaultLanguage != "" {
		return r.config.DefaultLanguage, nil
	}
	return "", ErrLanguageDetectionFailed
}

// plan validates req and turns it into a unit and its toolchain. Nothing
// has been spawned when it fails.
func (r *runner) plan(req *executor.RunRequest) (*assemble.Unit, toolchain.Toolchain, error) {
	if req == nil || (!req.HasCode() && !req.HasFixture()) {
		return nil, nil, ErrNoProgram
	}

	language, err := r.resolveLanguage(req)
	if err != nil {
		return nil, nil, err
	}
	tc, err := r.toolchains.Get(language)
	if err != nil {
		return nil, nil, translate(err)
	}
	if req.HasFixture() && !tc.SupportsFixtures() {
		return nil, nil, fmt.Errorf("%w: %s", ErrFixtureNotSupported, tc.Name())
	}

	resolved := *req
	resolved.Language = tc.Name()
	unit, err := assemble.Assemble(&resolved, tc.Dialect())
	if err != nil {
		return nil, nil, translate(err)
	}
	return unit, tc, nil
}

func (r *runner) execute(ctx context.Context, op string, req *executor.RunRequest, handler executor.StreamHandler) (*executor.ExecutionResult, error) {
	runID := uuid.NewString()
	stream := func(ev *executor.StreamEvent) {
		if handler != nil {
			ev.Timestamp = time.Now()
			_ = handler(ev)
		}
	}
	fail := func(err error) (*executor.ExecutionResult, error) {
		r.log.Error("run failed", "run_id", runID, "provider", r.Provider(), "error", err)
		r.bus.Emit(event.NewErrorEvent(event.EventRunError, runID, err))
		stream(&executor.StreamEvent{Type: executor.StreamError, Error: err})
		return nil, NewError(op, r.Provider(), runID, err)
	}

	unit, tc, err := r.plan(req)
	if err != nil {
		return fail(err)
	}

	if r.config.DefaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.DefaultTimeout)
		defer cancel()
	}

	inst, err := r.provider.Create(ctx, &provider.CreateOptions{
		ID:             runID,
		Language:       unit.Language,
		Image:          r.config.Image,
		Resources:      r.config.Resources.ToProviderConfig(),
		Env:            r.config.Env,
		Timeout:        r.config.DefaultTimeout,
		Labels:         map[string]string{"runbox.language": unit.Language},
		InternetAccess: r.config.InternetAccess,
	})
	if err != nil {
		return fail(fmt.Errorf("create workspace: %w", err))
	}
	r.emit(event.EventWorkspaceCreated, runID, nil)
	defer r.stop(runID, inst)

	build, err := tc.Prepare(unit, inst.WorkDir())
	if err != nil {
		return fail(err)
	}
	if err := fs.WriteFiles(ctx, inst.FileSystem(), build.Files); err != nil {
		return fail(fmt.Errorf("write sources: %w", err))
	}

	r.log.Info("run started", "run_id", runID, "language", unit.Language, "mode", string(unit.Mode), "provider", r.Provider())
	r.emit(event.EventRunStarted, runID, &event.RunStartedData{
		Language: unit.Language,
		Mode:     string(unit.Mode),
		Provider: r.Provider(),
		Files:    unit.Names(),
	})
	stream(&executor.StreamEvent{Type: executor.StreamStart})

	result := &executor.ExecutionResult{RunID: runID, Language: unit.Language}

	if len(build.Compile) > 0 {
		compile, err := r.compile(ctx, runID, inst, build)
		if err != nil {
			return fail(err)
		}
		result.Compile = compile
		stream(&executor.StreamEvent{Type: executor.StreamCompile, Data: compile.Output, Result: result})

		if !compile.OK {
			result.Stderr = compile.Output
			result.Duration = compile.Duration
			result.Canceled = ctx.Err() != nil
			r.log.Info("compile failed", "run_id", runID, "language", unit.Language, "command", compile.Command)
			r.finish(runID, result)
			stream(&executor.StreamEvent{Type: executor.StreamComplete, Result: result})
			return result, nil
		}
	}

	command := executor.Command{
		Args:           build.Run,
		Env:            build.Env,
		MaxOutputBytes: r.config.MaxOutputBytes,
	}
	if unit.Mode == assemble.ModeProgram {
		command.Stdin = req.Stdin
	}

	var live *liveOutput
	execHandler := executor.StreamHandler(nil)
	if handler != nil || r.bus.SubscriberCount() > 0 {
		live = newLiveOutput(r, runID, unit.Mode, handler)
		execHandler = live.handle
	}

	res, err := inst.Exec(ctx, command, execHandler)
	if live != nil {
		live.flush()
	}
	switch {
	case err != nil && ctx.Err() != nil:
		result.SetSignal("SIGKILL")
		result.Canceled = true
	case err != nil:
		return fail(fmt.Errorf("run: %w", err))
	default:
		result.Stdout = res.Stdout
		result.Stderr = res.Stderr
		result.ExitCode = res.ExitCode
		result.ExitSignal = res.ExitSignal
		result.Duration = res.Duration
		result.Truncated = res.Truncated
		result.Canceled = res.Canceled
		result.Metadata = res.Metadata
	}

	if unit.Mode == assemble.ModeFixture {
		result.Tests = protocol.Parse(result.Stdout)
	}

	r.finish(runID, result)
	stream(&executor.StreamEvent{Type: executor.StreamComplete, Result: result})

	if live != nil && live.err != nil {
		return result, NewError(op, r.Provider(), runID, fmt.Errorf("stream handler: %w", live.err))
	}
	return result, nil
}

// compile runs the compile steps in order, stopping at the first that does
// not exit with status 0.
func (r *runner) compile(ctx context.Context, runID string, inst provider.Instance, build *toolchain.Build) (*executor.CompileResult, error) {
	out := &executor.CompileResult{OK: true}
	var output strings.Builder
	start := time.Now()

	for _, args := range build.Compile {
		r.emit(event.EventCompileStarted, runID, &event.CompileData{Command: args})
		out.Command = args

		res, err := inst.Exec(ctx, executor.Command{
			Args:           args,
			Env:            build.Env,
			MaxOutputBytes: r.config.MaxOutputBytes,
		}, nil)
		if err != nil {
			if ctx.Err() == nil {
				return nil, fmt.Errorf("compile: %w", err)
			}
			killed := "SIGKILL"
			out.OK = false
			out.ExitCode, out.ExitSignal = nil, &killed
			break
		}

		output.WriteString(res.Stdout)
		output.WriteString(res.Stderr)
		out.ExitCode, out.ExitSignal = res.ExitCode, res.ExitSignal
		if code, ok := res.Code(); !ok || code != 0 {
			out.OK = false
			break
		}
	}

	out.Output = output.String()
	out.Duration = time.Since(start)

	data := &event.CompileData{Command: out.Command, Output: out.Output, Duration: out.Duration}
	if out.OK {
		r.emit(event.EventCompileComplete, runID, data)
	} else {
		r.emit(event.EventCompileFailed, runID, data)
	}
	return out, nil
}

func (r *runner) finish(runID string, result *executor.ExecutionResult) {
	outcome := result.Outcome()
	r.log.Info("run complete",
		"run_id", runID,
		"outcome", string(outcome),
		"duration", result.Duration,
		"canceled", result.Canceled,
	)

	eventType := event.EventRunComplete
	if result.Canceled {
		eventType = event.EventRunCanceled
	}
	r.emit(eventType, runID, &event.RunCompleteData{
		Outcome:    string(outcome),
		ExitCode:   result.ExitCode,
		ExitSignal: result.ExitSignal,
		Duration:   result.Duration,
	})
}

func (r *runner) stop(runID string, inst provider.Instance) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := inst.Stop(ctx); err != nil {
		r.log.Warn("workspace stop failed", "run_id", runID, "provider", r.Provider(), "error", err)
		return
	}
	r.emit(event.EventWorkspaceDestroyed, runID, nil)
}

// Run is a convenience function for one-shot execution.
// Creates a runner, runs req, and closes the runner.
func Run(ctx context.Context, req *executor.RunRequest, opts ...Option) (*executor.ExecutionResult, error) {
	r, err := New(opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.Run(ctx, req)
}

// RunStream is a convenience function for streaming execution.
func RunStream(ctx context.Context, req *executor.RunRequest, handler executor.StreamHandler, opts ...Option) (*executor.ExecutionResult, error) {
	r, err := New(opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.RunStream(ctx, req, handler)
}

// ListProviders returns available provider names.
func ListProviders() []string {
	return factory.Available()
}

// ProviderCapabilities returns what a provider supports with its default
// configuration.
func ProviderCapabilities(providerName string) (provider.Capabilities, error) {
	caps, err := factory.NewDefaultFactory().Capabilities(providerName, nil)
	if err != nil {
		return provider.Capabilities{}, translate(err)
	}
	return caps, nil
}

// DetectLanguage detects the programming language of code.
func DetectLanguage(code, filename string) *langdetect.DetectResult {
	return langdetect.New().Detect(code, filename)
}

// SupportedLanguages returns the languages with a built-in toolchain.
func SupportedLanguages() []string {
	return toolchain.Builtin().Languages()
}
