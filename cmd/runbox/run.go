package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/happyhackingspace/runbox/pkg/executor"
)

type runOptions struct {
	code        string
	lang        string
	setup       string
	setupFile   string
	noSetup     bool
	header      string
	headerFile  string
	fixture     string
	fixtureFile string
	request     string
	stdin       string
	timeout     time.Duration
	format      string
	stream      bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Compile and run a program or fixture",
		Long: `Build and run a submission in a fresh workspace.

The program can be provided via:
  - File argument: runbox run main.c
  - Inline flag:   runbox run -l python -c 'print(1+1)'
  - Stdin:         echo 'print(1+1)' | runbox run -l python
  - Request file:  runbox run --request submission.yaml

With text output the exit status of runbox is the exit status of the
program. json and yaml output always exit 0 once the run completed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, root, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.code, "code", "c", "", "Program source")
	f.StringVarP(&opts.lang, "lang", "l", "", "Language: go, c, cpp, objc, python (default: auto-detect)")
	f.StringVar(&opts.setup, "setup", "", "Setup code compiled alongside the program")
	f.StringVar(&opts.setupFile, "setup-file", "", "Read setup code from a file")
	f.BoolVar(&opts.noSetup, "no-setup", false, "Disable setup code and header")
	f.StringVar(&opts.header, "header", "", "Setup header declarations")
	f.StringVar(&opts.headerFile, "header-file", "", "Read the setup header from a file")
	f.StringVar(&opts.fixture, "fixture", "", "Test fixture source")
	f.StringVar(&opts.fixtureFile, "fixture-file", "", "Read the test fixture from a file")
	f.StringVar(&opts.request, "request", "", "Read the whole request from a JSON or YAML file")
	f.StringVar(&opts.stdin, "stdin", "", "Data piped to the program")
	f.DurationVar(&opts.timeout, "timeout", 0, "Run timeout (default from config, 30s)")
	f.StringVarP(&opts.format, "format", "o", "text", "Output format: text, json, yaml")
	f.BoolVar(&opts.stream, "stream", false, "Print output while the program runs (text format)")

	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, root *rootOptions, args []string) error {
	switch o.format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q: use text, json or yaml", o.format)
	}

	req, err := o.buildRequest(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if o.timeout > 0 {
		cfg.Timeout = o.timeout
	}

	r, closeRunner, err := newRunner(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeRunner()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	streaming := o.stream && o.format == "text"

	var result *executor.ExecutionResult
	if streaming {
		result, err = r.RunStream(ctx, req, executor.WriterHandler(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	} else {
		result, err = r.Run(ctx, req)
	}
	if result == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}

	switch o.format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	}

	return printText(cmd.OutOrStdout(), cmd.ErrOrStderr(), result, !streaming)
}

func (o *runOptions) buildRequest(cmd *cobra.Command, args []string) (*executor.RunRequest, error) {
	var req *executor.RunRequest

	if o.request != "" {
		data, err := os.ReadFile(o.request)
		if err != nil {
			return nil, fmt.Errorf("reading request: %w", err)
		}
		if req, err = executor.DecodeRequest(data); err != nil {
			return nil, err
		}
	} else {
		req = &executor.RunRequest{}
	}

	var err error
	switch {
	case o.code != "":
		req.Code = o.code
	case len(args) > 0:
		if req.Code, err = readFile(args[0]); err != nil {
			return nil, err
		}
		req.Filename = args[0]
	}

	if o.setup != "" || o.setupFile != "" {
		code, err := pick("", o.setup, o.setupFile)
		if err != nil {
			return nil, err
		}
		req.Setup = executor.SetupCode(code)
	}
	if req.SetupHeader, err = pick(req.SetupHeader, o.header, o.headerFile); err != nil {
		return nil, err
	}
	if req.Fixture, err = pick(req.Fixture, o.fixture, o.fixtureFile); err != nil {
		return nil, err
	}
	if o.noSetup {
		req.Setup = executor.Setup{Disabled: true}
	}
	if o.lang != "" {
		req.Language = o.lang
	}
	if o.stdin != "" {
		req.Stdin = o.stdin
	}

	if o.request == "" && req.Code == "" && req.Fixture == "" {
		if req.Code, err = readPiped(cmd.InOrStdin()); err != nil {
			return nil, err
		}
		if req.Code == "" {
			return nil, errors.New("no program: pass a file, --code, --fixture, --request or pipe source on stdin")
		}
	}
	return req, nil
}

// pick prefers the inline value, then the file contents, then current.
func pick(current, inline, file string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if file != "" {
		return readFile(file)
	}
	return current, nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// readPiped reads r unless it is an interactive terminal.
func readPiped(r io.Reader) (string, error) {
	if f, ok := r.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

// printText writes the result for a terminal and returns an exitError for
// anything but a clean exit.
func printText(stdout, stderr io.Writer, result *executor.ExecutionResult, withOutput bool) error {
	if withOutput {
		fmt.Fprint(stdout, result.Stdout)
		fmt.Fprint(stderr, result.Stderr)
	}

	if result.Tests != nil {
		passed, failed := result.Tests.Counts()
		fmt.Fprintf(stderr, "\n%d passed, %d failed\n", passed, failed)
	}
	if result.Truncated {
		fmt.Fprintln(stderr, "(output truncated)")
	}

	switch result.Outcome() {
	case executor.OutcomeCompileFailed:
		fmt.Fprintln(stderr, "compilation failed")
		return &exitError{code: 1}
	case executor.OutcomeSignaled:
		sig, _ := result.Signal()
		fmt.Fprintf(stderr, "terminated by %s\n", sig)
		return &exitError{code: 1}
	case executor.OutcomeExited:
		if code, _ := result.Code(); code != 0 {
			return &exitError{code: code}
		}
	}
	return nil
}
