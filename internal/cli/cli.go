package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	slsconfig "github.com/goliatone/go-slsconfig"
	"github.com/goliatone/go-slsconfig/logging"
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps err to a process exit code: 0 for nil, 2 for reference
// cycles and counter ceilings, the carried code for ExitError, else 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if slsconfig.IsInfiniteLoop(err) {
		return 2
	}
	return 1
}

// Options holds the flags shared by every subcommand.
type Options struct {
	Path      string
	Stage     string
	Opts      []string
	Force     string
	Strict    bool
	Timeout   time.Duration
	LogLevel  string
	LogFormat string

	Stdout io.Writer
	Stderr io.Writer
	FS     afero.Fs
	// LookupEnv overrides os.LookupEnv for env references.
	LookupEnv func(string) (string, bool)
}

// NewOptions returns Options writing to the process streams.
func NewOptions() *Options {
	return &Options{
		LogLevel:  "warn",
		LogFormat: "text",
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// Execute runs the CLI with args.
func Execute(ctx context.Context, o *Options, args []string) error {
	cmd := NewRootCmd(o)
	cmd.SetArgs(args)
	cmd.SetOut(o.Stdout)
	cmd.SetErr(o.Stderr)
	return cmd.ExecuteContext(ctx)
}

// NewRootCmd builds the slsconfig command tree.
func NewRootCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "slsconfig",
		Short:         "Resolve ${...} references in serverless.yml files",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	o.bindShared(cmd.PersistentFlags())
	cmd.AddCommand(newResolveCmd(o), newEnvCmd(o), newExecCmd(o))
	return cmd
}

func (o *Options) bindShared(flags *pflag.FlagSet) {
	flags.StringVarP(&o.Path, "path", "p", o.Path, "Path to the serverless file (default ./serverless.yml)")
	flags.StringVarP(&o.Stage, "stage", "s", o.Stage, "Value for ${opt:stage}")
	flags.StringArrayVar(&o.Opts, "opt", o.Opts, "Option value as name=value (can be repeated)")
	flags.StringVar(&o.Force, "force", o.Force, "Overrides applied to the document, e.g. 'provider.profile=ci;custom.x=y'")
	flags.BoolVar(&o.Strict, "strict", o.Strict, "Fail when references are left unresolved")
	flags.DurationVar(&o.Timeout, "timeout", o.Timeout, "Maximum time to spend resolving (0 disables)")
	flags.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level: debug, info, warn or error")
	flags.StringVar(&o.LogFormat, "log-format", o.LogFormat, "Log format: text or json")
}

func (o *Options) config() (*slsconfig.Config, error) {
	opts := []slsconfig.Option{
		slsconfig.WithLogger(logging.New(o.LogLevel, o.LogFormat, o.Stderr)),
		slsconfig.WithStrict(o.Strict),
		slsconfig.WithTimeout(o.Timeout),
	}
	if o.FS != nil {
		opts = append(opts, slsconfig.WithFS(o.FS))
	}
	if o.LookupEnv != nil {
		opts = append(opts, slsconfig.WithEnvLookup(o.LookupEnv))
	}
	for _, kv := range o.Opts {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --opt %q, expected name=value", kv)
		}
		opts = append(opts, slsconfig.WithOption(strings.TrimSpace(name), value))
	}
	if o.Stage != "" {
		opts = append(opts, slsconfig.WithStage(o.Stage))
	}
	if o.Force != "" {
		opts = append(opts, slsconfig.WithForceString(o.Force))
	}
	return slsconfig.New(o.Path, opts...), nil
}

type resolveOptions struct {
	*Options
	Output string
	Trace  bool
}

func newResolveCmd(parent *Options) *cobra.Command {
	o := &resolveOptions{Options: parent, Output: "yaml"}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the resolved document",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return o.Run(cmd.Context()) },
	}
	cmd.Flags().StringVarP(&o.Output, "output", "o", o.Output, "Output format: yaml or json")
	cmd.Flags().BoolVar(&o.Trace, "trace", false, "Write the resolution trace as JSON to stderr")
	return cmd
}

func (o *resolveOptions) Run(ctx context.Context) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	doc, err := cfg.Document(ctx)
	if o.Trace {
		if payload, traceErr := cfg.Trace().ToJSON(); traceErr == nil {
			fmt.Fprintln(o.Stderr, string(payload))
		}
	}
	if err != nil {
		return err
	}
	return writeValue(o.Stdout, o.Output, doc)
}

type envOptions struct {
	*Options
	Format          string
	Functions       []string
	Where           string
	WhereLang       string
	IgnoreGlobal    bool
	IgnoreFunctions bool
	InclCreds       bool
	AWSDir          string
}

func (o *envOptions) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVar(&o.Functions, "functions", nil, "Only include these functions")
	flags.StringVar(&o.Where, "where", "", "Predicate selecting functions, e.g. 'runtime startsWith \"nodejs\"'")
	flags.StringVar(&o.WhereLang, "where-lang", string(slsconfig.WhereLangExpr), "Language of --where: expr or cel")
	flags.BoolVar(&o.IgnoreGlobal, "ignore-global", false, "Skip provider.environment")
	flags.BoolVar(&o.IgnoreFunctions, "ignore-functions", false, "Skip functions.*.environment")
	flags.BoolVar(&o.InclCreds, "inclcreds", false, "Add AWS credentials for the provider profile")
	flags.StringVar(&o.AWSDir, "aws-dir", "", "Directory holding the AWS credentials and config files")
}

func (o *envOptions) selection() slsconfig.EnvOptions {
	return slsconfig.EnvOptions{
		Functions:       o.Functions,
		Where:           o.Where,
		WhereLang:       slsconfig.WhereLang(o.WhereLang),
		IgnoreGlobal:    o.IgnoreGlobal,
		IgnoreFunctions: o.IgnoreFunctions,
		InclAccessCreds: o.InclCreds,
		AWSDir:          o.AWSDir,
	}
}

func newEnvCmd(parent *Options) *cobra.Command {
	o := &envOptions{Options: parent, Format: string(slsconfig.EnvFormatStandard)}
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the environment variables declared by the document",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return o.Run(cmd.Context()) },
	}
	cmd.Flags().StringVarP(&o.Format, "format", "f", o.Format, "Output format: standard, array, dotenv or json")
	o.bind(cmd)
	return cmd
}

func (o *envOptions) Run(ctx context.Context) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	env, err := cfg.Env(ctx, o.selection())
	if err != nil {
		return err
	}

	switch slsconfig.EnvFormat(o.Format) {
	case slsconfig.EnvFormatStandard:
		for _, v := range slsconfig.SortedEnv(env) {
			fmt.Fprintf(o.Stdout, "%s=%s\n", v.Name, v.Value)
		}
		return nil
	case slsconfig.EnvFormatArray:
		return writeValue(o.Stdout, "json", slsconfig.SortedEnv(env))
	case slsconfig.EnvFormatJSON:
		return writeValue(o.Stdout, "json", env)
	case slsconfig.EnvFormatDotenv:
		out, err := slsconfig.FormatDotenv(env)
		if err != nil {
			return err
		}
		fmt.Fprintln(o.Stdout, out)
		return nil
	default:
		return fmt.Errorf("unknown env format %q", o.Format)
	}
}

func newExecCmd(parent *Options) *cobra.Command {
	o := &envOptions{Options: parent}
	cmd := &cobra.Command{
		Use:   "exec -- command [args...]",
		Short: "Run a command with the document's environment variables set",
		Args:  cobra.MinimumNArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return o.Exec(cmd.Context(), args) },
	}
	o.bind(cmd)
	return cmd
}

func (o *envOptions) Exec(ctx context.Context, args []string) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	env, err := cfg.Env(ctx, o.selection())
	if err != nil {
		return err
	}

	child := exec.CommandContext(ctx, args[0], args[1:]...)
	child.Env = os.Environ()
	for _, v := range slsconfig.SortedEnv(env) {
		child.Env = append(child.Env, v.Name+"="+v.Value)
	}
	child.Stdin = os.Stdin
	child.Stdout = o.Stdout
	child.Stderr = o.Stderr
	if err := child.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode(), Err: err}
		}
		return err
	}
	return nil
}

func writeValue(w io.Writer, format string, value any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
