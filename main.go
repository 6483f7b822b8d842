package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dehydr8/guardian-go/device"
	"github.com/dehydr8/guardian-go/logger"
	"github.com/dehydr8/guardian-go/model"
	"github.com/dehydr8/guardian-go/secrets"
	"github.com/dehydr8/guardian-go/util"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

type rootConfig struct {
	logLevel    string
	envFile     string
	envFileFlag ff.Flag
	stdout      io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newCommand(os.Stdout)

	err := cmd.ParseAndRun(ctx, os.Args[1:],
		ff.WithEnvVarPrefix("GUARDIAN"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithConfigAllowMissingFile(),
	)

	switch {
	case errors.Is(err, ff.ErrHelp), errors.Is(err, ff.ErrNoExec):
		selected := cmd.GetSelected()
		if selected == nil {
			selected = cmd
		}
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(selected))
	case err != nil:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand(stdout io.Writer) *ff.Command {
	root := &rootConfig{stdout: stdout}

	rootFlags := ff.NewFlagSet("guardian")
	rootFlags.StringVar(&root.logLevel, 0, "log-level", "info", "log level (debug, info, warn, error)")
	root.envFileFlag = rootFlags.StringVar(&root.envFile, 0, "env-file", ".env", "dotenv file holding SECRET_* values")
	rootFlags.StringLong("config", "", "config file with operational flags")

	cmd := &ff.Command{
		Name:      "guardian",
		Usage:     "guardian [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "Guardian alert relay and secrets tooling",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			newServeCommand(root, rootFlags),
			newCheckCommand(root, rootFlags),
			newRenderCommand(root, rootFlags),
			newSendCommand(root, rootFlags),
			{
				Name:      "version",
				ShortHelp: "print the build revision",
				Flags:     ff.NewFlagSet("version").SetParent(rootFlags),
				Exec: func(ctx context.Context, args []string) error {
					fmt.Fprintln(root.stdout, util.Revision)
					return nil
				},
			},
		},
	}

	return cmd
}

// loadSecrets merges the process environment over the env file, the same
// precedence dotenv loaders use. The default env file may be absent; one
// named by flag, env or config file must exist.
func (r *rootConfig) loadSecrets() (*model.Secrets, error) {
	var (
		fileSource secrets.Source
		err        error
	)

	switch {
	case r.envFile == "":
	case r.envFileFlag != nil && r.envFileFlag.IsSet():
		fileSource, err = secrets.DotEnv(r.envFile)
	default:
		fileSource, err = secrets.OptionalDotEnv(r.envFile)
	}

	if err != nil {
		return nil, err
	}

	return secrets.Load(secrets.Chain(secrets.Environ(), fileSource)), nil
}

func newCheckCommand(root *rootConfig, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("check").SetParent(parent)
	variant := fs.StringLong("variant", "server", "secrets variant to check (direct, relay, server)")

	return &ff.Command{
		Name:      "check",
		Usage:     "guardian check [--variant=<v>]",
		ShortHelp: "validate SECRET_* values for a variant",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			logger.SetupLogging(root.logLevel)

			v, err := secrets.ParseVariant(*variant)
			if err != nil {
				return err
			}

			s, err := root.loadSecrets()
			if err != nil {
				return err
			}

			err = secrets.Validate(s, v)
			for _, k := range v.Keys() {
				fmt.Fprintf(root.stdout, "%-20s %-8s %s\n", k, k.Kind(), describe(s, k, err))
			}

			if err != nil {
				return fmt.Errorf("%s secrets are invalid", v)
			}

			fmt.Fprintf(root.stdout, "%s secrets OK\n", v)
			return nil
		},
	}
}

func describe(s *model.Secrets, k model.Key, err error) string {
	for _, fe := range secrets.FieldErrors(err) {
		if fe.Key == k {
			return "FAIL " + fe.Reason
		}
	}
	if k.Kind() == model.KindInteger {
		return "ok " + s.Value(k)
	}
	return "ok " + secrets.Redact(s.Value(k))
}

func newRenderCommand(root *rootConfig, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("render").SetParent(parent)
	variant := fs.StringLong("variant", "relay", "firmware variant to render (direct, relay)")
	out := fs.StringLong("out", "", "write the header to this path instead of stdout")

	return &ff.Command{
		Name:      "render",
		Usage:     "guardian render [--variant=<v>] [--out=secrets.h]",
		ShortHelp: "render the firmware secrets header",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			logger.SetupLogging(root.logLevel)

			v, err := secrets.ParseVariant(*variant)
			if err != nil {
				return err
			}

			s, err := root.loadSecrets()
			if err != nil {
				return err
			}

			if *out == "" {
				return secrets.Render(root.stdout, s, v)
			}

			var buf strings.Builder
			if err := secrets.Render(&buf, s, v); err != nil {
				return err
			}

			if err := os.WriteFile(*out, []byte(buf.String()), 0o600); err != nil {
				return err
			}

			logger.Info("msg", "wrote secrets header", "path", *out, "variant", v)
			return nil
		},
	}
}

func newSendCommand(root *rootConfig, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("send").SetParent(parent)
	server := fs.StringLong("server", "", "relay address as ip:port (default SECRET_SERVER_IP:SECRET_SERVER_PORT)")

	return &ff.Command{
		Name:      "send",
		Usage:     "guardian send [--server=<ip:port>] <message...>",
		ShortHelp: "send a test alert to a relay as a device would",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			logger.SetupLogging(root.logLevel)

			message := strings.Join(args, " ")
			if strings.TrimSpace(message) == "" {
				return errors.New("a message must be specified")
			}

			cfg, err := root.serverConfig(*server)
			if err != nil {
				return err
			}

			d := device.NewDevice(cfg)

			logger.Debug("msg", "sending alert", "relay", d.Address())

			res, err := d.SendAlert(ctx, message)
			if err != nil {
				return err
			}

			if res.Status == "suppressed" {
				logger.Warn("msg", "relay suppressed the alert as a duplicate", "relay", d.Address())
			}

			fmt.Fprintf(root.stdout, "%s: %s\n", res.Status, res.Message)
			return nil
		},
	}
}

func (r *rootConfig) serverConfig(override string) (model.ServerConfig, error) {
	if override != "" {
		addr, err := netip.ParseAddrPort(override)
		if err != nil {
			return model.ServerConfig{}, fmt.Errorf("invalid --server: %w", err)
		}
		return model.ServerConfig{IP: addr.Addr().String(), Port: int(addr.Port())}, nil
	}

	s, err := r.loadSecrets()
	if err != nil {
		return model.ServerConfig{}, err
	}

	if err := secrets.ValidateKeys(s, model.KeyServerIP, model.KeyServerPort); err != nil {
		return model.ServerConfig{}, err
	}

	return s.Server, nil
}
