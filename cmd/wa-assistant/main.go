// Command wa-assistant runs the WhatsApp task assistant.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nhle/wa-assistant/internal/app"
	"github.com/nhle/wa-assistant/internal/credential"
	"github.com/nhle/wa-assistant/internal/model"
	"github.com/nhle/wa-assistant/internal/store"
)

const usage = `usage: wa-assistant <command> [flags]

commands:
  serve     run the webhook server and the reminder scheduler
  remind    run one reminder sweep and exit (for an external cron)
  migrate   apply database migrations and exit
  init      write a config file with default values
  secret    set or delete a secret: secret set|delete <key>

run "wa-assistant <command> --help" for the command's flags.
`

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "wa-assistant:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errors.New("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return serve(rest)
	case "remind":
		return remind(rest, stdout)
	case "migrate":
		return migrate(rest, stdout)
	case "init":
		return initConfig(rest, stdout)
	case "secret":
		return secret(rest, stdin, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// commonFlags returns a flag set with the flags every command accepts,
// bound into v.
func commonFlags(name string, v *viper.Viper) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", model.DefaultConfigPath(), "path to the YAML config file")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("db", "", "SQLite database path")
	_ = v.BindPFlag("log.level", fs.Lookup("log-level"))
	_ = v.BindPFlag("database.path", fs.Lookup("db"))
	return fs
}

// load parses args into fs and returns the merged configuration and
// process logger.
func load(fs *pflag.FlagSet, v *viper.Viper, args []string) (*model.AppConfig, *slog.Logger, error) {
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	path, _ := fs.GetString("config")

	cfg, err := model.LoadConfig(v, path)
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func build(cfg *model.AppConfig, logger *slog.Logger) (*app.App, error) {
	secrets, err := app.LoadSecrets()
	if err != nil {
		// Environment secrets may still be enough.
		logger.Warn("loading secrets from keyring failed", "error", err)
	}
	return app.New(cfg, secrets, logger)
}

func serve(args []string) error {
	v := model.NewViper()
	fs := commonFlags("serve", v)
	fs.String("addr", "", "listen address, e.g. :8080")
	fs.Bool("no-scheduler", false, "do not run the in-process reminder scheduler")
	_ = v.BindPFlag("server.addr", fs.Lookup("addr"))

	cfg, logger, err := load(fs, v, args)
	if err != nil {
		return err
	}
	if off, _ := fs.GetBool("no-scheduler"); off {
		cfg.Reminder.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config:\n%w", err)
	}

	a, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

func remind(args []string, stdout io.Writer) error {
	v := model.NewViper()
	fs := commonFlags("remind", v)
	at := fs.String("at", "", "sweep the minute of this RFC 3339 time instead of now")

	cfg, logger, err := load(fs, v, args)
	if err != nil {
		return err
	}

	now := time.Now()
	if *at != "" {
		if now, err = time.Parse(time.RFC3339, *at); err != nil {
			return fmt.Errorf("parsing --at: %w", err)
		}
	}

	a, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.RemindOnce(context.Background(), now)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: due=%d reminders=%d first_contacts=%d already_fired=%d failed=%d\n",
		report.Minute.Format(time.RFC3339), report.Due, report.Reminders,
		report.FirstContacts, report.AlreadyFired, report.Failed)
	return nil
}

func migrate(args []string, stdout io.Writer) error {
	v := model.NewViper()
	fs := commonFlags("migrate", v)

	cfg, _, err := load(fs, v, args)
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	version, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: schema version %d\n", cfg.Database.Path, version)
	return nil
}

func initConfig(args []string, stdout io.Writer) error {
	v := model.NewViper()
	fs := commonFlags("init", v)
	force := fs.Bool("force", false, "overwrite an existing file")

	cfg, _, err := load(fs, v, args)
	if err != nil {
		return err
	}
	path, _ := fs.GetString("config")

	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

func secret(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: secret set|delete <key> (keys: %s)", strings.Join(credential.Keys, ", "))
	}
	action, key := args[0], args[1]
	if !slices.Contains(credential.Keys, key) {
		return fmt.Errorf("unknown secret %q (keys: %s)", key, strings.Join(credential.Keys, ", "))
	}

	switch action {
	case "set":
		fmt.Fprintf(stdout, "value for %s: ", key)
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading value: %w", err)
		}
		value := strings.TrimSpace(line)
		if value == "" {
			return errors.New("empty value")
		}
		if err := credential.Set(key, value); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "saved")
		return nil
	case "delete":
		return credential.Delete(key)
	default:
		return fmt.Errorf("unknown secret action %q", action)
	}
}
