package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caasmo/restinpieces"
	"github.com/caasmo/restinpieces/config"
	dbz "github.com/caasmo/restinpieces/db/zombiezen"
	"github.com/urfave/cli/v2"

	"github.com/caasmo/acmeconfig"
	"github.com/caasmo/acmeconfig/issue"
	"github.com/caasmo/acmeconfig/reload"
	"github.com/caasmo/acmeconfig/tomlconf"
	archive "github.com/caasmo/acmeconfig/zombiezen"
)

// secureStore is the part of the restinpieces secure config store used here.
type secureStore interface {
	Save(scope string, data []byte, format string, description string) error
	Latest(scope string) ([]byte, error)
}

const (
	dbPathFlagName = "dbpath"
	ageKeyFlagName = "age-key"
)

// secureStoreFlags are shared by the commands that talk to the secure store.
func secureStoreFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     dbPathFlagName,
			Usage:    "Path to the SQLite database file",
			EnvVars:  []string{"ACME_CONFIG_DB"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     ageKeyFlagName,
			Usage:    "Path to the age identity file (private key 'AGE-SECRET-KEY-1...')",
			EnvVars:  []string{"ACME_CONFIG_AGE_KEY"},
			Required: true,
		},
	}
}

// loadValid loads the file at path and rejects it as a whole if it does not
// validate.
func loadValid(path string) (*acme.Config, error) {
	cfg, err := tomlconf.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error in %s: %w", path, err)
	}
	return cfg, nil
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return fmt.Errorf("%s: expected %d argument(s): %s", c.Command.Name, n, c.Command.ArgsUsage)
	}
	return nil
}

func validateCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a configuration file",
		ArgsUsage: "<config.toml>",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			path := c.Args().First()
			cfg, err := loadValid(path)
			if err != nil {
				return err
			}
			logger.Info("configuration is valid",
				"path", path,
				"accounts", len(cfg.Accounts),
				"enabled_certificates", len(cfg.EnabledCertificates()),
				"renewal_check_time", cfg.RenewalCheckTime.String())
			return nil
		},
	}
}

func blueprintCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "blueprint",
		Usage: "Write an example configuration file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path for the blueprint TOML configuration",
				Value:   "acme.blueprint.toml",
			},
		},
		Action: func(c *cli.Context) error {
			output := c.String("output")

			logger.Info("Generating ACME blueprint configuration...")
			data, err := tomlconf.Marshal(tomlconf.Blueprint())
			if err != nil {
				return err
			}

			logger.Info("Writing blueprint configuration", "path", output)
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("write blueprint: %w", err)
			}
			logger.Warn("Review the generated file and replace the placeholder hostnames, contacts and provider URL before use.", "path", output)
			return nil
		},
	}
}

func diffCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "Show which certificates change between two configuration versions",
		ArgsUsage: "<old.toml> <new.toml>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "Also list unchanged certificates"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			prev, err := loadValid(c.Args().Get(0))
			if err != nil {
				return err
			}
			next, err := loadValid(c.Args().Get(1))
			if err != nil {
				return err
			}

			var reissue int
			for _, change := range acme.Diff(prev, next) {
				if change.NeedsIssuance() {
					reissue++
				}
				if change.Kind == acme.Unchanged && !c.Bool("all") {
					continue
				}
				fmt.Fprintf(c.App.Writer, "%-9s %s/%s\n", change.Kind, change.Ref.Account, change.Ref.Certificate)
			}
			logger.Info("compared configurations", "reissue", reissue)
			return nil
		},
	}
}

func planCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "List the certificate orders a configuration calls for",
		ArgsUsage: "<config.toml>",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			cfg, err := loadValid(c.Args().First())
			if err != nil {
				return err
			}
			orders, err := issue.Plan(cfg)
			if err != nil {
				return err
			}
			for _, o := range orders {
				fmt.Fprintf(c.App.Writer, "%s/%s\t%s\t%s\n",
					o.Ref.Account, o.Ref.Certificate, o.ProviderURL, strings.Join(o.Request.Domains, ","))
			}
			logger.Debug("planned orders", "count", len(orders))
			return nil
		},
	}
}

func watchCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Follow a configuration file, publishing every valid version",
		ArgsUsage: "<config.toml>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "archive-db",
				Usage:   "SQLite database recording every published version",
				EnvVars: []string{"ACME_CONFIG_ARCHIVE_DB"},
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Wait this long for writes to settle before reloading",
				Value: 500 * time.Millisecond,
			},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}

			var opts []reload.Option
			if dbPath := c.String("archive-db"); dbPath != "" {
				pool, err := restinpieces.NewZombiezenPool(dbPath)
				if err != nil {
					return fmt.Errorf("create database pool %s: %w", dbPath, err)
				}
				defer func() {
					if err := pool.Close(); err != nil {
						logger.Error("error closing database pool", "error", err)
					}
				}()
				db := archive.New(pool)
				if err := db.EnsureSchema(c.Context); err != nil {
					return err
				}
				opts = append(opts, reload.WithArchiver(db))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			store := reload.NewStore(logger, opts...)
			watcher := reload.NewWatcher(c.Args().First(), store, logger, reload.WithDebounce(c.Duration("debounce")))
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("stopped watching configuration")
			return nil
		},
	}
}

func openSecureStore(c *cli.Context, logger *slog.Logger) (secureStore, func(), error) {
	dbPath := c.String(dbPathFlagName)
	logger.Info("Creating sqlite database pool", "path", dbPath)
	pool, err := restinpieces.NewZombiezenPool(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create database pool %s: %w", dbPath, err)
	}
	closePool := func() {
		if err := pool.Close(); err != nil {
			logger.Error("error closing database pool", "error", err)
		}
	}

	dbImpl, err := dbz.New(pool)
	if err != nil {
		closePool()
		return nil, nil, fmt.Errorf("instantiate zombiezen db: %w", err)
	}

	agePath := c.String(ageKeyFlagName)
	secureCfg, err := config.NewSecureConfigAge(dbImpl, agePath, logger)
	if err != nil {
		closePool()
		return nil, nil, fmt.Errorf("instantiate secure config (age key %s): %w", agePath, err)
	}
	return secureCfg, closePool, nil
}

func storeCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "store",
		Usage:     "Validate a configuration file and save it to the encrypted config store",
		ArgsUsage: "<config.toml>",
		Flags:     secureStoreFlags(),
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			path := c.Args().First()
			cfg, err := loadValid(path)
			if err != nil {
				return err
			}
			data, err := tomlconf.Marshal(cfg)
			if err != nil {
				return err
			}

			store, closeStore, err := openSecureStore(c, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			description := fmt.Sprintf("ACME configuration from %s (%d certificates)", path, len(cfg.EnabledCertificates()))
			logger.Info("Saving ACME configuration", "scope", acme.ConfigScope, "format", "toml")
			if err := store.Save(acme.ConfigScope, data, "toml", description); err != nil {
				return fmt.Errorf("save scope %s: %w", acme.ConfigScope, err)
			}
			logger.Info("Successfully saved ACME configuration", "scope", acme.ConfigScope)
			return nil
		},
	}
}

func fetchCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Read the latest configuration from the encrypted config store",
		Flags: append(secureStoreFlags(), &cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to this file instead of stdout",
		}),
		Action: func(c *cli.Context) error {
			store, closeStore, err := openSecureStore(c, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			data, err := store.Latest(acme.ConfigScope)
			if err != nil {
				return fmt.Errorf("load scope %s: %w", acme.ConfigScope, err)
			}
			if len(data) == 0 {
				return fmt.Errorf("no configuration found in scope %s", acme.ConfigScope)
			}

			cfg, err := tomlconf.Decode(data)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				// Still written out so it can be corrected.
				logger.Warn("stored configuration does not validate", "error", err)
			}

			if output := c.String("output"); output != "" {
				if err := os.WriteFile(output, data, 0600); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				logger.Info("Wrote ACME configuration", "path", output)
				return nil
			}
			_, err = c.App.Writer.Write(data)
			return err
		},
	}
}
