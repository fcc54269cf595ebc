package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/term"

	"github.com/mailscrape/weboutlook/handlers"
	"github.com/mailscrape/weboutlook/internal/announcer"
	"github.com/mailscrape/weboutlook/internal/config"
	"github.com/mailscrape/weboutlook/internal/export"
	"github.com/mailscrape/weboutlook/internal/poll"
	"github.com/mailscrape/weboutlook/pkg/base"
	"github.com/mailscrape/weboutlook/pkg/models/scraper"
	"github.com/mailscrape/weboutlook/pkg/utils"
)

const configEnvVar = "WEBOUTLOOK_CONFIG"
const defaultEnvFile = ".env"
const defaultWatchInterval = time.Minute

var tracer = otel.Tracer(base.UPTRACE_SERVICE)

func main() {
	if err := run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) (err error) {
	if err := loadEnvFile(); err != nil {
		return err
	}

	if utils.TelemetryEnabled() {
		shutdown, setupErr := utils.SetupOTelSDK(ctx)
		if setupErr != nil {
			return setupErr
		}
		defer func() {
			err = errors.Join(err, shutdown(context.Background()))
		}()
	}

	logLevel := new(slog.LevelVar)
	logger := buildLogger(logLevel)

	app := &cli.App{
		Name:  "weboutlook",
		Usage: "scrape mail out of a legacy Outlook Web Access frontend",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log at debug level"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				logLevel.Set(slog.LevelDebug)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "inbox",
				Usage: "List the message ids in the inbox",
				Flags: []cli.Flag{refreshFlag()},
				Action: func(c *cli.Context) error {
					scr, err := buildScraper(ctx, logger)
					if err != nil {
						return err
					}
					return listFolder(scr, c.App.Writer, base.InboxFolder, c.Bool("refresh"))
				},
			},
			{
				Name:      "folder",
				Usage:     "List the message ids in a folder",
				ArgsUsage: "<folder name>",
				Flags:     []cli.Flag{refreshFlag()},
				Action: func(c *cli.Context) error {
					folderName := c.Args().First()
					if strings.TrimSpace(folderName) == "" {
						return errors.New("folder name is required")
					}
					scr, err := buildScraper(ctx, logger)
					if err != nil {
						return err
					}
					return listFolder(scr, c.App.Writer, folderName, c.Bool("refresh"))
				},
			},
			{
				Name:      "cat",
				Usage:     "Print the raw source of a message",
				ArgsUsage: "<message id>",
				Action: func(c *cli.Context) error {
					msgID := c.Args().First()
					if strings.TrimSpace(msgID) == "" {
						return errors.New("message id is required")
					}
					scr, err := buildScraper(ctx, logger)
					if err != nil {
						return err
					}
					return catMessage(scr, c.App.Writer, msgID)
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a message from the server",
				ArgsUsage: "<message id>",
				Action: func(c *cli.Context) error {
					msgID := c.Args().First()
					if strings.TrimSpace(msgID) == "" {
						return errors.New("message id is required")
					}
					scr, err := buildScraper(ctx, logger)
					if err != nil {
						return err
					}
					return removeMessage(scr, c.App.Writer, msgID)
				},
			},
			{
				Name:  "snapshot",
				Usage: "Write a JSON snapshot of the configured folder listings",
				Flags: []cli.Flag{configFlag(), refreshFlag(), s3Flag()},
				Action: func(c *cli.Context) error {
					folders := []string{base.InboxFolder}
					if cfgPath := configPath(c); cfgPath != "" {
						cfg, err := loadAndValidate(cfgPath)
						if err != nil {
							return err
						}
						folders = config.FolderNames(cfg)
					}
					scr, err := buildScraper(ctx, logger)
					if err != nil {
						return err
					}
					fileMgr, err := buildFileManager(c)
					if err != nil {
						return err
					}
					return snapshotFolderListings(ctx, scr, fileMgr, folders, c.Bool("refresh"))(c)
				},
			},
			{
				Name:      "export",
				Usage:     "Export scraped messages with metadata sidecars",
				ArgsUsage: "[folder name]",
				Flags: []cli.Flag{
					configFlag(),
					refreshFlag(),
					s3Flag(),
					&cli.StringFlag{Name: "out", Value: "exports", Usage: "Base folder for exported messages"},
					&cli.StringFlag{Name: "filter", Usage: "Only export messages whose id matches this regex"},
				},
				Action: func(c *cli.Context) error {
					return runExport(ctx, logger, c)
				},
			},
			{
				Name:  "watch",
				Usage: "Poll a folder and announce new messages",
				Flags: []cli.Flag{configFlag()},
				Action: func(c *cli.Context) error {
					return runWatch(c.Context, logger, c)
				},
			},
			{
				Name:  "serve",
				Usage: "Serve the scraped folders over HTTP",
				Flags: []cli.Flag{
					configFlag(),
					s3Flag(),
					&cli.StringFlag{Name: "addr", Value: ":3000", Usage: "Listen address"},
				},
				Action: func(c *cli.Context) error {
					return runServe(ctx, logger, c)
				},
			},
			{
				Name:  "auth",
				Usage: "Manage the stored webmail password",
				Subcommands: []*cli.Command{
					{
						Name:  "set",
						Usage: "Prompt for the password and store it in the OS keyring",
						Action: func(c *cli.Context) error {
							return authSet(c.App.Writer)
						},
					},
					{
						Name:  "forget",
						Usage: "Remove the password from the OS keyring",
						Action: func(c *cli.Context) error {
							return authForget(c.App.Writer)
						},
					},
				},
			},
			{
				Name:  "validate",
				Usage: "Validate configuration and environment",
				Flags: []cli.Flag{configFlag()},
				Action: func(c *cli.Context) error {
					cfgPath := configPath(c)
					if cfgPath == "" {
						return errors.New("config path is required via --config or " + configEnvVar)
					}
					cfg, err := loadAndValidate(cfgPath)
					if err != nil {
						return err
					}
					if err := config.ValidateEnv(); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, config.Summary(cfg))
					return nil
				},
			},
		},
	}

	return app.RunContext(ctx, args)
}

func refreshFlag() cli.Flag {
	return &cli.BoolFlag{Name: "refresh", Usage: "Bypass cached listings and fetch from the server"}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{Name: "config", Usage: "Path to YAML config file (or set " + configEnvVar + ")"}
}

func s3Flag() cli.Flag {
	return &cli.BoolFlag{Name: "s3", Usage: "Write files to the configured S3 bucket instead of local disk"}
}

func configPath(c *cli.Context) string {
	cfgPath := strings.TrimSpace(c.String("config"))
	if cfgPath == "" {
		cfgPath = strings.TrimSpace(os.Getenv(configEnvVar))
	}
	return cfgPath
}

func loadAndValidate(cfgPath string) (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func loadEnvFile() error {
	if _, err := os.Stat(defaultEnvFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(defaultEnvFile)
}

// buildLogger picks the OTLP bridge when telemetry is configured, otherwise a
// JSON handler honoring the level var behind --verbose.
func buildLogger(level slog.Leveler) *slog.Logger {
	if utils.TelemetryEnabled() {
		return otelslog.NewLogger(base.UPTRACE_SERVICE)
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func buildScraper(ctx context.Context, logger *slog.Logger) (*scraper.OutlookWebScraperImpl, error) {
	env, err := config.OWAEnvFromEnv()
	if err != nil {
		return nil, err
	}

	password := env.Password
	if password == "" {
		password, err = config.ResolvePassword(env.Username)
		if err != nil {
			return nil, err
		}
	}

	return scraper.NewOutlookWebScraper(
		scraper.WithCredentials(env.Domain, env.Username, password),
		scraper.WithLogger(logger),
		scraper.WithCtx(ctx),
	)
}

func buildFileManager(c *cli.Context) (utils.FileManager, error) {
	if !c.Bool("s3") {
		return utils.NewOSFileManager(), nil
	}
	s3Env, err := config.S3EnvFromEnv()
	if err != nil {
		return nil, err
	}
	return utils.NewS3FileManager(s3Env.Endpoint, s3Env.Region, s3Env.Bucket, s3Env.Key, s3Env.Secret)
}

func listFolder(scr scraper.OutlookWebScraper, out io.Writer, folderName string, refresh bool) error {
	ids, err := scr.GetFolder(folderName, refresh)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	fmt.Fprintf(out, "%d messages in %q\n", len(ids), folderName)
	return nil
}

func catMessage(scr scraper.OutlookWebScraper, out io.Writer, msgID string) error {
	body, err := scr.GetMessage(msgID)
	if err != nil {
		return err
	}
	_, err = out.Write(body)
	return err
}

func removeMessage(scr scraper.OutlookWebScraper, out io.Writer, msgID string) error {
	if _, err := scr.DeleteMessage(msgID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %s\n", msgID)
	return nil
}

// snapshotFolderListings scrapes each folder and writes the combined listings
// to the folder list file as indented JSON.
func snapshotFolderListings(ctx context.Context, scr scraper.OutlookWebScraper, fileMgr utils.FileManager, folders []string, refresh bool) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		_, span := tracer.Start(ctx, "snapshotFolderListings")
		defer span.End()

		listings := make(map[string]base.SerializedListing, len(folders))
		for _, folderName := range folders {
			ids, err := scr.GetFolder(folderName, refresh)
			if err != nil {
				return errors.New("listing folder error " + err.Error())
			}
			listings[folderName] = base.SerializedListing{
				Name:       folderName,
				MessageIds: ids,
				FetchedAt:  time.Now().UTC(),
			}
		}

		encodedListings, err := json.MarshalIndent(listings, "", "  ")
		if err != nil {
			return errors.New("converting folder listings to JSON error " + err.Error())
		}

		span.SetAttributes(
			attribute.String("folderListFile.name", base.FolderListFile),
			attribute.Int("encodedListings.count", len(encodedListings)),
		)
		if err := fileMgr.WriteFile(base.FolderListFile, encodedListings, 0644); err != nil {
			return errors.New("writing folder listings file error " + err.Error())
		}

		return nil
	}
}

func runExport(ctx context.Context, logger *slog.Logger, c *cli.Context) error {
	var cfg config.Config
	cfgLoaded := false
	if cfgPath := configPath(c); cfgPath != "" {
		loaded, err := loadAndValidate(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
		cfgLoaded = true
	}

	folderArg := strings.TrimSpace(c.Args().First())
	folders := []config.Folder{}
	switch {
	case folderArg != "":
		folders = append(folders, folderEntry(cfg, folderArg))
	case cfgLoaded:
		for _, folder := range cfg.Folders {
			if folder.Export {
				folders = append(folders, folder)
			}
		}
		if len(folders) == 0 {
			return errors.New("config marks no folders with export: true")
		}
	default:
		return errors.New("a folder argument or --config is required")
	}

	outDir := c.String("out")
	if !c.IsSet("out") && cfg.Export.Dir != "" {
		outDir = cfg.Export.Dir
	}

	scr, err := buildScraper(ctx, logger)
	if err != nil {
		return err
	}
	fileMgr, err := buildFileManager(c)
	if err != nil {
		return err
	}

	exporter, err := export.NewExporter(
		export.WithScraper(scr),
		export.WithFileManager(fileMgr),
		export.WithBaseFolder(outDir),
		export.WithLogger(logger),
		export.WithCtx(ctx),
	)
	if err != nil {
		return err
	}

	for _, folder := range folders {
		match := mergeFilter(folder.Match, c.String("filter"))
		result, err := exporter.ExportFolder(folder.Name, match, c.Bool("refresh"))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Exported %d messages from %q (skipped %d, failed %d) batch %s\n",
			len(result.Exported), result.Folder, result.Skipped, result.Failed, result.BatchId)
	}

	return nil
}

func folderEntry(cfg config.Config, folderName string) config.Folder {
	for _, folder := range cfg.Folders {
		if strings.EqualFold(folder.Name, folderName) {
			return folder
		}
	}
	return config.Folder{Name: folderName}
}

func mergeFilter(match *config.MessageMatchers, filter string) *config.MessageMatchers {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return match
	}
	merged := &config.MessageMatchers{}
	if match != nil {
		merged.IdRegex = append(merged.IdRegex, match.IdRegex...)
		merged.BodyRegex = append(merged.BodyRegex, match.BodyRegex...)
	}
	merged.IdRegex = append(merged.IdRegex, filter)
	return merged
}

func runWatch(ctx context.Context, logger *slog.Logger, c *cli.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	watchFolder := base.InboxFolder
	interval := defaultWatchInterval
	var match *config.MessageMatchers

	if cfgPath := configPath(c); cfgPath != "" {
		cfg, err := loadAndValidate(cfgPath)
		if err != nil {
			return err
		}
		if strings.TrimSpace(cfg.Watch.Folder) != "" {
			watchFolder = cfg.Watch.Folder
		}
		if cfg.Watch.Interval != "" {
			parsed, err := config.ParseRelativeDuration(cfg.Watch.Interval)
			if err != nil {
				return err
			}
			if parsed > 0 {
				interval = parsed
			}
		}
		match = folderEntry(cfg, watchFolder).Match
	}

	scr, err := buildScraper(ctx, logger)
	if err != nil {
		return err
	}

	meter := otel.Meter(base.UPTRACE_SERVICE)
	pollCounter, err := meter.Int64Counter("weboutlook.watch.polls",
		metric.WithDescription("Completed poll cycles"))
	if err != nil {
		return err
	}
	announceCounter, err := meter.Int64Counter("weboutlook.watch.new_messages",
		metric.WithDescription("New messages announced"))
	if err != nil {
		return err
	}

	reporter := announcer.New(announcer.WithWebhookURL(config.WebhookURL()))

	state := &poll.State{}
	deps := poll.Deps{
		Scraper: scr,
		Folder:  watchFolder,
		Match:   match,
		Log:     logger,
		Announce: func(id string) {
			announceCounter.Add(ctx, 1)
			if err := reporter.Do("watch", watchFolder, id, state.LastCount); err != nil {
				fmt.Fprintf(cli.ErrWriter, "reporting failed for %q: %v\n", id, err)
			}
		},
	}

	fmt.Fprintf(c.App.Writer, "watching %q every %s\n", watchFolder, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := poll.Refresh(deps, state); err != nil {
			if !poll.IsBenignPollError(err) {
				return err
			}
			logger.WarnContext(ctx, "poll failed, will retry", slog.Any("error", err))
		} else {
			pollCounter.Add(ctx, 1)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func runServe(ctx context.Context, logger *slog.Logger, c *cli.Context) error {
	addr := c.String("addr")
	if !c.IsSet("addr") {
		if cfgPath := configPath(c); cfgPath != "" {
			cfg, err := loadAndValidate(cfgPath)
			if err != nil {
				return err
			}
			if cfg.Serve.Addr != "" {
				addr = cfg.Serve.Addr
			}
		}
	}

	scr, err := buildScraper(ctx, logger)
	if err != nil {
		return err
	}
	fileMgr, err := buildFileManager(c)
	if err != nil {
		return err
	}

	syncScraper := handlers.NewSyncScraper(scr)

	engine := html.New("./views", ".html")
	app := fiber.New(fiber.Config{Views: engine})
	app.Use(otelfiber.Middleware())
	app.Use(func(fc *fiber.Ctx) error {
		fc.Locals("scraper", syncScraper)
		fc.Locals("fileMgr", fileMgr)
		return fc.Next()
	})

	app.Get("/", handlers.Home)
	app.Get("/about", handlers.About)
	app.Get("/folders", handlers.Folders)
	app.Get("/folders/:name", handlers.Listing)
	app.Get("/messages/*", handlers.Message)
	app.Post("/messages/delete", handlers.DeleteMessage)
	app.Use(handlers.NotFound)

	return app.Listen(addr)
}

func authSet(out io.Writer) error {
	env, err := config.OWAEnvFromEnv()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "New password for %s: ", env.Username)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	if err := config.StorePassword(env.Username, string(raw)); err != nil {
		return err
	}
	fmt.Fprintf(out, "Stored password for %s\n", env.Username)
	return nil
}

func authForget(out io.Writer) error {
	env, err := config.OWAEnvFromEnv()
	if err != nil {
		return err
	}
	if err := config.ForgetPassword(env.Username); err != nil {
		return err
	}
	fmt.Fprintf(out, "Forgot password for %s\n", env.Username)
	return nil
}
