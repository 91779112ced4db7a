package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/haatos/fisherman/internal"
	"github.com/haatos/fisherman/internal/git"
	"github.com/haatos/fisherman/internal/handler"
	"github.com/haatos/fisherman/internal/logging"
	"github.com/haatos/fisherman/internal/notify"
	"github.com/haatos/fisherman/internal/runner"
	"github.com/haatos/fisherman/internal/service"
	"github.com/haatos/fisherman/internal/settings"
	"github.com/haatos/fisherman/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve [config]",
	Short: "Listen for webhooks and deploy pushed repositories",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := settings.NewSettings()

		log, err := logging.New(s.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := serve(ctx, s, resolveConfigPath(args, s), log); err != nil {
			log.Errorw("fisherman stopped", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, s *settings.AppSettings, path string, log *zap.SugaredLogger) error {
	config, err := internal.LoadConfiguration(path)
	if err != nil {
		return err
	}
	log.Infow("loaded configuration", "path", path, "repositories", len(config.Specific))
	config.CheckForPotentialMistakes(log)

	eventStore, closeStore, err := openEventStore(ctx, s)
	if err != nil {
		return err
	}
	defer closeStore()

	historySvc := service.NewHistoryService(eventStore, log)

	scheduler, err := service.NewScheduler(log)
	if err != nil {
		return fmt.Errorf("err creating scheduler: %w", err)
	}
	defer scheduler.Shutdown()
	if err := historySvc.ScheduleHistoryCleanUp(scheduler, config.HistoryRetention()); err != nil {
		return err
	}
	scheduler.Start()

	notifyFn, err := notifier(config)
	if err != nil {
		return err
	}

	deploySvc := service.NewDeployService(
		config,
		git.NewSynchronizer(config.Default.KnownHosts, log),
		runner.NewRunner(log),
		historySvc,
		notifyFn,
		log,
	)

	queue := service.NewDispatchQueue(deploySvc, config.QueueSize(), log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		queue.Run(ctx)
	}()

	e := setupEcho(log)
	handler.SetupWebhookRoutes(e, config, queue, historySvc, log)

	address := net.JoinHostPort(s.Host, strconv.Itoa(int(config.Port())))
	err = internal.GracefulShutdown(ctx, e, address, log)

	queue.Shutdown()
	<-done
	return err
}

func setupEcho(log *zap.SugaredLogger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.NewErrorHandler(log)
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.RequestLoggerWithConfig(internal.GetRequestLoggerConfig(log)),
		middleware.BodyLimit(internal.MaxPayloadSize),
		middleware.RateLimiterWithConfig(internal.GetRateLimiterConfig()),
	)
	return e
}

// openEventStore returns the history store selected by FISHERMAN_DB_TYPE
// with its migrations applied.
func openEventStore(ctx context.Context, s *settings.AppSettings) (store.EventStore, func(), error) {
	switch s.DBType {
	case settings.DBTypeSQLite:
		rwdb, err := store.InitDatabase(s.SQLiteDbString(false), false)
		if err != nil {
			return nil, nil, err
		}
		if err := store.RunMigrations(rwdb, store.DialectSQLite); err != nil {
			rwdb.Close()
			return nil, nil, err
		}
		rdb, err := store.InitDatabase(s.SQLiteDbString(true), true)
		if err != nil {
			rwdb.Close()
			return nil, nil, err
		}
		return store.NewEventSQLiteStore(rdb, rwdb), func() {
			rdb.Close()
			rwdb.Close()
		}, nil
	case settings.DBTypePostgres:
		pool, err := store.InitPostgres(ctx, s.PostgresConnectionString)
		if err != nil {
			return nil, nil, err
		}
		if err := store.RunPostgresMigrations(pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store.NewEventPostgresStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type %q", s.DBType)
	}
}

func notifier(config *internal.Configuration) (notify.Func, error) {
	opts := config.Default.Notifications
	if opts == nil {
		return nil, nil
	}
	n, err := notify.NewNotifier(opts.Kind, opts.WebhookURL)
	if err != nil {
		return nil, err
	}
	return n.Notify, nil
}
