package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/gameflow/pkg/api"
	"github.com/cbodonnell/gameflow/pkg/audio"
	authproviders "github.com/cbodonnell/gameflow/pkg/auth/providers"
	"github.com/cbodonnell/gameflow/pkg/config"
	"github.com/cbodonnell/gameflow/pkg/input"
	"github.com/cbodonnell/gameflow/pkg/log"
	"github.com/cbodonnell/gameflow/pkg/network"
	"github.com/cbodonnell/gameflow/pkg/notify"
	"github.com/cbodonnell/gameflow/pkg/queue"
	"github.com/cbodonnell/gameflow/pkg/repositories"
	"github.com/cbodonnell/gameflow/pkg/scenes"
	"github.com/cbodonnell/gameflow/pkg/session"
	"github.com/cbodonnell/gameflow/pkg/statemachine"
	"github.com/cbodonnell/gameflow/pkg/statistics"
	"github.com/cbodonnell/gameflow/pkg/telemetry"
	"github.com/cbodonnell/gameflow/pkg/timeramp"
	"github.com/cbodonnell/gameflow/pkg/version"
	"github.com/cbodonnell/gameflow/pkg/workers"
)

const (
	shutdownTimeout = 10 * time.Second
	quitRetryDelay  = 50 * time.Millisecond
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	parsedLogLevel, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting gameflow server version %s", version.Get())
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTelemetry, err := telemetry.Setup(ctx)
	if err != nil {
		panic(fmt.Sprintf("Failed to set up telemetry: %v", err))
	}

	repository, err := newRepository(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}

	authProvider, err := newAuthProvider(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to create auth provider: %v", err))
	}

	// the save worker outlives the signal so that it can flush the final session
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	saveSessionChan := make(chan workers.SaveSessionRequest, workers.SaveSessionChanSize)
	statisticsService := statistics.NewService(statistics.NewServiceOptions{
		Repository: repository,
		SaveChan:   saveSessionChan,
	})
	saveSessionWorker := workers.NewSaveSessionWorker(workers.NewSaveSessionWorkerOptions{
		Repository:      repository,
		SaveSessionChan: saveSessionChan,
		Checkpointer:    statisticsService,
		Interval:        cfg.Tuning.SaveInterval,
	})
	go saveSessionWorker.Start(workerCtx)

	bus := notify.NewBus()
	sceneLoader := scenes.NewLoader(scenes.NewLoaderOptions{
		InitialScene: cfg.InitialScene,
		Scenes:       []string{cfg.Tuning.Scenes.Boot, cfg.Tuning.Scenes.MainMenu, cfg.Tuning.Scenes.Level},
		LoadLatency:  cfg.Tuning.SceneLoadLatency,
	})

	// validated by config.Load
	rampEase, _ := timeramp.ParseEase(cfg.Tuning.RampEasing)
	controller := session.NewController(session.NewControllerOptions{
		Scenes:           sceneLoader,
		Controls:         input.NewControls(),
		Audio:            audio.NewPlayer(),
		Statistics:       statisticsService,
		Bus:              bus,
		Tracer:           telemetry.Tracer("session"),
		RampTick:         cfg.Tuning.RampTick,
		RampDuration:     cfg.Tuning.RampDuration,
		RampEase:         rampEase,
		BootDelay:        cfg.Tuning.BootDelay,
		HookTimeout:      cfg.Tuning.HookTimeout,
		SceneLoadTimeout: cfg.Tuning.SceneLoadTimeout,
		BootScene:        cfg.Tuning.Scenes.Boot,
		MainMenuScene:    cfg.Tuning.Scenes.MainMenu,
		LevelScene:       cfg.Tuning.Scenes.Level,
	})

	wsServerOpts := network.NewWSServerOptions{
		Port:         cfg.WSPort,
		AuthProvider: authProvider,
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		wsServerOpts.TLS = &network.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		}
	}
	wsServer := network.NewWSServer(wsServerOpts)
	go func() {
		if err := wsServer.Start(ctx); err != nil {
			log.Error("Notification server error: %v", err)
		}
	}()

	notificationWorker := workers.NewNotificationWorker(workers.NewNotificationWorkerOptions{
		Bus:         bus,
		EventQueue:  queue.NewInMemoryQueue[notify.Event](queue.DefaultBufferSize),
		Broadcaster: wsServer,
		Interval:    cfg.Tuning.BroadcastInterval,
	})
	go notificationWorker.Start(ctx)

	apiServerOpts := api.NewAPIServerOptions{
		Port:         cfg.APIPort,
		AuthProvider: authProvider,
		Controller:   controller,
		Statistics:   statisticsService,
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		apiServerOpts.TLS = &api.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		}
	}
	apiServer := api.NewAPIServer(apiServerOpts)
	go apiServer.Start()

	if err := controller.Start(ctx); err != nil {
		log.Error("Failed to start session: %v", err)
	}

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	// no request may start a transition once the quit is under way
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server: %v", err)
	}
	if err := quitGame(shutdownCtx, controller); err != nil {
		log.Error("Failed to quit game: %v", err)
	}

	stopWorkers()
	select {
	case <-saveSessionWorker.Done():
	case <-shutdownCtx.Done():
		log.Warn("Timed out waiting for the save worker")
	}

	if err := repository.Close(shutdownCtx); err != nil {
		log.Error("Failed to close repository: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error("Failed to shut down telemetry: %v", err)
	}
}

// quitGame retries while a transition started before shutdown is still
// running.
func quitGame(ctx context.Context, controller interface {
	QuitGame(ctx context.Context) error
}) error {
	for {
		err := controller.QuitGame(ctx)
		if !errors.Is(err, statemachine.ErrTransitionInProgress) {
			return err
		}
		log.Debug("Waiting for the running transition before quitting")
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to quit before shutdown deadline: %w", err)
		case <-time.After(quitRetryDelay):
		}
	}
}

// newRepository picks the repository from the scheme of the database URL.
func newRepository(ctx context.Context, cfg *config.Config) (repositories.Repository, error) {
	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %v", err)
	}

	switch u.Scheme {
	case "sqlite":
		return repositories.NewSQLiteRepository(ctx, u.Host+u.Path, cfg.MigrationsDir)
	case "postgresql", "postgres":
		return repositories.NewPostgresRepository(ctx, u.String())
	case "gdata":
		return repositories.NewGdataRepository(u.Host)
	default:
		return nil, fmt.Errorf("unknown database type %s", u.Scheme)
	}
}

// newAuthProvider returns nil when neither Firebase nor a static token is configured.
func newAuthProvider(ctx context.Context, cfg *config.Config) (authproviders.AuthProvider, error) {
	switch {
	case cfg.FirebaseProjectID != "":
		return authproviders.NewFirebaseAuthProvider(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
	case cfg.APIToken != "":
		return authproviders.NewStaticAuthProvider(cfg.APIToken, "operator"), nil
	default:
		log.Warn("No auth provider configured, the API and notification socket are open")
		return nil, nil
	}
}
