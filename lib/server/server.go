package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"galaxy/lib/authentication"
	"galaxy/lib/battles"
	"galaxy/lib/combat"
	"galaxy/lib/config"
	"galaxy/lib/maintenance"
	"galaxy/lib/notifications"
	"galaxy/lib/server/middleware"
	"galaxy/lib/services"
	"galaxy/lib/store"
	"galaxy/lib/vault"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	AdminKeyName        = "ADMIN_API_KEY"
	healthCheckInterval = 30 * time.Second
)

// GalaxyServer is the combat API. Its dependencies are connected in the
// CONFIGURING substates of the state machine, then the routes open up.
type GalaxyServer struct {
	*fiber.App
	Config        config.Config
	Db            services.Database
	Cache         services.Cache
	Store         *store.Store
	Engine        *combat.Engine
	Battles       *battles.Service
	Supervisor    *battles.BattleSupervisor
	Notifications *notifications.NotificationService
	VaultManager  vault.VaultManager
	StateMachine  *maintenance.StateMachine
	AuthService   *authentication.AuthService

	// AdminKey returns the key expected in X-Api-Key on admin routes.
	AdminKey func() (string, error)

	secrets secrets
	cancel  context.CancelFunc
}

type secrets struct {
	db_pwd    string
	cache_pwd string
}

func New(cfg config.Config) (*GalaxyServer, error) {
	vault_manager, err := vault.NewVaultManager(cfg.VaultAddr)
	if err != nil {
		return nil, err
	}

	server := &GalaxyServer{
		App: fiber.New(fiber.Config{
			AppName:      "galaxy",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}),
		Config:       cfg,
		Db:           services.DefaultDatabase(),
		Cache:        services.DefaultCache(),
		VaultManager: vault_manager,
		StateMachine: maintenance.NewStateMachine(),
	}
	server.AdminKey = func() (string, error) {
		return server.VaultManager.GetApiKey(AdminKeyName)
	}
	return server, nil
}

func (server *GalaxyServer) Configure() {
	server.App.Use(recover.New())
	server.App.Use(middleware.Logger())
	server.App.Use(middleware.WithStateMachine(server.StateMachine))
	server.App.Use(helmet.New())
	server.App.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-CSRF-Token",
	}))
	server.App.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health"
		},
	}))
}

// Start registers the routes and walks the state machine through the
// configuration substates. It returns once the secrets are read; services
// are connected in the background.
func (server *GalaxyServer) Start(ctx context.Context) error {
	slog.Info("Starting the server")
	ctx, server.cancel = context.WithCancel(ctx)

	server.Configure()
	server.RegisterRoutes()

	server.StateMachine.When(
		maintenance.MODE_INIT,
		maintenance.STATE_CONFIGURING,
		maintenance.SUBSTATE_CONFIGURING_SERVICES,
		func() {
			// Connect cache and store
			if err := server.connectServices(ctx); err != nil {
				slog.Error("Services configuration failed", "error", err)
				// raise fault
				server.StateMachine.Fail()
				return
			}
			server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_CONFIGURING, maintenance.SUBSTATE_CONFIGURING_ENGINE)
		})

	server.StateMachine.When(
		maintenance.MODE_INIT,
		maintenance.STATE_CONFIGURING,
		maintenance.SUBSTATE_CONFIGURING_ENGINE,
		func() {
			// Build the engine and start the workers
			if err := server.configureEngine(ctx); err != nil {
				slog.Error("Engine configuration failed", "error", err)
				server.StateMachine.Fail()
				return
			}
			if err := server.StateMachine.To(maintenance.MODE_OPERATIONAL, maintenance.STATE_RUNNING, maintenance.SUBSTATE_SAFE); err == nil {
				go server.monitor(ctx)
			}
		})

	if err := server.readSecrets(); err != nil {
		server.StateMachine.Fail()
		return err
	}
	return server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_CONFIGURING, maintenance.SUBSTATE_CONFIGURING_SERVICES)
}

func (server *GalaxyServer) readSecrets() error {
	cache_pwd, err := server.VaultManager.GetCachePwd()
	if err != nil {
		return fmt.Errorf("cache pwd retrieval failed: %w", err)
	}
	server.secrets.cache_pwd = cache_pwd

	if server.Config.StoreDriver == config.DriverPostgres {
		db_pwd, err := server.VaultManager.GetDbPwd()
		if err != nil {
			return fmt.Errorf("db pwd retrieval failed: %w", err)
		}
		server.secrets.db_pwd = db_pwd
	}

	auth_config, err := authentication.BuildAuthConfig(&server.VaultManager)
	if err != nil {
		return err
	}
	server.AuthService = authentication.NewAuthService(auth_config, &server.Cache)
	return nil
}

func (server *GalaxyServer) connectServices(ctx context.Context) error {
	slog.Info("Connecting services ...")
	if err := server.Cache.Connect(server.Config, server.secrets.cache_pwd); err != nil {
		return err
	}

	// Connect the store
	switch server.Config.StoreDriver {
	case config.DriverPostgres:
		if err := server.Db.Connect(server.Config, server.secrets.db_pwd); err != nil {
			return err
		}
		st, err := store.FromPool(server.Db.Pool)
		if err != nil {
			return err
		}
		server.Store = st
	default:
		st, err := store.OpenSqlite(server.Config.SqlitePath)
		if err != nil {
			return err
		}
		server.Store = st
	}
	return server.Store.Migrate(ctx)
}

func (server *GalaxyServer) configureEngine(ctx context.Context) error {
	catalog, err := server.Config.Catalog()
	if err != nil {
		return err
	}
	server.Engine = combat.NewEngine(catalog, server.Config.EngineOptions()...)

	// Start the notification workers
	notification_service, err := notifications.NewNotificationService(
		notifications.DefaultConfig(server.Config.NotificationWorkers), &server.Cache)
	if err != nil {
		return err
	}
	if err := notification_service.Start(ctx); err != nil {
		return err
	}
	server.Notifications = notification_service

	// Start the battle order workers
	server.Battles = battles.NewService(server.Engine, server.Store, &server.Cache, server.Notifications)
	supervisor, err := battles.NewBattleSupervisor(server.Config.BattleWorkers)
	if err != nil {
		return err
	}
	if err := supervisor.Start(ctx, &server.Cache, server.Battles); err != nil {
		return err
	}
	server.Supervisor = supervisor

	slog.Info("Engine configured", "ship_types", catalog.Len(), "round_cap", server.Config.RoundCap, "attrition", server.Config.Attrition)
	return nil
}

// monitor flips between SAFE and DEGRADED as the cache and store come and go.
func (server *GalaxyServer) monitor(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			running, safe := server.StateMachine.Running()
			if !running {
				continue
			}
			healthy := server.Cache.Health() && server.Store != nil && server.Store.Health(ctx)
			switch {
			case safe && !healthy:
				slog.Warn("Dependency health check failed")
				server.StateMachine.To(maintenance.MODE_OPERATIONAL, maintenance.STATE_RUNNING, maintenance.SUBSTATE_DEGRADED)
			case !safe && healthy:
				server.StateMachine.To(maintenance.MODE_OPERATIONAL, maintenance.STATE_RUNNING, maintenance.SUBSTATE_SAFE)
			}
		}
	}
}

// Shutdown stops the HTTP server first, then the workers and connections.
func (server *GalaxyServer) Shutdown(ctx context.Context) error {
	if err := server.App.ShutdownWithContext(ctx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	if server.Supervisor != nil {
		if err := server.Supervisor.Stop(ctx); err != nil {
			slog.Error("Battle supervisor shutdown failed", "error", err)
		}
	}
	if server.Notifications != nil {
		if err := server.Notifications.Shutdown(ctx); err != nil {
			slog.Error("Notification shutdown failed", "error", err)
		}
	}
	if server.cancel != nil {
		server.cancel()
	}
	if server.Store != nil {
		server.Store.Close()
	}
	server.Db.Close()
	if server.Cache.Db != nil {
		server.Cache.Db.Close()
	}
	return nil
}
