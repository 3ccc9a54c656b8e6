package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/engine"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
	"github.com/jhoicas/hotel-inventory-engine/internal/infrastructure/mail"
	"github.com/jhoicas/hotel-inventory-engine/internal/infrastructure/memory"
	infranats "github.com/jhoicas/hotel-inventory-engine/internal/infrastructure/nats"
	"github.com/jhoicas/hotel-inventory-engine/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/hotel-inventory-engine/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/hotel-inventory-engine/internal/interfaces/http"
	"github.com/jhoicas/hotel-inventory-engine/pkg/config"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Strs("tenants", cfg.Engine.Tenants).
		Msg("iniciando motor de reposición")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, closeStore := storage(ctx, cfg, log)
	defer closeStore()

	// Redis: proyecciones compartidas y locks entre instancias.
	if cfg.Redis.Addr != "" {
		client, err := infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer client.Close()
		deps.Projections = infraredis.NewProjectionCache(client, cfg.Redis.CacheTTL)
		locker := infraredis.NewLocker(client, cfg.Redis.LockTTL, log)
		deps.Locker = locker
		deps.JobLocker = locker
		log.Info().Str("addr", cfg.Redis.Addr).Msg("locks y proyecciones en Redis")
	}

	if cfg.SMTP.Host != "" {
		deps.Transport = mail.NewSMTPTransport(cfg.SMTP)
	} else {
		log.Warn().Msg("SMTP no configurado, las notificaciones sólo se registran en el log")
		deps.Transport = mail.NewLogTransport(log)
	}

	var bus *infranats.Bus
	if cfg.NATS.URL != "" {
		bus, err = infranats.Connect(ctx, cfg.NATS, log)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a NATS")
		}
		defer bus.Close()
		deps.Bus = bus
	}

	eng := engine.New(deps, cfg.Engine, cfg.SMTP.RatePerSecond, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	httpRouter.Router(app, httpRouter.RouterDeps{
		Ops:       eng,
		JWTSecret: cfg.JWT.Secret,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	if bus != nil {
		g.Go(func() error {
			return bus.Subscribe(gctx, eng.InstanceID, func(ctx context.Context, evt entity.ThresholdEvent) error {
				eng.HandleThreshold(ctx, evt)
				return nil
			})
		})
	}
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr()).Msg("servidor HTTP escuchando")
		return app.Listen(cfg.HTTP.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("motor finalizado con error")
	}
	log.Info().Msg("motor detenido")
}

// storage elige PostgreSQL si hay base configurada; si no, el almacén en memoria.
func storage(ctx context.Context, cfg *config.Config, log *logger.Logger) (engine.Deps, func()) {
	if !cfg.DB.Enabled() {
		log.Warn().Msg("sin base de datos configurada, usando almacén en memoria")
		store := memory.NewStore()
		return engine.Deps{
			Items:       store.Items,
			Policies:    store.Policies,
			Tx:          memory.NewTxRunner(store.Ledger),
			Ledger:      store.Ledger,
			Projections: store.Projections,
			Alerts:      store.Alerts,
			Snapshots:   store.Snapshots,
			Tasks:       store.Tasks,
			Directory:   store.Directory,
			Locker:      memory.NewKeyedLocker(),
		}, func() {}
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migración del esquema")
	}
	store := postgres.NewStore(pool)
	return engine.Deps{
		Items:       store.Items,
		Policies:    store.Policies,
		Tx:          store.Tx,
		Ledger:      store.Ledger,
		Projections: store.Projections,
		Alerts:      store.Alerts,
		Snapshots:   store.Snapshots,
		Tasks:       store.Tasks,
		Directory:   store.Directory,
		Locker:      memory.NewKeyedLocker(),
	}, pool.Close
}
