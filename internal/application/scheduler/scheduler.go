// Package scheduler ejecuta los trabajos periódicos y bajo demanda del motor con semántica
// de instancia única por (tenant, trabajo).
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/ports"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
	"github.com/jhoicas/hotel-inventory-engine/pkg/clock"
	"github.com/jhoicas/hotel-inventory-engine/pkg/logger"
)

// JobFunc cuerpo de un trabajo. arg distingue instancias del mismo trabajo (p. ej. un artículo).
type JobFunc func(ctx context.Context, tenantID, arg string) error

// Options cadencia y plazo de un trabajo.
type Options struct {
	Every          time.Duration // 0 = sin tick periódico
	DailyAtHourUTC int           // -1 = sin ejecución diaria
	Timeout        time.Duration // 0 = Config.JobTimeout
}

// NoDaily opciones sin ejecución diaria.
func NoDaily(every time.Duration) Options {
	return Options{Every: every, DailyAtHourUTC: -1}
}

// Config parámetros del planificador.
type Config struct {
	Tenants    []string
	Workers    int
	JobTimeout time.Duration
	QueueSize  int
}

// Stats contadores por trabajo.
type Stats struct {
	Runs      int
	Coalesced int
	Skipped   int
	Failures  int
}

type job struct {
	name string
	fn   JobFunc
	opts Options
}

type slot struct {
	pending bool
}

type request struct {
	tenantID string
	name     string
	arg      string
}

// Scheduler planificador de trabajos.
type Scheduler struct {
	locker ports.Locker
	clock  clock.Clock
	cfg    Config
	log    *logger.Logger

	mu       sync.Mutex
	jobs     map[string]*job
	inflight map[string]*slot
	stats    map[string]*Stats
	queue    chan request
}

// New construye el planificador. locker puede ser distribuido (Redis) para coordinar instancias.
func New(locker ports.Locker, clk clock.Clock, cfg Config, log *logger.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Scheduler{
		locker:   locker,
		clock:    clk,
		cfg:      cfg,
		log:      log.Component("scheduler"),
		jobs:     make(map[string]*job),
		inflight: make(map[string]*slot),
		stats:    make(map[string]*Stats),
		queue:    make(chan request, cfg.QueueSize),
	}
}

// Register agrega un trabajo. Registrar dos veces el mismo nombre reemplaza el anterior.
func (s *Scheduler) Register(name string, fn JobFunc, opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = &job{name: name, fn: fn, opts: opts}
	if _, ok := s.stats[name]; !ok {
		s.stats[name] = &Stats{}
	}
}

func slotKey(tenantID, name, arg string) string {
	k := "job:" + tenantID + ":" + name
	if arg != "" {
		k += ":" + arg
	}
	return k
}

// RunNow ejecuta el trabajo en la goroutine del llamador. Si ya hay una ejecución en curso
// para la misma clave, marca un seguimiento pendiente y retorna nil de inmediato; la
// ejecución en curso vuelve a correr al terminar.
func (s *Scheduler) RunNow(ctx context.Context, tenantID, name, arg string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: trabajo %q no registrado", domain.ErrInvalidInput, name)
	}
	key := slotKey(tenantID, name, arg)
	if sl, busy := s.inflight[key]; busy {
		sl.pending = true
		s.stats[name].Coalesced++
		s.mu.Unlock()
		return nil
	}
	sl := &slot{}
	s.inflight[key] = sl
	s.mu.Unlock()

	var firstErr error
	for first := true; ; first = false {
		err := s.execute(ctx, j, tenantID, arg, key)
		if first {
			firstErr = err
		}
		s.mu.Lock()
		if !sl.pending || ctx.Err() != nil {
			delete(s.inflight, key)
			s.mu.Unlock()
			return firstErr
		}
		sl.pending = false
		s.mu.Unlock()
	}
}

func (s *Scheduler) execute(ctx context.Context, j *job, tenantID, arg, key string) (err error) {
	unlock, err := s.locker.TryLock(ctx, key)
	if errors.Is(err, domain.ErrLockNotObtained) {
		s.bump(j.name, func(st *Stats) { st.Skipped++ })
		s.log.Debug().Str("job", j.name).Str("tenant_id", tenantID).Msg("trabajo en curso en otra instancia")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	defer unlock()

	timeout := j.opts.Timeout
	if timeout <= 0 {
		timeout = s.cfg.JobTimeout
	}
	jctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic en %s: %v", j.name, r)
		}
		if err != nil {
			s.bump(j.name, func(st *Stats) { st.Failures++ })
			s.log.Error().Err(err).Str("job", j.name).Str("tenant_id", tenantID).Str("arg", arg).Msg("trabajo fallido")
		}
	}()

	start := s.clock.Now()
	s.bump(j.name, func(st *Stats) { st.Runs++ })
	err = j.fn(jctx, tenantID, arg)
	s.log.Debug().Str("job", j.name).Str("tenant_id", tenantID).Str("arg", arg).
		Dur("took", s.clock.Now().Sub(start)).Msg("trabajo ejecutado")
	return err
}

func (s *Scheduler) bump(name string, f func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stats[name]; ok {
		f(st)
	}
}

// Trigger encola una ejecución para el pool de workers. Si la cola está llena la descarta;
// el próximo tick la cubre.
func (s *Scheduler) Trigger(tenantID, name, arg string) bool {
	select {
	case s.queue <- request{tenantID: tenantID, name: name, arg: arg}:
		return true
	default:
		s.log.Warn().Str("job", name).Str("tenant_id", tenantID).Msg("cola del planificador llena, se descarta")
		return false
	}
}

// Stats copia de los contadores del trabajo.
func (s *Scheduler) Stats(name string) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stats[name]; ok {
		return *st
	}
	return Stats{}
}

// Start arranca los workers y los ticks. Bloquea hasta que ctx termine.
func (s *Scheduler) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.cfg.Workers; i++ {
		g.Go(func() error {
			s.worker(gctx)
			return nil
		})
	}

	s.mu.Lock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		j := s.jobs[name]
		if j.opts.Every > 0 {
			g.Go(func() error {
				s.tick(gctx, j)
				return nil
			})
		}
		if j.opts.DailyAtHourUTC >= 0 && j.opts.DailyAtHourUTC < 24 {
			g.Go(func() error {
				s.daily(gctx, j)
				return nil
			})
		}
	}
	s.log.Info().Int("workers", s.cfg.Workers).Strs("jobs", names).Strs("tenants", s.cfg.Tenants).
		Msg("planificador iniciado")
	return g.Wait()
}

func (s *Scheduler) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-s.queue:
			if err := s.RunNow(ctx, r.tenantID, r.name, r.arg); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Str("job", r.name).Str("tenant_id", r.tenantID).Msg("ejecución encolada fallida")
			}
		}
	}
}

func (s *Scheduler) fanOut(name string) {
	for _, t := range s.cfg.Tenants {
		s.Trigger(t, name, "")
	}
}

func (s *Scheduler) tick(ctx context.Context, j *job) {
	ticker := time.NewTicker(j.opts.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fanOut(j.name)
		}
	}
}

// NextDaily próxima ocurrencia de la hora UTC dada, estrictamente posterior a now.
func NextDaily(now time.Time, hourUTC int) time.Time {
	next := clock.StartOfDayUTC(now).Add(time.Duration(hourUTC) * time.Hour)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) daily(ctx context.Context, j *job) {
	for {
		now := s.clock.Now()
		timer := time.NewTimer(NextDaily(now, j.opts.DailyAtHourUTC).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fanOut(j.name)
		}
	}
}
