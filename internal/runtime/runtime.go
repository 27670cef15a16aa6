package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loqalabs/loqa-till/internal/api"
	"github.com/loqalabs/loqa-till/internal/archive"
	"github.com/loqalabs/loqa-till/internal/audio"
	"github.com/loqalabs/loqa-till/internal/bill"
	"github.com/loqalabs/loqa-till/internal/bus"
	"github.com/loqalabs/loqa-till/internal/capture"
	"github.com/loqalabs/loqa-till/internal/catalog"
	"github.com/loqalabs/loqa-till/internal/config"
	"github.com/loqalabs/loqa-till/internal/natsserver"
	"github.com/loqalabs/loqa-till/internal/playback"
	"github.com/loqalabs/loqa-till/internal/stt"
	"github.com/loqalabs/loqa-till/internal/till"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const pruneInterval = 24 * time.Hour

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger
	ready  atomic.Bool
	bus    *bus.Client
	wg     sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start wires every component, serves the HTTP API and blocks until ctx is
// cancelled. Components are torn down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tel, err := setupTelemetry(ctx, r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := tel.shutdown(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slogError(err))
		}
	}()

	embedded, busClient, err := r.connectBus(ctx)
	if err != nil {
		return err
	}
	r.bus = busClient
	defer func() {
		busClient.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
	}()

	store, err := archive.Open(ctx, r.cfg.Archive, r.logger)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer store.Close()

	recognizer, err := stt.New(r.cfg.STT, r.logger)
	if err != nil {
		return fmt.Errorf("init recognizer: %w", err)
	}
	source, err := r.openSource()
	if err != nil {
		return fmt.Errorf("open audio source: %w", err)
	}
	defer source.Close()

	speaker, err := playback.NewSpeaker(r.cfg.Playback, busClient)
	if err != nil {
		return fmt.Errorf("init playback: %w", err)
	}
	voice := playback.NewWorker(ctx, speaker, r.cfg.Playback.QueueSize,
		time.Duration(r.cfg.Playback.TimeoutMS)*time.Millisecond, r.logger)
	defer voice.Close()

	exporter, err := r.newExporter(ctx)
	if err != nil {
		return err
	}

	meter := otel.Meter("github.com/loqalabs/loqa-till")
	queue := capture.NewQueue()
	producer := capture.New(ctx, source, recognizer, capture.Options{
		Calibration:  time.Duration(r.cfg.Capture.CalibrationMS) * time.Millisecond,
		PhraseLimit:  time.Duration(r.cfg.Capture.PhraseTimeLimitMS) * time.Millisecond,
		RetryBackoff: time.Duration(r.cfg.Capture.RetryBackoffMS) * time.Millisecond,
	}, r.logger)
	if recognitions, err := meter.Int64Counter("till.recognitions", metric.WithDescription("Speech recognition outcomes")); err == nil {
		producer.OnResult(func(status stt.Status) {
			recognitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status.String())))
		})
	}
	listener := capture.NewController(producer, queue, r.logger)

	deps := till.Deps{
		Queue:    queue,
		Listener: listener,
		Voice:    voice,
		Exporter: exporter,
		Archive:  store,
		Meter:    meter,
		Log:      r.logger,
	}
	if busClient != nil {
		deps.Publisher = busClient
	}
	tick := time.Duration(r.cfg.Session.TickMS) * time.Millisecond
	session, err := till.New(till.Options{
		Register:    r.cfg.RuntimeName,
		StoreName:   r.cfg.Bill.StoreName,
		MatchCutoff: r.cfg.Catalog.MatchCutoff,
		LogCapacity: r.cfg.Session.LogCapacity,
		Tick:        tick,
	}, deps)
	if err != nil {
		return fmt.Errorf("init till session: %w", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		session.Run(ctx)
	}()

	if r.cfg.Catalog.Path != "" {
		if err := preloadCatalog(ctx, session, r.cfg.Catalog.Path); err != nil {
			r.logger.Warn("price list preload failed", slog.String("path", r.cfg.Catalog.Path), slogError(err))
		}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.pruneLoop(ctx, store)
	}()

	servers := r.startHTTP(session, tel.metrics, tick)

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", servers[0].Addr),
		slog.String("stt", r.cfg.STT.Mode),
		slog.String("capture", r.cfg.Capture.Source),
		slog.String("archive", r.cfg.Archive.Driver),
	)

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("addr", srv.Addr), slogError(err))
		}
	}

	listener.Stop()
	listener.Wait()
	<-session.Done()
	r.wg.Wait()
	return nil
}

func (r *Runtime) connectBus(ctx context.Context) (*natsserver.EmbeddedServer, *bus.Client, error) {
	if !r.cfg.Bus.Enabled {
		return nil, nil, nil
	}
	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("start embedded nats: %w", err)
	}
	busCfg := r.cfg.Bus
	if embedded != nil {
		busCfg.Servers = []string{embedded.ClientURL()}
	}
	client, err := bus.Connect(ctx, busCfg, r.cfg.RuntimeName, r.logger)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, nil, fmt.Errorf("connect bus: %w", err)
	}
	return embedded, client, nil
}

func (r *Runtime) openSource() (audio.Source, error) {
	c := r.cfg.Capture
	switch c.Source {
	case "scripted":
		return audio.NewScripted(c.SampleRate, audio.Lines(r.cfg.STT.Script...)...), nil
	case "microphone", "":
		return audio.OpenMicrophone(audio.MicrophoneOptions{
			SampleRate:     c.SampleRate,
			Channels:       c.Channels,
			Silence:        time.Duration(c.SilenceMS) * time.Millisecond,
			SpeechTimeout:  time.Duration(c.SpeechTimeoutMS) * time.Millisecond,
			ThresholdFloor: c.ThresholdFloor,
		}, r.logger)
	default:
		return nil, fmt.Errorf("unknown capture source %q", c.Source)
	}
}

func (r *Runtime) newExporter(ctx context.Context) (*bill.Exporter, error) {
	cfg := r.cfg.Bill
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create bill directory: %w", err)
	}

	var uploader bill.Uploader
	if cfg.Upload.Enabled {
		s3u, err := bill.NewS3Uploader(ctx, cfg.Upload)
		if err != nil {
			return nil, fmt.Errorf("init bill upload: %w", err)
		}
		uploader = s3u
	}

	var opener bill.Opener
	if cfg.OpenCommand != "" {
		o, err := bill.NewCommandOpener(cfg.OpenCommand)
		if err != nil {
			return nil, err
		}
		opener = o
	}
	return bill.NewExporter(bill.PDFRenderer{Dir: cfg.OutputDir}, uploader, opener, r.logger), nil
}

func (r *Runtime) startHTTP(session *till.Session, metrics http.Handler, tick time.Duration) []*http.Server {
	gin.SetMode(gin.ReleaseMode)
	handler := api.New(session, api.Options{
		AllowOrigins:   r.cfg.HTTP.AllowOrigins,
		StreamInterval: tick,
		Ready:          r.isReady,
		Metrics:        metrics,
	}, r.logger).Router()

	servers := []*http.Server{{
		Addr:              fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}
	if bind := r.cfg.Telemetry.PrometheusBind; bind != "" && metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics)
		servers = append(servers, &http.Server{
			Addr:              bind,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	for _, srv := range servers {
		r.wg.Add(1)
		go func(srv *http.Server) {
			defer r.wg.Done()
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.logger.Error("http server failed", slog.String("addr", srv.Addr), slogError(err))
			}
		}(srv)
	}
	return servers
}

func (r *Runtime) isReady() bool {
	if !r.ready.Load() {
		return false
	}
	return r.bus == nil || r.bus.Healthy()
}

func (r *Runtime) pruneLoop(ctx context.Context, store archive.Archive) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Prune(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("archive prune failed", slogError(err))
			}
		}
	}
}

func preloadCatalog(ctx context.Context, session *till.Session, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	name := filepath.Base(path)
	cat, err := catalog.Read(name, f)
	if err != nil {
		return err
	}
	return session.LoadCatalog(ctx, name, cat)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
