/*
DESCRIPTION
  colorkit-server serves the colour kit analyser over HTTP. It loads the
  reference chart image at startup, keeps calibrations per session and
  optionally persists sessions and analyses to a SQLite database.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  It is free software: you can redistribute it and/or modify them
  under the terms of the GNU General Public License as published by the
  Free Software Foundation, either version 3 of the License, or (at your
  option) any later version.

  It is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
  FITNESS FOR A PARTICULAR PURPOSE. See the GNU General Public License
  for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt.  If not, see http://www.gnu.org/licenses.
*/

// colorkit-server serves the colour kit analyser over HTTP. Build with
// -tags withcv for marker detection and colour extraction.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ausocean/utils/logging"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/colorkit/calibration"
	"github.com/ausocean/colorkit/pipeline"
	"github.com/ausocean/colorkit/service"
	"github.com/ausocean/colorkit/store"
)

// Logging configuration consts.
const (
	defaultLogPath = "/var/log/colorkit/colorkit-server.log"
	logMaxSize     = 500 // MB.
	logMaxBackup   = 10
	logMaxAge      = 28 // Days.
	logSuppress    = false
)

// Option defaults.
const (
	defaultAddr      = ":5000"
	defaultReference = "reference.jpg"
	shutdownTimeout  = 10 * time.Second
	readTimeout      = 30 * time.Second
)

func main() {
	addr := flag.String("addr", defaultAddr, "Address to listen on.")
	refPath := flag.String("reference", defaultReference, "Path of the black and white reference chart image.")
	dbPath := flag.String("db", "", "SQLite database for sessions and analyses. Sessions are kept in memory only if empty.")
	ttl := flag.Duration("ttl", calibration.DefaultTTL, "Time a calibration stays active.")
	logPath := flag.String("LogPath", defaultLogPath, "Specifies log path")
	logLevel := flag.Int("LogLevel", int(logging.Info), "Specifies log level")
	flag.Parse()

	fileLog := &lumberjack.Logger{
		Filename:   *logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(int8(*logLevel), io.MultiWriter(fileLog, os.Stderr), logSuppress)

	ref, err := os.ReadFile(*refPath)
	if err != nil {
		log.Fatal("could not read reference chart", "path", *refPath, "error", err)
	}

	log.Debug("initialising vision pipeline")
	kit, err := pipeline.NewKit(log, ref, pipeline.DefaultConfig())
	if err != nil {
		log.Fatal("could not initialise vision pipeline", "error", err)
	}
	defer kit.Close()

	storeOpts := []calibration.Option{calibration.WithTTL(*ttl)}
	var svcOpts []service.Option
	if *dbPath != "" {
		db, err := store.Open(*dbPath, log)
		if err != nil {
			log.Fatal("could not open database", "path", *dbPath, "error", err)
		}
		defer db.Close()
		storeOpts = append(storeOpts, calibration.WithPersister(db))
		svcOpts = append(svcOpts, service.WithRecorder(db))
	}

	st, err := calibration.NewStore(log, storeOpts...)
	if err != nil {
		log.Fatal("could not create calibration store", "error", err)
	}
	svc, err := service.New(log, kit, st, svcOpts...)
	if err != nil {
		log.Fatal("could not create service", "error", err)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           svc,
		ReadHeaderTimeout: readTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatal("could not listen", "addr", *addr, "error", err)
	}
	log.Info("listening", "addr", ln.Addr().String(), "ttl", ttl.String())
	if err := serve(ctx, srv, ln, log); err != nil {
		log.Error("server failed", "error", err)
	}
}

// serve serves HTTP on ln until ctx is done, then shuts srv down. It
// returns only once shutdown has finished, so in-flight requests complete
// before the caller releases the pipeline and database.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, log logging.Logger) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error("could not shut down cleanly", "error", err)
		}
	}()

	err := srv.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
