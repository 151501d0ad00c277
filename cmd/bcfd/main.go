package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"voxelforge.dev/internal/bcf"
	"voxelforge.dev/internal/csm"
	"voxelforge.dev/internal/store"
	"voxelforge.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		configPath = flag.String("config", "", "path to bcfd.yaml (optional)")
		dataDir    = flag.String("data", "", "store data directory (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bcfd] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	for _, p := range cfg.Preload {
		if err := preload(st, p); err != nil {
			logger.Fatalf("preload %q: %v", p.Name, err)
		}
		logger.Printf("preloaded %s from %s", p.Name, p.Path)
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(st, logger).Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func preload(st *store.Store, p PreloadSpec) error {
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return err
	}
	var data []byte
	switch filepath.Ext(p.Path) {
	case ".csm":
		root, err := csm.Parse(string(b))
		if err != nil {
			return err
		}
		data = bcf.Marshal(root)
	case ".bcf":
		data = b
	default:
		return fmt.Errorf("unsupported extension: %s", p.Path)
	}
	_, err = st.Put(p.Name, data)
	return err
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
