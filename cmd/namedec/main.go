// Command namedec decodes a stream of CRAM 3.1 tokenized read-name blocks and
// prints the names, one per line.
//
// Usage:
//
//	namedec [flags]
//
// Input is a sequence of frames, each a little-endian 32-bit length followed
// by one name block (-format bin), the same stream zstd compressed
// (-format zstd), or a hex dump with one 'block NAME { ... }' section per
// name block (-format hex).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/npillmayer/nametok/batch"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type config struct {
	in      string
	format  string
	workers int
	prefix  string
	metrics *batch.Metrics
}

func main() {
	var (
		cfg         config
		traceLevel  string
		metricsAddr string
	)

	flag.StringVar(&cfg.in, "in", "-", "Input file, '-' for stdin")
	flag.StringVar(&cfg.format, "format", "bin", "Input format: bin, zstd, hex")
	flag.IntVar(&cfg.workers, "workers", 0, "Blocks decoded concurrently (0: one per CPU)")
	flag.StringVar(&cfg.prefix, "prefix", "", "Print only distinct names with this prefix, with their locations")
	flag.StringVar(&traceLevel, "trace", "Error", "Trace level: Debug, Info, Error")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Address to expose Prometheus metrics on, e.g. :9100")

	flag.Parse()

	tracing.SetTraceSelector(tracing.SelectorForAdapter(gologadapter.GetAdapter()))
	tracing.Select("nametok").SetTraceLevel(tracing.TraceLevelFromString(traceLevel))
	tracer := tracing.Select("nametok")

	var metricsServer *http.Server
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		cfg.metrics = batch.NewMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:    metricsAddr,
			Handler: mux,
		}
		go func() {
			tracer.Infof("starting metrics server on %s", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				tracer.Errorf("metrics server failed: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := bufio.NewWriter(os.Stdout)
	err := run(ctx, cfg, out)
	if ferr := out.Flush(); err == nil {
		err = ferr
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			tracer.Errorf("metrics server shutdown failed: %v", err)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "namedec: %v\n", err)
		os.Exit(1)
	}
}

// run decodes the input described by cfg and writes the result to w.
func run(ctx context.Context, cfg config, w io.Writer) error {
	in := io.Reader(os.Stdin)
	if cfg.in != "-" {
		f, err := os.Open(cfg.in)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	src, closeSrc, err := openSource(in, cfg.format)
	if err != nil {
		return err
	}
	defer closeSrc()

	dec := batch.NewDecoder(batch.WithWorkers(cfg.workers), batch.WithMetrics(cfg.metrics))
	if cfg.prefix == "" {
		return dec.Each(ctx, src, func(b batch.Block) error {
			return writeNames(w, b.Names)
		})
	}
	index := batch.NewNameIndex()
	if err := dec.Each(ctx, src, func(b batch.Block) error {
		index.Add(b)
		return nil
	}); err != nil {
		return err
	}
	for _, name := range index.WithPrefix(cfg.prefix) {
		locs, _ := index.Lookup(name)
		if _, err := fmt.Fprint(w, name); err != nil {
			return err
		}
		for _, loc := range locs {
			if _, err := fmt.Fprintf(w, "\t%d:%d", loc.Block, loc.Name); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func openSource(r io.Reader, format string) (batch.Source, func(), error) {
	switch format {
	case "bin":
		return batch.NewReader(r), func() {}, nil
	case "zstd":
		zr, err := batch.NewZstdReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { zr.Close() }, nil
	case "hex":
		return batch.NewHexSource(r), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown input format %q", format)
}

// writeNames writes NUL-terminated names as lines.
func writeNames(w io.Writer, names []byte) error {
	line := make([]byte, 0, len(names))
	for _, b := range names {
		if b == 0 {
			b = '\n'
		}
		line = append(line, b)
	}
	_, err := w.Write(line)
	return err
}
