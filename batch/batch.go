/*
Package batch decodes streams of name blocks.

A CRAM container holds one name block per slice, and slices are independent
of each other. Package batch reads such blocks from a framed stream and
decodes them on a pool of workers, delivering the results in stream order.
A single block is always decoded by one worker.

The stream format is a sequence of frames, each a little-endian 32-bit
length followed by one name block. Streams may be zstd compressed as a
whole (NewZstdReader), or given as hex dumps (NewHexSource).

Decoding may be observed with Prometheus metrics (NewMetrics, WithMetrics),
and decoded names may be collected into a prefix index (NameIndex).
*/
package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/npillmayer/nametok"
	"github.com/npillmayer/schuko/tracing"
	"golang.org/x/sync/errgroup"
)

// tracer writes to trace with key 'nametok.batch'
func tracer() tracing.Trace {
	return tracing.Select("nametok.batch")
}

// Block is a decoded name block together with its position in the stream.
type Block struct {
	Index int
	nametok.Block
}

// Decoder decodes streams of name blocks.
type Decoder struct {
	workers int
	metrics *Metrics
	dec     *nametok.Decoder
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithWorkers sets the number of blocks decoded concurrently. Values below 1
// select one worker per CPU.
func WithWorkers(n int) Option {
	return func(d *Decoder) {
		d.workers = n
	}
}

// WithMetrics records decoding statistics in m.
func WithMetrics(m *Metrics) Option {
	return func(d *Decoder) {
		d.metrics = m
	}
}

// WithBackEnds replaces the entropy back-ends. A nil back-end keeps the
// default.
func WithBackEnds(rangeCoder, arithCoder nametok.BackEnd) Option {
	return func(d *Decoder) {
		var opts []nametok.Option
		if rangeCoder != nil {
			opts = append(opts, nametok.WithRangeCoder(rangeCoder))
		}
		if arithCoder != nil {
			opts = append(opts, nametok.WithArithmeticCoder(arithCoder))
		}
		d.dec = nametok.NewDecoder(opts...)
	}
}

// NewDecoder creates a stream decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{workers: runtime.NumCPU(), dec: nametok.NewDecoder()}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers < 1 {
		d.workers = runtime.NumCPU()
	}
	return d
}

type job struct {
	index int
	data  []byte
}

// result is a decoded block, or the error of decoding it, on its way to the
// collector.
type result struct {
	index int
	block Block
	err   error
}

// Each decodes every block of src and calls fn for each of them, in stream
// order. It stops at the first failing block, at the first error returned by
// fn, or when ctx is cancelled. All blocks before a failing block are
// delivered, regardless of the number of workers; blocks following it are
// not.
func (d *Decoder) Each(ctx context.Context, src Source, fn func(Block) error) error {
	if d.workers == 1 {
		return d.eachSequential(ctx, src, fn)
	}
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan job, d.workers*2)
	results := make(chan result, d.workers*2)

	// Producer: read frames and dispatch them
	g.Go(func() error {
		defer close(jobs)
		for i := 0; ; i++ {
			data, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			} else if err != nil {
				return err
			}
			select {
			case jobs <- job{index: i, data: data}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	var workers sync.WaitGroup
	for range d.workers {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for j := range jobs {
				b, err := d.decode(j)
				select {
				case results <- result{index: j.index, block: b, err: err}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	// Collector: deliver results in order. A decode failure ends the run
	// once every block before it is delivered.
	g.Go(func() error {
		pending := make(map[int]result)
		next := 0
		for r := range results {
			pending[r.index] = r
			for {
				nr, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if nr.err != nil {
					return nr.err
				}
				if err := fn(nr.block); err != nil {
					return err
				}
				next++
			}
		}
		return nil
	})
	return g.Wait()
}

func (d *Decoder) eachSequential(ctx context.Context, src Source, fn func(Block) error) error {
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}
		b, err := d.decode(job{index: i, data: data})
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
}

func (d *Decoder) decode(j job) (Block, error) {
	nb, err := d.dec.DecodeBlock(bytes.NewReader(j.data))
	d.metrics.observe(len(j.data), nb, err)
	if err != nil {
		tracer().Errorf("block %d: %v", j.index, err)
		return Block{}, fmt.Errorf("block %d: %w", j.index, err)
	}
	return Block{Index: j.index, Block: nb}, nil
}

// DecodeAll decodes every block of src and returns them in stream order.
func (d *Decoder) DecodeAll(ctx context.Context, src Source) ([]Block, error) {
	var blocks []Block
	names := 0
	err := d.Each(ctx, src, func(b Block) error {
		blocks = append(blocks, b)
		names += b.Header.NameCount
		return nil
	})
	if err != nil {
		return nil, err
	}
	tracer().Infof("decoded %d blocks, %d names, %d workers", len(blocks), names, d.workers)
	return blocks, nil
}
