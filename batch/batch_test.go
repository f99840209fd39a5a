package batch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/npillmayer/nametok"
	"github.com/npillmayer/nametok/hexblock"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	readNames = "I17_08765:2:123:61541:01763#9\x00" +
		"I17_08765:2:123:1636:08611#9\x00" +
		"I17_08765:2:124:45613:16161#9\x00"
	srrNames = "SRR001.1/1\x00SRR001.2/1\x00SRR001.2/1\x00SRR002.2/2\x00"
)

func mustLoadFixture(t *testing.T, file string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "testdata", file))
	require.NoError(t, err)
	return data
}

// fixtureBlocks returns the four fixture blocks and the names they hold.
func fixtureBlocks(t *testing.T) ([][]byte, []string) {
	t.Helper()
	var blocks [][]byte
	var want []string
	for _, file := range []string{"names.hex", "features.hex"} {
		hb, err := hexblock.ReadAll(bytes.NewReader(mustLoadFixture(t, file)))
		require.NoError(t, err)
		for _, b := range hb {
			blocks = append(blocks, b.Data)
			if file == "names.hex" {
				want = append(want, readNames)
			} else {
				want = append(want, srrNames)
			}
		}
	}
	return blocks, want
}

func frame(t *testing.T, blocks [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, b := range blocks {
		require.NoError(t, WriteBlock(&buf, b))
	}
	return buf.Bytes()
}

// TestDecodeTraced decodes with test tracing switched on. The test tracer is
// not safe for concurrent use, so decoding is sequential here.
func TestDecodeTraced(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "nametok", "nametok.batch")
	defer teardown()

	blocks, want := fixtureBlocks(t)
	got, err := NewDecoder(WithWorkers(1)).DecodeAll(context.Background(), NewReader(bytes.NewReader(frame(t, blocks))))
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i, b := range got {
		require.Equal(t, want[i], string(b.Names))
	}
}

func TestDecodeAllInOrder(t *testing.T) {
	fixtures, names := fixtureBlocks(t)
	var blocks [][]byte
	var want []string
	for range 5 {
		blocks = append(blocks, fixtures...)
		want = append(want, names...)
	}
	for _, workers := range []int{1, 3, 8} {
		dec := NewDecoder(WithWorkers(workers))
		got, err := dec.DecodeAll(context.Background(), NewReader(bytes.NewReader(frame(t, blocks))))
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i, b := range got {
			require.Equal(t, i, b.Index)
			require.Equal(t, want[i], string(b.Names))
		}
	}
}

func TestZstdStream(t *testing.T) {
	blocks, want := fixtureBlocks(t)
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(frame(t, blocks))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r, err := NewZstdReader(&buf)
	require.NoError(t, err)
	defer r.Close()
	got, err := NewDecoder(WithWorkers(2)).DecodeAll(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i, b := range got {
		require.Equal(t, want[i], string(b.Names))
	}
}

func TestHexSource(t *testing.T) {
	src := NewHexSource(bytes.NewReader(mustLoadFixture(t, "features.hex")))
	got, err := NewDecoder().DecodeAll(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, nametok.RangeCoder, got[0].Header.BackEnd)
	require.Equal(t, nametok.ArithmeticCoder, got[1].Header.BackEnd)
}

func TestFailingBlockStopsDecoding(t *testing.T) {
	blocks, _ := fixtureBlocks(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	src := SliceSource{blocks[0], blocks[0][:20], blocks[1]}
	var delivered []int
	err := NewDecoder(WithWorkers(1), WithMetrics(m)).Each(context.Background(), &src, func(b Block) error {
		delivered = append(delivered, b.Index)
		return nil
	})
	require.ErrorIs(t, err, nametok.ErrTruncatedInput)
	require.ErrorContains(t, err, "block 1")
	require.Equal(t, []int{0}, delivered)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Blocks))
	require.Equal(t, 3.0, testutil.ToFloat64(m.Names))
	require.Equal(t, float64(len(readNames)), testutil.ToFloat64(m.NameBytes))
	require.Equal(t, float64(len(blocks[0])+20), testutil.ToFloat64(m.InputBytes))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("truncated")))
}

func TestParallelFailure(t *testing.T) {
	blocks, _ := fixtureBlocks(t)
	for range 50 {
		src := SliceSource{blocks[0], blocks[1], blocks[2][:20], blocks[3], blocks[0], blocks[1]}
		var delivered []int
		err := NewDecoder(WithWorkers(4)).Each(context.Background(), &src, func(b Block) error {
			delivered = append(delivered, b.Index)
			return nil
		})
		require.ErrorIs(t, err, nametok.ErrTruncatedInput)
		require.ErrorContains(t, err, "block 2")
		// every block before the failing one is delivered
		require.Equal(t, []int{0, 1}, delivered)
	}
}

func TestCallbackErrorStopsDecoding(t *testing.T) {
	fixtures, _ := fixtureBlocks(t)
	var blocks [][]byte
	for range 10 {
		blocks = append(blocks, fixtures...)
	}
	stop := errors.New("enough")
	for _, workers := range []int{1, 4} {
		src := SliceSource(blocks)
		calls := 0
		err := NewDecoder(WithWorkers(workers)).Each(context.Background(), &src, func(b Block) error {
			calls++
			if calls == 3 {
				return stop
			}
			return nil
		})
		require.ErrorIs(t, err, stop)
		require.Equal(t, 3, calls)
	}
}

func TestCancelledContext(t *testing.T) {
	blocks, _ := fixtureBlocks(t)
	src := SliceSource(blocks)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDecoder(WithWorkers(1)).DecodeAll(ctx, &src)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSubstitutedBackEnds(t *testing.T) {
	blocks, _ := fixtureBlocks(t)
	rejected := errors.New("rejected")
	reject := nametok.BackEndFunc(func([]byte, int) ([]byte, error) {
		return nil, rejected
	})
	// arithmetic coded blocks still use the default back-end
	src := SliceSource{blocks[1]}
	got, err := NewDecoder(WithBackEnds(reject, nil)).DecodeAll(context.Background(), &src)
	require.NoError(t, err)
	require.Equal(t, readNames, string(got[0].Names))

	src = SliceSource{blocks[0]}
	_, err = NewDecoder(WithBackEnds(reject, nil)).DecodeAll(context.Background(), &src)
	require.ErrorIs(t, err, rejected)
	require.Equal(t, "backend", FailureReason(err))
}

func TestFrameErrors(t *testing.T) {
	tests := []struct {
		name   string
		stream []byte
		want   error
	}{
		{name: "truncated length", stream: []byte{3, 0}, want: ErrTruncatedFrame},
		{name: "truncated data", stream: []byte{3, 0, 0, 0, 1, 2}, want: ErrTruncatedFrame},
		{name: "oversized frame", stream: []byte{0xff, 0xff, 0xff, 0xff}, want: ErrFrameTooLarge},
	}
	for _, tt := range tests {
		_, err := NewReader(bytes.NewReader(tt.stream)).Next()
		require.ErrorIs(t, err, tt.want, tt.name)
	}
	r := NewReader(bytes.NewReader([]byte{0, 0, 0, 0}))
	b, err := r.Next()
	require.NoError(t, err)
	require.Empty(t, b)
	_, err = r.Next()
	require.Equal(t, io.EOF, err)
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nametok.ErrUnterminated, want: "unterminated"},
		{err: nametok.ErrInvalidReference, want: "reference"},
		{err: errors.Join(nametok.ErrBackEnd, nametok.ErrTruncatedInput), want: "backend"},
		{err: ErrTruncatedFrame, want: "other"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FailureReason(tt.err))
	}
}

func TestNameIndex(t *testing.T) {
	blocks, _ := fixtureBlocks(t)
	src := SliceSource{blocks[2], blocks[0]}
	x := NewNameIndex()
	err := NewDecoder(WithWorkers(2)).Each(context.Background(), &src, func(b Block) error {
		x.Add(b)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, x.Len())

	locs, ok := x.Lookup("SRR001.2/1")
	require.True(t, ok)
	require.Equal(t, []Location{{Block: 0, Name: 1}, {Block: 0, Name: 2}}, locs)
	locs, ok = x.Lookup("I17_08765:2:123:1636:08611#9")
	require.True(t, ok)
	require.Equal(t, []Location{{Block: 1, Name: 1}}, locs)
	_, ok = x.Lookup("SRR001")
	require.False(t, ok)

	require.Equal(t, []string{"SRR001.1/1", "SRR001.2/1"}, x.WithPrefix("SRR001"))
	require.Len(t, x.WithPrefix("I17_08765:2:123:"), 2)
	require.True(t, x.HasPrefix("I17"))
	require.False(t, x.HasPrefix("SRR003"))
}
