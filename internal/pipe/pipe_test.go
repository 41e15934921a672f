package pipe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/toy-irc-client/internal/pipe"
)

func write(t *testing.T, p *pipe.Pipe, data string) {
	t.Helper()
	region, err := p.Grow(len(data))
	require.NoError(t, err)
	n := copy(region, data)
	require.NoError(t, p.Advance(n))
}

func TestPipe_ReadSeesAdvancedBytes(t *testing.T) {
	p := pipe.New()
	write(t, p, "hello")

	res, err := p.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Buffer))
	assert.False(t, res.Completed)
	assert.Equal(t, 5, p.Len())
}

func TestPipe_ConsumeKeepsUnconsumedTail(t *testing.T) {
	p := pipe.New()
	write(t, p, "abc\r\npartial")

	res, err := p.Read(context.Background())
	require.NoError(t, err)
	p.Consume(5, len(res.Buffer))

	write(t, p, "-more")

	res, err = p.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "partial-more", string(res.Buffer))
}

func TestPipe_ReadWaitsForUnexaminedBytes(t *testing.T) {
	p := pipe.New()
	write(t, p, "partial")

	res, err := p.Read(context.Background())
	require.NoError(t, err)
	p.Consume(0, len(res.Buffer))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan string, 1)
	go func() {
		res, err := p.Read(context.Background())
		if err != nil {
			got <- err.Error()
			return
		}
		got <- string(res.Buffer)
	}()

	write(t, p, " line")

	select {
	case s := <-got:
		assert.Equal(t, "partial line", s)
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not wake up after Advance")
	}
}

func TestPipe_CloseWriterCompletesRead(t *testing.T) {
	p := pipe.New()
	write(t, p, "tail")
	p.CloseWriter(nil)

	res, err := p.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.NoError(t, res.Err)
	assert.Equal(t, "tail", string(res.Buffer))

	_, err = p.Grow(1)
	assert.ErrorIs(t, err, pipe.ErrWriterClosed)
}

func TestPipe_CloseWriterCarriesError(t *testing.T) {
	boom := errors.New("connection reset")
	p := pipe.New()
	p.CloseWriter(boom)

	res, err := p.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.ErrorIs(t, res.Err, boom)
}

func TestPipe_GrowPreservesViewHeldByReader(t *testing.T) {
	p := pipe.New(pipe.WithInitialSize(8))
	write(t, p, "12345678")

	res, err := p.Read(context.Background())
	require.NoError(t, err)
	view := res.Buffer

	// Forces a reallocation while the reader still holds its view.
	write(t, p, "abcdefghijklmnop")
	assert.Equal(t, "12345678", string(view))

	p.Consume(4, len(view))
	res, err = p.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5678abcdefghijklmnop", string(res.Buffer))
}

func TestPipe_GrowReclaimsConsumedPrefix(t *testing.T) {
	p := pipe.New(pipe.WithInitialSize(16))
	write(t, p, "0123456789abcdef")

	res, err := p.Read(context.Background())
	require.NoError(t, err)
	p.Consume(12, len(res.Buffer))

	region, err := p.Grow(8)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(region), 8)
	copy(region, "XYZ")
	require.NoError(t, p.Advance(3))

	res, err = p.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cdefXYZ", string(res.Buffer))
}

func TestPipe_FlushAppliesBackpressure(t *testing.T) {
	p := pipe.New(pipe.WithPauseThreshold(8), pipe.WithResumeThreshold(4))
	write(t, p, "a\r\nb\r\nc\r\nd\r\n")

	flushed := make(chan error, 1)
	go func() {
		flushed <- p.Flush(context.Background())
	}()

	select {
	case err := <-flushed:
		t.Fatalf("Flush returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	res, err := p.Read(context.Background())
	require.NoError(t, err)
	p.Consume(len(res.Buffer), len(res.Buffer))

	select {
	case err := <-flushed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Flush did not resume after Consume")
	}
}

func TestPipe_FlushDoesNotWaitOnExaminedBacklog(t *testing.T) {
	p := pipe.New(pipe.WithPauseThreshold(4), pipe.WithResumeThreshold(2))
	write(t, p, "a long line without terminator")

	res, err := p.Read(context.Background())
	require.NoError(t, err)
	p.Consume(0, len(res.Buffer))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, p.Flush(ctx))
}

func TestPipe_CloseReaderReleasesWriter(t *testing.T) {
	p := pipe.New(pipe.WithPauseThreshold(2), pipe.WithResumeThreshold(1))
	write(t, p, "xyz")

	flushed := make(chan error, 1)
	go func() {
		flushed <- p.Flush(context.Background())
	}()

	p.CloseReader()

	select {
	case err := <-flushed:
		assert.ErrorIs(t, err, pipe.ErrReaderClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Flush did not observe CloseReader")
	}

	_, err := p.Read(context.Background())
	assert.ErrorIs(t, err, pipe.ErrReaderClosed)
}

func TestPipe_ConsumeOutOfRangePanics(t *testing.T) {
	p := pipe.New()
	write(t, p, "abc")
	_, err := p.Read(context.Background())
	require.NoError(t, err)

	assert.Panics(t, func() { p.Consume(4, 4) })
}

func TestPipe_ConcurrentProducerConsumer(t *testing.T) {
	p := pipe.New(pipe.WithInitialSize(16), pipe.WithPauseThreshold(64), pipe.WithResumeThreshold(32))
	const total = 10000

	go func() {
		for i := 0; i < total; i++ {
			region, err := p.Grow(1)
			if err != nil {
				return
			}
			region[0] = byte(i % 251)
			if err := p.Advance(1); err != nil {
				return
			}
			if err := p.Flush(context.Background()); err != nil {
				return
			}
		}
		p.CloseWriter(nil)
	}()

	seen := 0
	for {
		res, err := p.Read(context.Background())
		require.NoError(t, err)
		for i, b := range res.Buffer {
			require.Equal(t, byte((seen+i)%251), b)
		}
		seen += len(res.Buffer)
		p.Consume(len(res.Buffer), len(res.Buffer))
		if res.Completed {
			break
		}
	}
	assert.Equal(t, total, seen)
}
