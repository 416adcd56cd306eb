package analyzer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/scribe-cli/pkg/chunker"
)

// fakeAnalyzer returns canned turns per chunk and optionally fails some
// chunk indices.
type fakeAnalyzer struct {
	mu        sync.Mutex
	failIdx   map[int]bool
	calls     int32
	inFlight  int32
	maxActive int32
}

func (f *fakeAnalyzer) AnalyzeChunk(ctx context.Context, req ChunkRequest) (*ChunkResult, error) {
	atomic.AddInt32(&f.calls, 1)
	active := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	if active > f.maxActive {
		f.maxActive = active
	}
	fail := f.failIdx[req.ChunkIndex]
	f.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("analysis failed for chunk %d", req.ChunkIndex)
	}

	return &ChunkResult{
		ChunkIndex: req.ChunkIndex,
		Turns: []Turn{
			{Idx: 0, Speaker: "Alice", Type: TurnTypeMonologue, Text: req.Text},
		},
	}, nil
}

func makeChunks(n int) []chunker.Chunk {
	chunks := make([]chunker.Chunk, n)
	for i := range chunks {
		chunks[i] = chunker.Chunk{
			Index:            i,
			StartChar:        i * 10,
			EndChar:          (i + 1) * 10,
			OverlapStartChar: (i + 1) * 10,
		}
	}
	return chunks
}

func TestRunner_AllChunksSucceed(t *testing.T) {
	fa := &fakeAnalyzer{}
	r := NewRunner(fa, RunnerConfig{Concurrency: 3}, nil)

	text := "0123456789abcdefghijABCDEFGHIJ"
	res := r.Run(context.Background(), text, makeChunks(3))

	assert.Len(t, res.Results, 3)
	assert.Empty(t, res.Errors)
	assert.False(t, res.Failed())
	assert.Equal(t, int32(3), fa.calls)

	// Each chunk saw its own slice of the text.
	require.Len(t, res.Results[1], 1)
	assert.Equal(t, "abcdefghij", res.Results[1][0].Text)
}

func TestRunner_PartialFailureRecorded(t *testing.T) {
	fa := &fakeAnalyzer{failIdx: map[int]bool{1: true}}
	r := NewRunner(fa, RunnerConfig{Concurrency: 2}, nil)

	text := "0123456789abcdefghijABCDEFGHIJ"
	res := r.Run(context.Background(), text, makeChunks(3))

	assert.Len(t, res.Results, 2)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors, 1)
	assert.False(t, res.Failed())

	_, ok := res.Results[1]
	assert.False(t, ok, "failed chunk must be absent, not empty")
}

func TestRunner_AllChunksFail(t *testing.T) {
	fa := &fakeAnalyzer{failIdx: map[int]bool{0: true, 1: true}}
	r := NewRunner(fa, RunnerConfig{Concurrency: 2}, nil)

	res := r.Run(context.Background(), "0123456789abcdefghij", makeChunks(2))

	assert.Empty(t, res.Results)
	assert.Len(t, res.Errors, 2)
	assert.True(t, res.Failed())
}

func TestRunner_BoundedConcurrency(t *testing.T) {
	fa := &fakeAnalyzer{}
	r := NewRunner(fa, RunnerConfig{Concurrency: 2}, nil)

	text := make([]byte, 200)
	for i := range text {
		text[i] = 'x'
	}
	res := r.Run(context.Background(), string(text), makeChunks(20))

	assert.Len(t, res.Results, 20)
	assert.LessOrEqual(t, fa.maxActive, int32(2))
}

func TestRunner_NoChunks(t *testing.T) {
	fa := &fakeAnalyzer{}
	r := NewRunner(fa, RunnerConfig{}, nil)

	res := r.Run(context.Background(), "", nil)

	assert.Empty(t, res.Results)
	assert.Empty(t, res.Errors)
	assert.False(t, res.Failed())
	assert.Equal(t, int32(0), fa.calls)
}

func TestRunner_CancelledContext(t *testing.T) {
	fa := &fakeAnalyzer{}
	r := NewRunner(fa, RunnerConfig{Concurrency: 2}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Run(ctx, "0123456789abcdefghij", makeChunks(2))

	assert.Empty(t, res.Results)
	assert.Len(t, res.Errors, 2)
}

func TestRunner_DefaultConcurrency(t *testing.T) {
	r := NewRunner(&fakeAnalyzer{}, RunnerConfig{}, nil)
	assert.Equal(t, DefaultConcurrency, r.cfg.Concurrency)
}
