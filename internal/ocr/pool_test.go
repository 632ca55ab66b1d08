package ocr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validImage = "data:image/png;base64,iVBORw0KGgo="

// fakeEngine is a scriptable engine for pool tests
type fakeEngine struct {
	mu         sync.Mutex
	configured EngineParams
	recognize  func(ctx context.Context, imageData string) (*RecognitionOutput, error)
	closed     bool
}

func (e *fakeEngine) Configure(params EngineParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configured = params
	return nil
}

func (e *fakeEngine) Recognize(ctx context.Context, imageData string) (*RecognitionOutput, error) {
	if e.recognize != nil {
		return e.recognize(ctx, imageData)
	}
	return &RecognitionOutput{Text: "TOTAL $1.00", Confidence: 90}, nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func fakeFactory(recognize func(ctx context.Context, imageData string) (*RecognitionOutput, error)) EngineFactory {
	return func(ctx context.Context) (Engine, error) {
		return &fakeEngine{recognize: recognize}, nil
	}
}

func testPool(t *testing.T, maxEngines int, recognize func(ctx context.Context, imageData string) (*RecognitionOutput, error)) *Pool {
	t.Helper()
	pool := NewPool(fakeFactory(recognize), PoolConfig{MaxEngines: maxEngines}, zerolog.Nop())
	t.Cleanup(pool.Terminate)
	return pool
}

func TestProcessImageRejectsInvalidInputWithoutConsumingEngine(t *testing.T) {
	var created atomic.Int32
	pool := NewPool(func(ctx context.Context) (Engine, error) {
		created.Add(1)
		return &fakeEngine{}, nil
	}, PoolConfig{MaxEngines: 2}, zerolog.Nop())
	t.Cleanup(pool.Terminate)

	for _, payload := range []string{"", "not an image", "data:text/plain;base64,aGk="} {
		result, err := pool.ProcessImage(context.Background(), payload, ProcessOptions{})
		require.Error(t, err)
		assert.Nil(t, result)

		var invalid *InvalidImageError
		assert.True(t, errors.As(err, &invalid))
	}

	// invalid input must fail before any engine is even created
	assert.Equal(t, int32(0), created.Load())
}

func TestProcessImageReturnsTaggedResult(t *testing.T) {
	pool := testPool(t, 2, func(ctx context.Context, imageData string) (*RecognitionOutput, error) {
		return &RecognitionOutput{Text: "WALMART\nTOTAL $6.48", Confidence: 92}, nil
	})

	result, err := pool.ProcessImage(context.Background(), validImage, ProcessOptions{})
	require.NoError(t, err)

	assert.Equal(t, "WALMART\nTOTAL $6.48", result.Text)
	assert.Equal(t, 92.0, result.Confidence)
	assert.Equal(t, "high", string(result.ImageQuality))
	assert.Empty(t, result.ErrorDetails)
}

func TestProcessImageLowConfidenceIsNotAnError(t *testing.T) {
	pool := testPool(t, 1, func(ctx context.Context, imageData string) (*RecognitionOutput, error) {
		return &RecognitionOutput{Text: "blurry", Confidence: 12}, nil
	})

	result, err := pool.ProcessImage(context.Background(), validImage, ProcessOptions{MinConfidence: 30})
	require.NoError(t, err)

	assert.Equal(t, "low", string(result.ImageQuality))
	assert.NotEmpty(t, result.ErrorDetails)
	assert.Equal(t, "blurry", result.Text)
}

func TestProcessImageQualityTiers(t *testing.T) {
	tests := []struct {
		confidence float64
		quality    string
	}{
		{confidence: 10, quality: "low"},
		{confidence: 59.9, quality: "low"},
		{confidence: 60, quality: "medium"},
		{confidence: 84.9, quality: "medium"},
		{confidence: 85, quality: "high"},
		{confidence: 100, quality: "high"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("confidence_%.1f", tt.confidence), func(t *testing.T) {
			confidence := tt.confidence
			pool := testPool(t, 1, func(ctx context.Context, imageData string) (*RecognitionOutput, error) {
				return &RecognitionOutput{Text: "x", Confidence: confidence}, nil
			})

			result, err := pool.ProcessImage(context.Background(), validImage, ProcessOptions{MinConfidence: 1})
			require.NoError(t, err)
			assert.Equal(t, tt.quality, string(result.ImageQuality))
		})
	}
}

func TestConcurrentTasksShareBoundedEngines(t *testing.T) {
	const maxEngines = 2
	const tasks = maxEngines + 1

	var inFlight atomic.Int32
	var peak atomic.Int32

	pool := testPool(t, maxEngines, func(ctx context.Context, imageData string) (*RecognitionOutput, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		inFlight.Add(-1)
		return &RecognitionOutput{Text: "ok", Confidence: 80}, nil
	})

	var wg sync.WaitGroup
	results := make([]error, tasks)
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := pool.ProcessImage(context.Background(), validImage, ProcessOptions{})
			results[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		assert.NoError(t, err, "task %d", i)
	}
	assert.LessOrEqual(t, peak.Load(), int32(maxEngines))

	stats := pool.Stats()
	assert.Equal(t, maxEngines, stats.TotalEngines)
	assert.Equal(t, maxEngines, stats.AvailableWorkers)
	assert.Equal(t, 0, stats.QueuedTasks)
}

func TestTimeoutReleasesEngineOnceCancelHonored(t *testing.T) {
	release := make(chan struct{})
	pool := testPool(t, 1, func(ctx context.Context, imageData string) (*RecognitionOutput, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return &RecognitionOutput{Text: "late", Confidence: 80}, nil
		}
	})

	_, err := pool.ProcessImage(context.Background(), validImage, ProcessOptions{Timeout: 30 * time.Millisecond})
	require.Error(t, err)

	var timeout *TimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, 30*time.Millisecond, timeout.Timeout)

	// the engine honors cancellation, so the instance must come back and the
	// next task must succeed
	close(release)
	result, err := pool.ProcessImage(context.Background(), validImage, ProcessOptions{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "late", result.Text)
}

func TestInitializeFailsOnlyWhenNoEngineAvailable(t *testing.T) {
	boom := errors.New("recognizer unreachable")
	pool := NewPool(func(ctx context.Context) (Engine, error) {
		return nil, boom
	}, PoolConfig{MaxEngines: 3}, zerolog.Nop())
	t.Cleanup(pool.Terminate)

	err := pool.Initialize(context.Background())
	require.Error(t, err)

	var initErr *PoolInitializationError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, 3, initErr.Attempted)
	assert.ErrorIs(t, err, boom)
}

func TestInitializeToleratesPartialFailure(t *testing.T) {
	var calls atomic.Int32
	pool := NewPool(func(ctx context.Context) (Engine, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("first instance failed")
		}
		return &fakeEngine{}, nil
	}, PoolConfig{MaxEngines: 3}, zerolog.Nop())
	t.Cleanup(pool.Terminate)

	require.NoError(t, pool.Initialize(context.Background()))

	stats := pool.Stats()
	assert.True(t, stats.Initialized)
	assert.Equal(t, 2, stats.TotalEngines)
}

func TestTerminateRejectsNewTasks(t *testing.T) {
	pool := testPool(t, 1, nil)

	_, err := pool.ProcessImage(context.Background(), validImage, ProcessOptions{})
	require.NoError(t, err)

	pool.Terminate()

	_, err = pool.ProcessImage(context.Background(), validImage, ProcessOptions{})
	assert.ErrorIs(t, err, ErrPoolTerminated)
}

func TestCancelledWaiterReturnsCommittedEngine(t *testing.T) {
	pool := testPool(t, 1, nil)
	require.NoError(t, pool.Initialize(context.Background()))

	// Race a queued waiter's cancellation against the release that hands it
	// the engine. Whichever select branch wins, the engine must end up back
	// in the idle set.
	for i := 0; i < 200; i++ {
		engine, err := pool.acquire(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			if e, err := pool.acquire(ctx); err == nil {
				pool.release(e)
			}
		}()

		require.Eventually(t, func() bool {
			return pool.Stats().QueuedTasks == 1
		}, time.Second, time.Millisecond)

		// release pops the waiter and commits the handoff before the
		// cancellation fires
		pool.release(engine)
		cancel()
		<-done

		stats := pool.Stats()
		require.Equal(t, 1, stats.AvailableWorkers, "iteration %d leaked the engine", i)
		require.Equal(t, 0, stats.QueuedTasks)
	}
}

func TestHighQualityPathConfiguresEngine(t *testing.T) {
	engine := &fakeEngine{}
	pool := NewPool(func(ctx context.Context) (Engine, error) {
		return engine, nil
	}, PoolConfig{MaxEngines: 1}, zerolog.Nop())
	t.Cleanup(pool.Terminate)

	_, err := pool.ProcessImage(context.Background(), validImage, ProcessOptions{HighQuality: true})
	require.NoError(t, err)

	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, ReceiptWhitelist, engine.configured.Whitelist)
	assert.Equal(t, PageSegSingleBlock, engine.configured.PageSegMode)
	assert.Equal(t, HighQualityDPI, engine.configured.DPI)
	assert.Equal(t, HighQualityMinLineSize, engine.configured.MinLineSize)
}
