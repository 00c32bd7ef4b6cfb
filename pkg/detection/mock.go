package detection

import (
	"context"
	"image"
	"sync"
)

// Mock implements Detector for testing.
// All methods can be customized via function fields.
type Mock struct {
	// LoadFunc is called when Load is invoked. If nil, Load succeeds.
	LoadFunc func(ctx context.Context) error

	// DetectFunc is called when Detect is invoked. If nil, no faces are found.
	DetectFunc func(ctx context.Context, frame image.Image) ([]Detection, error)

	mu    sync.Mutex
	calls map[string]int
}

// NewMock creates a mock that loads fine and never sees a face.
func NewMock() *Mock {
	return &Mock{}
}

// Scripted returns a mock that plays back one result per Detect call and
// then keeps returning the last one.
func Scripted(frames ...[]Detection) *Mock {
	var (
		mu sync.Mutex
		i  int
	)
	return &Mock{
		DetectFunc: func(ctx context.Context, frame image.Image) ([]Detection, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(frames) == 0 {
				return nil, nil
			}
			if i >= len(frames) {
				return frames[len(frames)-1], nil
			}
			out := frames[i]
			i++
			return out, nil
		},
	}
}

// Load calls LoadFunc and records the call.
func (m *Mock) Load(ctx context.Context) error {
	m.record("Load")
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return nil
}

// Detect calls DetectFunc and records the call.
func (m *Mock) Detect(ctx context.Context, frame image.Image) ([]Detection, error) {
	m.record("Detect")
	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, frame)
	}
	return nil, nil
}

// Close records the call.
func (m *Mock) Close() error {
	m.record("Close")
	return nil
}

func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}
