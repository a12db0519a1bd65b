package display

import (
	"io"
	"log/slog"
	"sync"

	"github.com/isaacp5/OpenBlueFilter/gamma"
)

// Noop is an adapter with no visible effect, used when no supported display
// server is available. The rest of the application keeps working so the
// configuration survives until a real backend can take over.
type Noop struct {
	logger *slog.Logger

	mu      sync.Mutex
	current gamma.Adjustment
}

// NewNoop creates an adapter that records adjustments without applying them.
func NewNoop(logger *slog.Logger) *Noop {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Noop{logger: logger, current: gamma.Neutral}
}

func (n *Noop) Apply(adj gamma.Adjustment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = adj
	n.logger.Debug("noop: adjustment has no effect", "red", adj.Red, "green", adj.Green, "blue", adj.Blue)
	return nil
}

func (n *Noop) Revert() error {
	return n.Apply(gamma.Neutral)
}

func (n *Noop) Close() {}

// Current returns the last applied adjustment.
func (n *Noop) Current() gamma.Adjustment {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}
