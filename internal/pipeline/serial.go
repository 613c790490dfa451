package pipeline

import (
	"context"

	"github.com/banshee-data/sensorfusion/internal/serialmux"
)

// RunSerial subscribes to mux and processes measurement lines until ctx is
// cancelled or the mux closes the subscription. Bad lines are logged and
// skipped.
func (p *Pipeline) RunSerial(ctx context.Context, mux serialmux.SerialMuxInterface) error {
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if serialmux.ClassifyLine(line) != serialmux.LineTypeMeasurement {
				continue
			}
			if err := p.HandleLine(line); err != nil {
				logf("serial: %v", err)
			}
		}
	}
}
