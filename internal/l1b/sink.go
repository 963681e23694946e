package l1b

import (
	"context"

	"github.com/signalsfoundry/delay-doppler-processor/model"
)

// MultiSink fans every record out to each sink in order, stopping at the
// first error.
type MultiSink []RecordSink

func (m MultiSink) Write(ctx context.Context, s *model.SurfaceLocation) error {
	for _, sink := range m {
		if err := sink.Write(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
