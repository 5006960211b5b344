package metrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends the custom registry to a Prometheus Pushgateway. The grouping
// key always carries the job name; instance is added when non-empty.
func Push(ctx context.Context, gatewayURL, job, instance string) error {
	if strings.TrimSpace(gatewayURL) == "" {
		return fmt.Errorf("%w: empty pushgateway url", ErrPush)
	}
	pusher := push.New(gatewayURL, job).Gatherer(customRegistry)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPush, err)
	}
	return nil
}
