package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProber_RecoversDegradedFacade(t *testing.T) {
	facade, flaky := buildResilient(t, nil)
	flaky.failing.Store(true)
	ctx := context.Background()

	for i := 0; i < failureThreshold; i++ {
		_, _ = facade.Search(ctx, "add numbers", DefaultOptions())
	}
	require.False(t, facade.Status().Healthy)

	flaky.failing.Store(false)

	prober := NewProber(facade, 10*time.Millisecond)
	prober.Start(ctx)
	defer prober.Stop()

	assert.Eventually(t, func() bool {
		return facade.Status().Healthy
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProber_StartIsIdempotent(t *testing.T) {
	facade, _ := buildResilient(t, nil)
	prober := NewProber(facade, 10*time.Millisecond)

	ctx := context.Background()
	prober.Start(ctx)
	prober.Start(ctx)
	prober.Stop()
}

func TestProber_StopWithoutStart(t *testing.T) {
	facade, _ := buildResilient(t, nil)
	prober := NewProber(facade, 10*time.Millisecond)
	prober.Stop()
}
