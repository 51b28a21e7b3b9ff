package slices2

import (
	"context"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

func TestParMapErr(t *testing.T) {
	ctx := context.Background()
	sem := semaphore.NewWeighted(4)
	ys, err := ParMapErr(ctx, sem, []int{1, 2, 3, 4, 5}, func(ctx context.Context, x int) (string, error) {
		return strconv.Itoa(x * 10), nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"10", "20", "30", "40", "50"}, ys)
}

// The task's error must come back to the caller, even when the group's
// cancellation makes a later Acquire fail first.
func TestParMapErrTaskError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errBoom := errors.New("boom")
	sem := semaphore.NewWeighted(1)
	_, err := ParMapErr(ctx, sem, []int{0, 1, 2}, func(ctx context.Context, x int) (int, error) {
		if x == 0 {
			cancel()
			return 0, errBoom
		}
		return x, nil
	})
	require.ErrorIs(t, err, errBoom)
}
