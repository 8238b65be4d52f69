package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foodhub/ordersync/internal/domain/order"
)

func TestHiddenSet_FilterIsDisplayOnly(t *testing.T) {
	s := NewStore(zap.NewNop())
	s.Merge(order.NewFact(makeOrder("o-1", order.StatusDelivered, baseTime), order.SourcePoll))
	s.Merge(order.NewFact(makeOrder("o-2", order.StatusPlaced, baseTime), order.SourcePoll))

	h := NewHiddenSet()
	h.Hide("o-1")

	visible := h.Filter(s.GetAll())
	require.Len(t, visible, 1)
	assert.Equal(t, "o-2", visible[0].ID)

	// Hiding never touches the store or the order's status.
	got, ok := s.GetByID("o-1")
	require.True(t, ok)
	assert.Equal(t, order.StatusDelivered, got.Status)

	// Later facts for a hidden order still merge.
	assert.True(t, h.IsHidden("o-1"))
	h.Unhide("o-1")
	assert.Len(t, h.Filter(s.GetAll()), 2)
}
