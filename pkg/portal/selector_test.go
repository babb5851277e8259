package portal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveFirstPicksFirstMatchingStrategy(t *testing.T) {
	primary := newFakeElement("input", "")
	secondary := newFakeElement("input", "")
	page := newFakePage().
		addElement("#secondary", secondary).
		addElement("#primary", primary)

	cascade := []Strategy{
		css("primary", "#primary"),
		css("secondary", "#secondary"),
	}

	el, err := ResolveFirst(context.Background(), page, cascade, time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, primary, el)
}

func TestResolveFirstFallsThroughMisses(t *testing.T) {
	fallback := newFakeElement("button", "Suchen")
	page := newFakePage().addElement(".btn-search", fallback)

	cascade := []Strategy{
		css("missing id", "#search"),
		css("missing class", ".search-button"),
		css("present class", ".btn-search"),
	}

	el, err := ResolveFirst(context.Background(), page, cascade, time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, fallback, el)
}

func TestResolveFirstSkipsHiddenAndDisabled(t *testing.T) {
	hidden := newFakeElement("input", "")
	hidden.hidden = true
	disabled := newFakeElement("input", "")
	disabled.disabl = true
	usable := newFakeElement("input", "")

	page := newFakePage().addElement("#username", hidden, disabled, usable)

	el, err := ResolveFirst(context.Background(), page, []Strategy{css("by id", "#username")},
		time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, usable, el)
}

func TestResolveFirstExhaustionIsControlNotFound(t *testing.T) {
	page := newFakePage()
	cascade := []Strategy{css("a", "#a"), css("b", "#b"), xpath("c", `//input`)}

	_, err := ResolveFirst(context.Background(), page, cascade, time.Millisecond, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrControlNotFound)
}

func TestResolveAllReturnsFirstNonEmptySet(t *testing.T) {
	page := newFakePage().
		addElement(`a[ng-click*="openDetail"]`, newFakeElement("a", "12345678901"), newFakeElement("a", "12345678902"))

	cascade := []Strategy{
		css("exact", `a[ng-click="openDetail(parcel.tuNo, '')"]`),
		css("contains", `a[ng-click*="openDetail"]`),
	}

	elements, strategy, err := ResolveAll(context.Background(), page, cascade, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, elements, 2)
	assert.Equal(t, "contains", strategy.Name)
}

func TestResolveAllExhaustionIsControlNotFound(t *testing.T) {
	page := newFakePage()
	_, _, err := ResolveAll(context.Background(), page, []Strategy{css("only", "#nothing")}, zap.NewNop())
	assert.ErrorIs(t, err, ErrControlNotFound)
}
