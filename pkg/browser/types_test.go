package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	css := ByCSS("#search")
	assert.Equal(t, "#search", css.String())
	assert.False(t, css.IsZero())

	xp := ByXPath(`//input[@type="password"]`)
	assert.Equal(t, `//input[@type="password"]`, xp.String())
	assert.False(t, xp.IsZero())

	assert.True(t, Query{}.IsZero())
}

func TestPageFuncAdaptsFunction(t *testing.T) {
	called := false
	factory := PageFunc(func(ctx context.Context) (Page, error) {
		called = true
		return nil, nil
	})

	_, err := factory.NewPage(context.Background())
	require.NoError(t, err)
	assert.True(t, called)
}
