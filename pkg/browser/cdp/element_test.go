package cdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinXPath(t *testing.T) {
	tests := []struct {
		name string
		base string
		rel  string
		want string
	}{
		{"relative descendant", `/html/body/table/tbody/tr[2]/td[3]/a`, `.//td[contains(@id, "status")]`, `/html/body/table/tbody/tr[2]/td[3]/a//td[contains(@id, "status")]`},
		{"relative child", `/html/body/div`, `./span`, `/html/body/div/span`},
		{"missing leading dot", `/html/body/div`, `span`, `/html/body/div/span`},
		{"already rooted at slash", `/html/body/div`, `/span`, `/html/body/div/span`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinXPath(tt.base, tt.rel))
		})
	}
}
