package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestFlagMapStripsAutomationMarkers(t *testing.T) {
	m := &Manager{logger: zap.NewNop(), opts: Options{Headless: true}}
	flags := m.flagMap()

	assert.NotContains(t, flags, "enable-automation", "the automation banner flag must never be set")
	assert.Equal(t, "AutomationControlled", flags["disable-blink-features"])
}

func TestFlagMapAppliesOptions(t *testing.T) {
	m := &Manager{logger: zap.NewNop(), opts: Options{
		Headless:        false,
		IgnoreTLSErrors: true,
	}}
	flags := m.flagMap()

	assert.Equal(t, false, flags["headless"])
	assert.Equal(t, false, flags["disable-gpu"], "gpu stays on for headful runs")
	assert.Equal(t, true, flags["ignore-certificate-errors"])
}

func TestFlagMapParsesExtraArgs(t *testing.T) {
	m := &Manager{logger: zap.NewNop(), opts: Options{
		Args: []string{"--lang=de-AT", "--disable-notifications", "window-size=1280,1024"},
	}}
	flags := m.flagMap()

	assert.Equal(t, "de-AT", flags["lang"])
	assert.Equal(t, true, flags["disable-notifications"])
	assert.Equal(t, "1280,1024", flags["window-size"])
}

func TestFlagMapExtraArgsOverrideDefaults(t *testing.T) {
	m := &Manager{logger: zap.NewNop(), opts: Options{
		Headless: true,
		Args:     []string{"--disable-gpu=false"},
	}}
	flags := m.flagMap()

	assert.Equal(t, "false", flags["disable-gpu"])
}

func TestBuildAllocatorOptionsNotEmpty(t *testing.T) {
	m := &Manager{logger: zap.NewNop(), opts: Options{Headless: true, UserAgent: "Mozilla/5.0"}}
	opts := m.buildAllocatorOptions()
	assert.Greater(t, len(opts), len(m.flagMap()), "base options plus user agent")
}
