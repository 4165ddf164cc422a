package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_String_RendersAppName(t *testing.T) {
	c := Config{AppName: "inko", Logging: GetDefaultLoggingConfig()}
	out := c.String()
	assert.Contains(t, out, "app-name: inko")
}
