package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_SetDefaults(t *testing.T) {
	assert := assert.New(t)

	c := &Config{Host: "dnac.example", Port: "8443", TaskTimeout: time.Minute}
	c.setDefaults()

	assert.Equal("https", c.Scheme)
	assert.Equal("8443", c.Port)
	assert.Equal(DefaultUser, c.User)
	assert.Equal(DefaultVersion, c.Version)
	assert.Equal(time.Minute, c.TaskTimeout)
	assert.Equal(DefaultPollInterval, c.PollInterval)
	assert.Equal(30*time.Second, c.Timeout)
}

func Test_GetConfig_Singleton(t *testing.T) {
	first := GetConfig()
	NewConfig(&Config{Host: "ignored"})

	assert.Same(t, first, GetConfig())
	assert.Equal(t, DefaultPort, GetConfig().Port)
}
