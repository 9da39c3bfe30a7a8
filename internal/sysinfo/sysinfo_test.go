package sysinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollect(t *testing.T) {
	info := Collect()
	assert.Positive(t, info.Cores)
	assert.NotEmpty(t, info.Platform)
	assert.NotEmpty(t, info.CPU)
	assert.True(t, strings.Contains(info.String(), info.Memory))
}
