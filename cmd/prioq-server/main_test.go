package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Help(t *testing.T) {
	require.NoError(t, run([]string{"-h"}))
}

func TestRun_InvalidConfig(t *testing.T) {
	assert.Error(t, run([]string{"-queue-type", "fifo"}))
	assert.Error(t, run([]string{"-max-conn", "0"}))
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))

	_, err = newLogger("chatty")
	assert.Error(t, err)
}
