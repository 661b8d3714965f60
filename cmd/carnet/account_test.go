package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPassword(t *testing.T) {
	pw, err := readPassword("from-flag", false, strings.NewReader("ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-flag", pw)

	pw, err = readPassword("", true, strings.NewReader("s3cret pass\r\nsecond line\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret pass", pw)

	pw, err = readPassword("", true, strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)

	_, err = readPassword("", false, nil)
	assert.Error(t, err)

	_, err = readPassword("", true, strings.NewReader("\n"))
	assert.Error(t, err)
}
