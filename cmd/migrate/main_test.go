package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		args []string
		want command
	}{
		{nil, command{name: "up"}},
		{[]string{"up"}, command{name: "up"}},
		{[]string{"DOWN"}, command{name: "down", n: 1}},
		{[]string{"down", "3"}, command{name: "down", n: 3}},
		{[]string{"version"}, command{name: "version"}},
		{[]string{"force", "1"}, command{name: "force", n: 1}},
		{[]string{"force", "-1"}, command{name: "force", n: -1}},
	}
	for _, tt := range tests {
		got, err := parseCommand(tt.args)
		require.NoError(t, err, "%v", tt.args)
		assert.Equal(t, tt.want, got, "%v", tt.args)
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, args := range [][]string{
		{"sideways"},
		{"up", "2"},
		{"down", "0"},
		{"down", "x"},
		{"force"},
		{"force", "abc"},
		{"force", "-2"},
	} {
		_, err := parseCommand(args)
		assert.Error(t, err, "%v", args)
	}
}
