package main

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
	"github.com/eliteGoblin/focusd/sigwatch/internal/message"
)

func TestDescribeSignal(t *testing.T) {
	now := time.Unix(1700000000, 0)
	encode := func(m message.Message) []byte {
		data, err := message.Encode(m)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "empty", data: nil, want: "empty (touch)"},
		{name: "fresh focus", data: encode(message.NewAt(message.Focus(42), now.Add(-3*time.Second))), want: "focus target=42 (age 3s)"},
		{name: "stale focus", data: encode(message.NewAt(message.Focus(42), now.Add(-time.Minute))), want: "stale focus target=42 (age 1m0s)"},
		{name: "unknown action", data: encode(message.NewAt(message.UnknownAction{Name: "reload"}, now)), want: "reload (age 0s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeSignal(tt.data, 10*time.Second, now))
		})
	}

	assert.Contains(t, DescribeSignal([]byte("{"), 10*time.Second, now), "corrupt")
}

func TestPassthroughFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("debug", false, "")
	flags.String("log-file", "", "")
	flags.Int("debounce-ms", 0, "")
	flags.String("config", "", "")

	assert.Nil(t, passthroughFlags(flags))

	require.NoError(t, flags.Parse([]string{"--debug", "--debounce-ms=50", "--config=/tmp/x"}))
	assert.Equal(t, []string{"--debug=true", "--debounce-ms=50"}, passthroughFlags(flags))
}

type listerFunc func() ([]domain.ConfigItem, error)

func (f listerFunc) List() ([]domain.ConfigItem, error) { return f() }

func TestDescribeConfigRows(t *testing.T) {
	tests := []struct {
		name  string
		items []domain.ConfigItem
		err   error
		want  string
	}{
		{name: "empty store", want: "Config rows: 0"},
		{name: "two rows", items: make([]domain.ConfigItem, 2), want: "Config rows: 2"},
		{name: "query fails", err: errors.New("database is locked"), want: "Config:      unreadable (database is locked)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describeConfigRows(listerFunc(func() ([]domain.ConfigItem, error) {
				return tt.items, tt.err
			}))
			assert.Equal(t, tt.want, got)
		})
	}
}
