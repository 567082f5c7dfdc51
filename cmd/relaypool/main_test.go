package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dep2p/go-relaypool/pkg/types"
)

func parse(t *testing.T, args ...string) *cliFlags {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f, err := parseFlags(fs, args)
	require.NoError(t, err)
	return f
}

func TestParseFlags_RepeatableRelays(t *testing.T) {
	f := parse(t, "-relay", "wss://a.test,wss://b.test", "-relay", " wss://c.test ", "-kinds", "1,7", "-limit", "5", "-timeout", "2s")
	assert.Equal(t, []string{"wss://a.test", "wss://b.test", "wss://c.test"}, []string(f.relays))
	assert.Equal(t, 5, f.limit)
	assert.Equal(t, 2*time.Second, f.timeout)

	filter, err := buildFilter(f)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 7}, filter.Kinds)
	require.NotNil(t, filter.Limit)
	assert.Equal(t, 5, *filter.Limit)
}

func TestBuildFilter_Invalid(t *testing.T) {
	_, err := buildFilter(parse(t, "-kinds", "note"))
	assert.Error(t, err)

	_, err = buildFilter(parse(t, "-authors", "abc"))
	assert.Error(t, err)

	_, err = buildFilter(parse(t, "-limit", "-1"))
	assert.Error(t, err)

	filter, err := buildFilter(parse(t, "-authors", strings.Repeat("AB", 32)))
	require.NoError(t, err)
	assert.Equal(t, []string{strings.Repeat("ab", 32)}, filter.Authors)
	assert.Nil(t, filter.Limit)
}

func TestPrintStream_StopsAfterEOSE(t *testing.T) {
	relay := types.MustParseRelayURL("wss://a.test")
	items := make(chan types.StreamItem, 4)
	items <- types.StreamItem{Kind: types.ItemEvent, Event: &types.Event{ID: types.NoteID{1}, Kind: 1}, Relay: relay}
	items <- types.StreamItem{Kind: types.ItemEOSE, Completed: []types.RelayURL{relay}}
	items <- types.StreamItem{Kind: types.ItemEvent, Event: &types.Event{ID: types.NoteID{2}, Kind: 1}, Relay: relay}

	var buf bytes.Buffer
	require.NoError(t, printStream(context.Background(), items, &buf, false))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, types.NoteID{1}.String(), gjson.Get(lines[0], "event.id").String())
	assert.Equal(t, relay.String(), gjson.Get(lines[0], "relay").String())
	assert.True(t, gjson.Get(lines[1], "eose").Bool())
	assert.False(t, gjson.Get(lines[1], "timed_out").Bool())
	assert.Equal(t, relay.String(), gjson.Get(lines[1], "completed.0").String())
}

func TestPrintStream_FollowUntilClosed(t *testing.T) {
	items := make(chan types.StreamItem, 4)
	items <- types.StreamItem{Kind: types.ItemEOSE, TimedOut: true}
	items <- types.StreamItem{Kind: types.ItemEvent, Event: &types.Event{ID: types.NoteID{2}, Kind: 1}}
	close(items)

	var buf bytes.Buffer
	require.NoError(t, printStream(context.Background(), items, &buf, true))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, gjson.Get(lines[0], "timed_out").Bool())
	assert.False(t, gjson.Get(lines[1], "relay").Exists())
}

func TestRun_VersionAndConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, run([]string{"-version"}, &buf))
	assert.Contains(t, buf.String(), "relaypool")

	buf.Reset()
	require.NoError(t, run([]string{"-print-config"}, &buf))
	assert.True(t, gjson.Valid(buf.String()))
	assert.True(t, gjson.Get(buf.String(), "pool.eose_timeout").Exists())
}
