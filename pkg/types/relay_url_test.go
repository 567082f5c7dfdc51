package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRelayURL_Normalisation(t *testing.T) {
	cases := []struct{ in, want string }{
		{"wss://relay.damus.io", "wss://relay.damus.io"},
		{"wss://relay.damus.io/", "wss://relay.damus.io"},
		{"WSS://Relay.Damus.IO", "wss://relay.damus.io"},
		{"wss://relay.damus.io:443", "wss://relay.damus.io"},
		{"ws://relay.local:80/", "ws://relay.local"},
		{"ws://relay.local:7777", "ws://relay.local:7777"},
		{"wss://nos.lol/inbox", "wss://nos.lol/inbox"},
		{"wss://nos.lol/#frag", "wss://nos.lol"},
		{"wss://nos.lol/?auth=1", "wss://nos.lol?auth=1"},
		{"  wss://padded.example.com  ", "wss://padded.example.com"},
		{"ws://[::1]:80", "ws://[::1]"},
		{"ws://[::1]:8080/", "ws://[::1]:8080"},
	}
	for _, c := range cases {
		got, err := ParseRelayURL(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got.String(), c.in)
	}
}

func TestParseRelayURL_Identity(t *testing.T) {
	a := MustParseRelayURL("wss://relay.example.com/")
	b := MustParseRelayURL("WSS://RELAY.EXAMPLE.COM:443")
	assert.Equal(t, a, b)

	m := map[RelayURL]int{a: 1}
	assert.Equal(t, 1, m[b])
}

func TestParseRelayURL_Errors(t *testing.T) {
	_, err := ParseRelayURL("")
	assert.ErrorIs(t, err, ErrInvalidRelayURL)

	_, err = ParseRelayURL("https://relay.example.com")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = ParseRelayURL("wss://")
	assert.ErrorIs(t, err, ErrInvalidRelayURL)

	_, err = ParseRelayURLs([]string{"wss://ok.example.com", "nope"})
	assert.Error(t, err)
}

func TestRelayURL_JSON(t *testing.T) {
	u := MustParseRelayURL("wss://relay.example.com")
	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Equal(t, `"wss://relay.example.com"`, string(b))

	var back RelayURL
	require.NoError(t, json.Unmarshal([]byte(`"WSS://relay.example.com/"`), &back))
	assert.Equal(t, u, back)
}
