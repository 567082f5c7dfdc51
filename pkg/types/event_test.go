package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	parentHex = "1111111111111111111111111111111111111111111111111111111111111111"
	rootHex   = "2222222222222222222222222222222222222222222222222222222222222222"
)

func TestNoteID_ParseAndString(t *testing.T) {
	id, err := ParseNoteID(parentHex)
	require.NoError(t, err)
	assert.Equal(t, parentHex, id.String())
	assert.Equal(t, "11111111", id.ShortString())
	assert.False(t, id.IsEmpty())

	_, err = ParseNoteID("abc")
	assert.ErrorIs(t, err, ErrInvalidNoteID)
	_, err = ParseNoteID(strings.Repeat("z", 64))
	assert.ErrorIs(t, err, ErrInvalidNoteID)
}

func TestEvent_MarshalNilTags(t *testing.T) {
	b, err := json.Marshal(Event{Kind: 1})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"tags":[]`)
}

func TestEvent_ReplyTo(t *testing.T) {
	t.Run("reply marker wins", func(t *testing.T) {
		ev := &Event{Tags: [][]string{
			{"e", rootHex, "", "root"},
			{"e", parentHex, "", "reply"},
		}}
		id, ok := ev.ReplyTo()
		require.True(t, ok)
		assert.Equal(t, parentHex, id.String())
	})

	t.Run("root only", func(t *testing.T) {
		ev := &Event{Tags: [][]string{{"e", rootHex, "", "root"}, {"p", "abc"}}}
		id, ok := ev.ReplyTo()
		require.True(t, ok)
		assert.Equal(t, rootHex, id.String())
	})

	t.Run("positional last e tag", func(t *testing.T) {
		ev := &Event{Tags: [][]string{{"e", rootHex}, {"e", parentHex}}}
		id, ok := ev.ReplyTo()
		require.True(t, ok)
		assert.Equal(t, parentHex, id.String())
	})

	t.Run("no e tags", func(t *testing.T) {
		_, ok := (&Event{Tags: [][]string{{"p", "abc"}}}).ReplyTo()
		assert.False(t, ok)
	})
}

func TestFilter_MarshalOmitsEmpty(t *testing.T) {
	since := int64(10)
	f := Filter{
		Authors: []string{"", "abc"},
		Kinds:   []int{1, 7},
		Tags:    map[string][]string{"e": {""}, "p": {"def"}},
		Since:   &since,
	}
	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"authors":["abc"],"kinds":[1,7],"#p":["def"],"since":10}`, string(b))

	b, err = json.Marshal(Filter{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}

func TestFilter_Matches(t *testing.T) {
	pid := mustNoteID(t, parentHex)
	ev := &Event{ID: pid, PubKey: "abc", Kind: 1, CreatedAt: 100, Tags: [][]string{{"t", "go"}}}

	until := int64(99)
	assert.True(t, (&Filter{Kinds: []int{1}}).Matches(ev))
	assert.True(t, (&Filter{IDs: []NoteID{pid}}).Matches(ev))
	assert.True(t, (&Filter{Tags: map[string][]string{"t": {"go", "rust"}}}).Matches(ev))
	assert.False(t, (&Filter{Tags: map[string][]string{"t": {"rust"}}}).Matches(ev))
	assert.False(t, (&Filter{Authors: []string{"xyz"}}).Matches(ev))
	assert.False(t, (&Filter{Until: &until}).Matches(ev))
	assert.False(t, (&Filter{}).Matches(nil))
}

func TestRelayVariantAndInfo(t *testing.T) {
	assert.False(t, VariantRegular.IsEphemeral())
	assert.True(t, VariantEphemeral.IsEphemeral())
	assert.True(t, VariantNWC.IsEphemeral())

	assert.True(t, ReadOnly.CanRead())
	assert.False(t, ReadOnly.CanWrite())
	assert.True(t, WriteOnly.CanWrite())
	assert.False(t, WriteOnly.CanRead())

	assert.True(t, NetworkSatisfied.IsUsable())
	assert.True(t, NetworkRequiresConnection.IsUsable())
	assert.False(t, NetworkUnsatisfied.IsUsable())
}

func mustNoteID(t *testing.T, s string) NoteID {
	t.Helper()
	id, err := ParseNoteID(s)
	require.NoError(t, err)
	return id
}
