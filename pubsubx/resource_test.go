package pubsubx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicCollection(t *testing.T) {
	t.Run("should derive short names", func(t *testing.T) {
		c := NewTopicCollection("projects/p1/topics/a", "projects/p1/topics/b")

		assert.Equal(t, []string{"a", "b"}, c.ShortNames())
		assert.Equal(t, []string{"projects/p1/topics/a", "projects/p1/topics/b"}, c.Names())
	})

	t.Run("should drop empty and repeated names", func(t *testing.T) {
		c := NewTopicCollection("projects/p1/topics/a", "", "projects/p1/topics/a")

		assert.Equal(t, []string{"a"}, c.ShortNames())
	})

	t.Run("should find a topic by full name", func(t *testing.T) {
		c := NewTopicCollection("projects/p1/topics/a")

		topic, ok := c.Find("projects/p1/topics/a")
		require.True(t, ok)
		assert.Equal(t, "a", topic.ShortName)

		_, ok = c.Find("a")
		assert.False(t, ok)
	})

	t.Run("should clone without sharing memory", func(t *testing.T) {
		c := NewTopicCollection("projects/p1/topics/a")
		cc := c.Clone()
		cc[0].ShortName = "changed"

		assert.Equal(t, "a", c[0].ShortName)
	})
}

func TestPublishRequest(t *testing.T) {
	t.Run("should resolve a full name to the short name", func(t *testing.T) {
		r := NewPublishRequest("projects/p1/topics/orders", "{}")

		assert.Equal(t, "orders", r.TopicShortName)
		assert.NoError(t, r.Validate())
	})

	t.Run("should reject an empty topic", func(t *testing.T) {
		assert.Error(t, NewPublishRequest("", "{}").Validate())
	})
}
