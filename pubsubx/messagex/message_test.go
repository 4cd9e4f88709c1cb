package messagex

import (
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	t.Run("should generate a ksuid id", func(t *testing.T) {
		m := NewMessage([]byte("hello"))
		_, err := ksuid.Parse(m.ID)
		require.NoError(t, err)
		assert.Equal(t, m.ID, m.Attributes[IDAttributeKey])
		assert.Equal(t, []byte("hello"), m.Data)
	})

	t.Run("should use the given id and attributes", func(t *testing.T) {
		attrs := map[string]string{"origin": "console"}
		m := NewMessage([]byte("hello"), WithID("my-id"), WithAttributes(attrs))
		assert.Equal(t, "my-id", m.ID)
		assert.Equal(t, map[string]string{"origin": "console", IDAttributeKey: "my-id"}, m.Attributes)
		assert.NotContains(t, attrs, IDAttributeKey, "given attributes must not be mutated")
	})
}

func TestCopy(t *testing.T) {
	t.Run("should deep copy message", func(t *testing.T) {
		originalMessage := NewMessage([]byte("TestPayload"), WithID("myId"), WithAttributes(map[string]string{"test1": "value1"}))

		copyMessage := originalMessage.Copy()
		assert.Equal(t, originalMessage, copyMessage)
		assert.False(t, originalMessage == copyMessage)

		copyMessage.ID = "newId"
		copyMessage.Attributes["test1"] = "test2"
		copyMessage.Data[2] = byte(5)

		assert.NotEqual(t, originalMessage.ID, copyMessage.ID)
		assert.NotEqual(t, originalMessage.Attributes, copyMessage.Attributes)
		assert.NotEqual(t, originalMessage.Data, copyMessage.Data)
	})
}
