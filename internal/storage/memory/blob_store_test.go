package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formpick/picklist-crawler/internal/storage/memory"
)

func TestBlobStore(t *testing.T) {
	t.Run("StoresCopyOfData", func(t *testing.T) {
		store := memory.New()
		data := []byte("%PDF")
		uri, err := store.PutObject(context.Background(), "a/b.pdf", "application/pdf", data)
		require.NoError(t, err)
		assert.Equal(t, "mem://a/b.pdf", uri)

		data[0] = 'X'
		got, ok := store.Object("a/b.pdf")
		require.True(t, ok)
		assert.Equal(t, []byte("%PDF"), got)
	})

	t.Run("EmptyPathRejected", func(t *testing.T) {
		store := memory.New()
		_, err := store.PutObject(context.Background(), " ", "application/pdf", nil)
		assert.Error(t, err)
	})

	t.Run("LenCountsObjects", func(t *testing.T) {
		store := memory.New()
		_, err := store.PutObject(context.Background(), "a.pdf", "application/pdf", []byte("1"))
		require.NoError(t, err)
		_, err = store.PutObject(context.Background(), "b.pdf", "application/pdf", []byte("2"))
		require.NoError(t, err)
		_, err = store.PutObject(context.Background(), "a.pdf", "application/pdf", []byte("3"))
		require.NoError(t, err)
		assert.Equal(t, 2, store.Len())
	})
}
