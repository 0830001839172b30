package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/legalmesh/core"
)

var _ core.ArtifactStore = (*InMemoryStore)(nil)

func TestInMemoryStore_CopiesBytes(t *testing.T) {
	s := NewInMemoryStore()
	data := []byte("docx")
	require.NoError(t, s.Save("s1", "legal_output.docx", data))

	data[0] = 'X'
	out, err := s.Get("s1", "legal_output.docx")
	require.NoError(t, err)
	assert.Equal(t, "docx", string(out))

	out[0] = 'Y'
	again, _ := s.Get("s1", "legal_output.docx")
	assert.Equal(t, "docx", string(again))
}

func TestInMemoryStore_ScopedBySession(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Save("s1", "b.docx", nil))
	require.NoError(t, s.Save("s1", "a.docx", nil))
	require.NoError(t, s.Save("s2", "c.docx", nil))

	ids, err := s.List("s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.docx", "b.docx"}, ids)

	_, err = s.Get("s2", "a.docx")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_Delete(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Save("s1", "a", []byte("x")))
	require.NoError(t, s.Delete("s1", "a"))
	assert.ErrorIs(t, s.Delete("s1", "a"), ErrNotFound)
}
