package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Manejo TÉCNICO do plantio: Pimentão, 2ª safra!")
	assert.Equal(t, []string{"manejo", "tecnico", "plantio", "pimentao", "safra"}, got)
}

func TestChampionQuery(t *testing.T) {
	assert.Equal(t, "Manejo tecnico plantio Soja", ChampionQuery("Soja"))
}

func TestMemoryStore_Search(t *testing.T) {
	store := NewMemoryStore([]Document{
		{ID: "s0", Topic: "soja_manual_tecnico", Text: "Adubação de cobertura da soja."},
		{ID: "s1", Topic: "soja_manual_tecnico", Text: "Manejo técnico no plantio da soja em solo argiloso."},
		{ID: "m0", Topic: "milho_safrinha_manual", Text: "Manejo técnico do plantio do milho safrinha."},
	})
	ctx := context.Background()

	t.Run("topic filter", func(t *testing.T) {
		got, err := store.Search(ctx, ChampionQuery("Soja"), "soja_manual_tecnico", 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"Manejo técnico no plantio da soja em solo argiloso."}, got)
	})

	t.Run("unfiltered ranks by overlap", func(t *testing.T) {
		got, err := store.Search(ctx, "plantio milho safrinha", "", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Contains(t, got[0], "milho")
	})

	t.Run("no match still returns nearest", func(t *testing.T) {
		got, err := store.Search(ctx, "irrigação", "milho_safrinha_manual", 3)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("unknown topic", func(t *testing.T) {
		got, err := store.Search(ctx, "soja", "banana_irrigada", 1)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Search(cctx, "soja", "", 1)
		assert.ErrorIs(t, err, context.Canceled)
	})

	assert.Equal(t, []string{"milho_safrinha_manual", "soja_manual_tecnico"}, store.Topics())
	assert.Equal(t, 3, store.Len())
}

func TestChunk(t *testing.T) {
	text := "first paragraph\n\nsecond   paragraph\r\n\r\n" + strings.Repeat("x", 25)
	got := Chunk(text, 20)
	assert.Equal(t, []string{"first paragraph", "second paragraph", strings.Repeat("x", 20), "xxxxx"}, got)

	assert.Equal(t, []string{"a b\nc d"}, Chunk("a b\n\nc d", 100))
	assert.Empty(t, Chunk("  \n\n ", 10))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("soja_manual_tecnico.txt", "Semeadura direta.\n\nControle de pragas.")
	write("milho_safrinha_manual.html", `<html><head><style>p{}</style><script>var x;</script></head>
<body><nav>menu</nav><h1>Milho</h1><p>Plantio   em fevereiro.</p></body></html>`)
	write("notes.pdf", "binary")

	docs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "milho_safrinha_manual", docs[0].Topic)
	assert.Equal(t, "milho_safrinha_manual#0", docs[0].ID)
	assert.Equal(t, "Milho\nPlantio em fevereiro.", docs[0].Text)
	assert.NotContains(t, docs[0].Text, "menu")

	assert.Equal(t, "soja_manual_tecnico", docs[1].Topic)
	assert.Equal(t, "Semeadura direta.\nControle de pragas.", docs[1].Text)

	_, err = LoadDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	got, err := Nop{}.Search(context.Background(), "q", "", 1)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

type retrieverFunc func(ctx context.Context, query, topic string, k int) ([]string, error)

func (f retrieverFunc) Search(ctx context.Context, query, topic string, k int) ([]string, error) {
	return f(ctx, query, topic, k)
}

func TestWithTimeout(t *testing.T) {
	slow := retrieverFunc(func(ctx context.Context, _, _ string, _ int) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := WithTimeout(slow, 10*time.Millisecond).Search(context.Background(), "q", "", 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	nop := Nop{}
	assert.Equal(t, Retriever(nop), WithTimeout(nop, 0))
}
