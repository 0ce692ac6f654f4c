package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "github.com/Leryan/flobot/pkg/logx"
)

func drivers(t *testing.T) map[string]Config {
	dir := t.TempDir()
	return map[string]Config{
		"sqlite": {Driver: "sqlite", Path: filepath.Join(dir, "flobot.db")},
		"file":   {Driver: "file", Path: filepath.Join(dir, "flobot.json")},
	}
}

func TestTriggers(t *testing.T) {
	for name, cfg := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st, err := Open(cfg, logx.Nop())
			require.NoError(t, err)
			defer st.Close()

			require.NoError(t, st.AddTextTrigger(ctx, "T1", " Hello ", "world"))
			require.NoError(t, st.AddReactionTrigger(ctx, "T1", "cafe", "coffee"))
			require.NoError(t, st.AddTextTrigger(ctx, "T2", "hello", "other team"))

			got, err := st.ListTriggers(ctx, "T1")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "cafe", got[0].Word)
			assert.True(t, got[0].IsReaction())
			assert.Equal(t, "hello", got[1].Word)
			assert.Equal(t, "world", got[1].Text)

			// replacing a text trigger with a reaction
			require.NoError(t, st.AddReactionTrigger(ctx, "T1", "hello", "wave"))
			got, err = st.ListTriggers(ctx, "T1")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "wave", got[1].Emoji)
			assert.Empty(t, got[1].Text)

			require.NoError(t, st.DelTrigger(ctx, "T1", "HELLO"))
			assert.ErrorIs(t, st.DelTrigger(ctx, "T1", "hello"), ErrNotFound)
			got, err = st.ListTriggers(ctx, "T1")
			require.NoError(t, err)
			assert.Len(t, got, 1)

			assert.Error(t, st.AddTextTrigger(ctx, "T1", "  ", "x"))
		})
	}
}

func TestEdits(t *testing.T) {
	for name, cfg := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st, err := Open(cfg, logx.Nop())
			require.NoError(t, err)
			defer st.Close()

			require.NoError(t, st.AddEdit(ctx, "T1", "Shrug", "¯\\_(ツ)_/¯"))
			require.NoError(t, st.AddEdit(ctx, "T1", "lol", "LOL"))
			require.NoError(t, st.AddEdit(ctx, "T1", "lol", "mdr"))
			require.NoError(t, st.AddEdit(ctx, "T2", "lol", "other team"))

			got, err := st.ListEdits(ctx, "T1")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "lol", got[0].Word)
			assert.Equal(t, "mdr", got[0].Replace)
			assert.Equal(t, "shrug", got[1].Word)

			e, err := st.FindEdit(ctx, "T1", "SHRUG")
			require.NoError(t, err)
			assert.Equal(t, "¯\\_(ツ)_/¯", e.Replace)
			_, err = st.FindEdit(ctx, "T3", "lol")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, st.DelEdit(ctx, "T1", "lol"))
			assert.ErrorIs(t, st.DelEdit(ctx, "T1", "lol"), ErrNotFound)
			assert.Error(t, st.AddEdit(ctx, "T1", "x", " "))
		})
	}
}

func TestJokes(t *testing.T) {
	for name, cfg := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st, err := Open(cfg, logx.Nop())
			require.NoError(t, err)
			defer st.Close()

			first, err := st.AddJoke(ctx, "T1", "toc toc")
			require.NoError(t, err)
			second, err := st.AddJoke(ctx, "T1", "c'est l'histoire")
			require.NoError(t, err)
			_, err = st.AddJoke(ctx, "T2", "ailleurs")
			require.NoError(t, err)
			assert.Greater(t, second, first)

			got, err := st.ListJokes(ctx, "T1")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, first, got[0].ID)
			assert.Equal(t, "toc toc", got[0].Text)

			assert.ErrorIs(t, st.DelJoke(ctx, "T2", first), ErrNotFound)
			require.NoError(t, st.DelJoke(ctx, "T1", first))
			got, err = st.ListJokes(ctx, "T1")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, second, got[0].ID)

			_, err = st.AddJoke(ctx, "T1", "   ")
			assert.Error(t, err)
		})
	}
}

func TestSnapshotsSurviveReopen(t *testing.T) {
	for name, cfg := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st, err := Open(cfg, logx.Nop())
			require.NoError(t, err)

			_, ok, err := st.GetSnapshot(ctx, "tempo")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, st.PutSnapshot(ctx, "tempo", []byte(`{"store":{}}`)))
			require.NoError(t, st.PutSnapshot(ctx, "tempo", []byte(`{"store":{"k":"v"}}`)))
			require.NoError(t, st.AddTextTrigger(ctx, "T1", "a", "b"))
			require.NoError(t, st.Close())

			st, err = Open(cfg, logx.Nop())
			require.NoError(t, err)
			defer st.Close()

			b, ok, err := st.GetSnapshot(ctx, "tempo")
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"store":{"k":"v"}}`, string(b))

			got, err := st.ListTriggers(ctx, "T1")
			require.NoError(t, err)
			assert.Len(t, got, 1)
		})
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "none"}, logx.Logger{})
	assert.NoError(t, err)
	assert.Nil(t, st)

	_, err = Open(Config{Driver: "postgres"}, logx.Logger{})
	assert.Error(t, err)

	_, err = Open(Config{Driver: "sqlite"}, logx.Logger{})
	assert.Error(t, err)
}
