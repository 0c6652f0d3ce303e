package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/partimento/internal/catalog"
	"github.com/Yates-Labs/partimento/internal/chain"
	"github.com/Yates-Labs/partimento/internal/notation"
	"github.com/Yates-Labs/partimento/internal/score"
)

// execute runs the root command in an isolated home and working directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(home)
	t.Setenv("PARTIMENTO_AUDIO_CONVERTER", "partimento-no-such-synth")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// exportedChain builds a chain directory with a partimento, its MusicXML and
// a manifest.
func exportedChain(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	store, err := chain.NewStore(dir)
	require.NoError(t, err)
	p := score.Partimento{
		Title:    "Partimento in G",
		Key:      "G major",
		Bassline: []score.Measure{{"G2"}, {"C3", "D3"}, {"G2"}},
	}
	path, _, err := store.Append("partimento", p, "generate-partimento", "", "G major, three bars")
	require.NoError(t, err)
	xml := filepath.Join(dir, "partimento.musicxml")
	require.NoError(t, notation.NewExporter(nil).PartimentoToMusicXML(path, xml))

	m := chain.NewManifest("generate-and-review-partimento", "G major, three bars")
	m.SetFiles("partimento_versions", []string{path})
	m.SetFile("musicxml", xml)
	m.Patched = map[string]bool{"partimento": false}
	require.NoError(t, chain.WriteManifest(dir, m))
	return dir
}

func TestDescribeChain(t *testing.T) {
	dir := exportedChain(t)

	out, err := execute(t, "describe-chain", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "generate-and-review-partimento")
	assert.Contains(t, out, "G major, three bars")
	assert.Contains(t, out, "partimento_01.json")
	assert.Contains(t, out, "partimento.musicxml")
}

func TestDescribeChain_MissingManifest(t *testing.T) {
	_, err := execute(t, "describe-chain", t.TempDir())
	assert.True(t, errors.Is(err, chain.ErrManifestNotFound), "got %v", err)
}

func TestInspectMusicXML(t *testing.T) {
	dir := exportedChain(t)

	out, err := execute(t, "inspect-musicxml", filepath.Join(dir, "partimento.musicxml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Partimento in G")
	assert.Contains(t, out, "Bass")
	assert.Contains(t, out, "4/4")
}

func TestExportPartimento(t *testing.T) {
	dir := exportedChain(t)
	target := filepath.Join(t.TempDir(), "out")

	out, err := execute(t, "export-partimento", filepath.Join(dir, "partimento_01.json"), target)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(target, "partimento.musicxml"))
	assert.FileExists(t, filepath.Join(target, "partimento.mid"))
	assert.Contains(t, out, "Audio skipped")
}

func TestChainCommand_RejectsBadConfig(t *testing.T) {
	t.Setenv("PARTIMENTO_LLM_PROVIDER", "llama")
	_, err := execute(t, "chain-partimento-only", "C major")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider")
}

func TestPushAndListWithGitCatalog(t *testing.T) {
	dir := exportedChain(t)
	t.Setenv("PARTIMENTO_CATALOG_BACKEND", "git")
	t.Setenv("PARTIMENTO_CATALOG_PATH", filepath.Join(t.TempDir(), "catalog"))

	out, err := execute(t, "push-chain", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded partimento.musicxml")

	m, err := chain.ReadManifest(dir)
	require.NoError(t, err)
	assert.Contains(t, m.ExportedMusicXMLURL, "outputs/"+m.ID+"_partimento.musicxml")

	// A second chain gets its own upload, and pushing the first again succeeds.
	other := exportedChain(t)
	_, err = execute(t, "push-chain", other)
	require.NoError(t, err)
	om, err := chain.ReadManifest(other)
	require.NoError(t, err)
	assert.NotEqual(t, m.ExportedMusicXMLURL, om.ExportedMusicXMLURL)

	_, err = execute(t, "push-chain", dir)
	require.NoError(t, err)

	out, err = execute(t, "list-realizations")
	require.NoError(t, err)
	assert.Contains(t, out, "G major, three bars")
	assert.Contains(t, out, "3 realization(s)")
}

type fakeCatalog struct {
	uploaded []string
	saved    []catalog.Document
	err      error
}

func (f *fakeCatalog) Upload(ctx context.Context, localPath, remoteName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploaded = append(f.uploaded, remoteName)
	return "https://example.test/outputs/" + remoteName, nil
}

func (f *fakeCatalog) SaveMetadata(ctx context.Context, doc catalog.Document) (string, error) {
	f.saved = append(f.saved, doc)
	return "doc-1", nil
}

func (f *fakeCatalog) List(ctx context.Context) ([]catalog.Document, error) {
	return f.saved, nil
}

func TestPushChain(t *testing.T) {
	dir := exportedChain(t)
	m, err := chain.ReadManifest(dir)
	require.NoError(t, err)

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetContext(context.Background())
	c.SetOut(&out)

	fake := &fakeCatalog{}
	require.NoError(t, pushChain(c, fake, dir, filepath.Join(dir, "partimento.musicxml"), m))

	remote := m.ID + "_partimento.musicxml"
	assert.Equal(t, []string{remote}, fake.uploaded)
	require.Len(t, fake.saved, 1)
	assert.Equal(t, "https://example.test/outputs/"+remote, fake.saved[0]["exported_musicxml_url"])
	assert.Equal(t, "generate-and-review-partimento", fake.saved[0]["mode"])
	assert.Contains(t, out.String(), "doc-1")
}

func TestPushChain_UploadFailure(t *testing.T) {
	dir := exportedChain(t)
	m, err := chain.ReadManifest(dir)
	require.NoError(t, err)

	c := &cobra.Command{}
	c.SetContext(context.Background())
	c.SetOut(&bytes.Buffer{})

	fake := &fakeCatalog{err: catalog.ErrUploadFailed}
	err = pushChain(c, fake, dir, filepath.Join(dir, "partimento.musicxml"), m)
	assert.ErrorIs(t, err, catalog.ErrUploadFailed)
	assert.Empty(t, fake.saved)

	after, err := chain.ReadManifest(dir)
	require.NoError(t, err)
	assert.Empty(t, after.ExportedMusicXMLURL)
}

func TestRenderDocuments(t *testing.T) {
	out := renderDocuments([]catalog.Document{
		{"id": "b", "prompt": "D minor, a very long prompt that keeps going well past the width of the prompt column", "created_at": "2025-03-02T10:00:00Z"},
		{"id": "a", "prompt": "C major", "created_at": "2025-03-01T10:00:00Z"},
	})
	assert.Contains(t, out, "PROMPT")
	assert.Contains(t, out, "C major")
	assert.Contains(t, out, "…")
	assert.Contains(t, out, "2 realization(s)")
}
