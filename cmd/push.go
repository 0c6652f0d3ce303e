package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/partimento/internal/catalog"
	"github.com/Yates-Labs/partimento/internal/chain"
)

var pushCmd = &cobra.Command{
	Use:   "push-chain [chain-dir]",
	Short: "Publish a chain's MusicXML and manifest to the catalog",
	Long: `Upload the MusicXML file named in the chain manifest to the catalog, record
its public URL in the manifest and store the manifest as a catalog document.

The catalog is configured under catalog.* (backend github or git). The
github backend needs GITHUB_TOKEN.`,
	Args: cobra.ExactArgs(1),
	RunE: runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	dir := args[0]
	m, err := chain.ReadManifest(dir)
	if err != nil {
		return err
	}
	names := m.FileNames("musicxml")
	if len(names) == 0 {
		return errors.New("manifest lists no musicxml file; export the chain first")
	}
	local := filepath.Join(dir, names[0])

	cat, err := catalog.New(cfg.Catalog, logger)
	if err != nil {
		return err
	}
	return pushChain(cmd, cat, dir, local, m)
}

func pushChain(cmd *cobra.Command, cat catalog.Catalog, dir, local string, m chain.Manifest) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	remote := catalog.RemoteName(m.ID, local)
	url, err := cat.Upload(ctx, local, remote)
	if err != nil {
		return err
	}
	printSuccess(out, "Uploaded "+filepath.Base(local)+" as "+remote)

	m.ExportedMusicXMLURL = url
	if err := chain.WriteManifest(dir, m); err != nil {
		return err
	}
	doc, err := m.AsMap()
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	id, err := cat.SaveMetadata(ctx, catalog.Document(doc))
	if err != nil {
		return err
	}
	printField(out, "URL", url)
	printField(out, "Document", id)
	return nil
}
