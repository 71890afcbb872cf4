package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lehigh-university-libraries/doiregistry/doi"
	"github.com/lehigh-university-libraries/doiregistry/metrics"
)

var reindexChunk int

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Write the index document of every DOI as JSON lines",
	Long: `Walks the store in chunks and writes one search-index document per DOI to
stdout, including relation and usage aggregates.

Example:
  doiregistry reindex --store postgres --store-dsn "$DSN" > dois.jsonl`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().IntVar(&reindexChunk, "chunk", doi.DefaultReindexChunk, "Records read per store query")
}

func runReindex(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	svc, closeCache, err := newService(store, metrics.New())
	if err != nil {
		return err
	}
	defer closeCache()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	n, err := svc.Reindex(cmd.Context(), reindexChunk, func(doc *structpb.Struct) error {
		line, err := protojson.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", line)
		return err
	})
	slog.Info("Reindexed DOIs", "count", n)
	return err
}
