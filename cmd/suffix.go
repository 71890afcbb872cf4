package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/doiregistry/suffix"
)

var (
	suffixSeed    uint64
	suffixCount   int
	suffixDecode  bool
	suffixOffline bool
)

var suffixCmd = &cobra.Command{
	Use:   "suffix <prefix>",
	Short: "Mint DOI suffixes",
	Long: `Mint DOIs under a prefix, optionally with a shoulder ("10.5072/lehigh").

Random suffixes are checked against the configured store unless --offline
is set. A seed makes the suffix deterministic.

Examples:
  doiregistry suffix 10.5072
  doiregistry suffix 10.5072/lehigh --count 10
  doiregistry suffix 10.5072 --seed 123456789
  doiregistry suffix --decode 3nyq-fw76`,
	Args: cobra.ExactArgs(1),
	RunE: runSuffix,
}

func init() {
	suffixCmd.Flags().Uint64Var(&suffixSeed, "seed", 0, "Numeric seed for a deterministic suffix")
	suffixCmd.Flags().IntVarP(&suffixCount, "count", "n", 1, "Number of DOIs to mint")
	suffixCmd.Flags().BoolVar(&suffixDecode, "decode", false, "Decode a suffix back to its number")
	suffixCmd.Flags().BoolVar(&suffixOffline, "offline", false, "Do not check the store for collisions")
}

func runSuffix(cmd *cobra.Command, args []string) error {
	if suffixDecode {
		n, err := suffix.Decode(args[0])
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	}

	var checker suffix.Checker
	if !suffixOffline {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()
		checker = store
	}
	g := suffix.NewGenerator(checker, suffix.WithRetries(cfg.Suffix.Retries))

	if cmd.Flags().Changed("seed") {
		id, err := g.Generate(cmd.Context(), args[0], &suffixSeed)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	}

	ids, err := g.GenerateBatch(cmd.Context(), args[0], suffixCount)
	for _, id := range ids {
		fmt.Println(id)
	}
	return err
}
