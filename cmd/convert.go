package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/doiregistry/format"
)

var (
	inputFile    string
	outputFile   string
	fromFormat   string
	targetSchema string
)

var convertCmd = &cobra.Command{
	Use:   "convert <to>",
	Short: "Convert metadata between formats",
	Long: `Convert DOI metadata to another format.

The input format is sniffed unless --from is given. Input may be raw
metadata, base64-encoded XML, or a DataCite JSON request envelope.

Arguments:
  to      Target format (datacite, datacite-json, bibtex, ris, csl, schemaorg, crossref)

Input defaults to stdin, output defaults to stdout.

Examples:
  # Upgrade kernel-3 XML to kernel-4
  doiregistry convert datacite -i kernel3.xml

  # DataCite XML to citeproc JSON
  cat record.xml | doiregistry convert csl

  # BibTeX to DataCite JSON
  doiregistry convert datacite-json --from bibtex -i refs.bib -o record.json`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file (default: stdin)")
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	convertCmd.Flags().StringVarP(&fromFormat, "from", "f", "", "Input format (default: sniffed)")
	convertCmd.Flags().StringVar(&targetSchema, "schema", "", "Target DataCite schema namespace (default: kernel-4)")
}

func runConvert(cmd *cobra.Command, args []string) (err error) {
	raw, _, err := readInput(inputFile)
	if err != nil {
		return err
	}

	decoded, err := format.Decode(raw, fromFormat)
	if err != nil {
		return fmt.Errorf("parsing input: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Parsed %s record %s\n", decoded.Format, decoded.Metadata.DOI)

	out, err := format.Encode(decoded.Metadata, args[0], targetSchema)
	if err != nil {
		return fmt.Errorf("serializing output: %w", err)
	}

	var output io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing output file: %w", cerr)
			}
		}()
		output = f
	}
	_, err = output.Write(out)
	return err
}

// readInput reads a file, or stdin when path is empty, and returns the
// name to report it by.
func readInput(path string) ([]byte, string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, "", fmt.Errorf("reading stdin: %w", err)
		}
		return data, "stdin", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening input file: %w", err)
	}
	return data, path, nil
}
