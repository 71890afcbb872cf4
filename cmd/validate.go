package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

var (
	validateInput   string
	validateFrom    string
	validateTarget  string
	validateExempt  bool
	validateVerbose bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate metadata without registering it",
	Long: `Validate metadata against the DataCite schema rules for a target state.

Draft targets check only what is present; registered and findable targets
also require the mandatory fields. Schema errors are reported per field.

Input defaults to stdin.

Examples:
  doiregistry validate -i record.xml
  doiregistry validate --target draft -i record.json --verbose
  cat record.bib | doiregistry validate --from bibtex`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateInput, "input", "i", "", "Input file (default: stdin)")
	validateCmd.Flags().StringVarP(&validateFrom, "from", "f", "", "Input format (default: sniffed)")
	validateCmd.Flags().StringVarP(&validateTarget, "target", "t", "findable", "Target state: draft, registered or findable")
	validateCmd.Flags().BoolVar(&validateExempt, "exempt-creators", false, "Do not require creators")
	validateCmd.Flags().BoolVarP(&validateVerbose, "verbose", "v", false, "Show detailed information")
}

func runValidate(cmd *cobra.Command, args []string) error {
	target, err := parseTarget(validateTarget)
	if err != nil {
		return err
	}
	raw, inputName, err := readInput(validateInput)
	if err != nil {
		return err
	}

	decoded, err := format.Decode(raw, validateFrom)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	m := decoded.Metadata

	result := hub.Validate(m, hub.ValidationOptions{
		UID:            m.DOI,
		Target:         target,
		SchemaVersion:  decoded.SchemaVersion,
		ExemptCreators: validateExempt,
	})
	for _, w := range result.Warnings {
		fmt.Printf("! %s\n", w.Error())
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			fmt.Printf("✗ %s\n", e.Error())
		}
		return errors.New("validation failed")
	}

	fmt.Printf("✓ Valid: %s record %s from %s\n", decoded.Format, m.DOI, inputName)

	if validateVerbose {
		fmt.Printf("\n  Title: %s\n", truncate(m.MainTitle(), 60))
		fmt.Printf("  Schema: %s\n", decoded.SchemaVersion)
		fmt.Printf("  Creators: %d\n", len(m.Creators))
		fmt.Printf("  Contributors: %d\n", len(m.Contributors))
		fmt.Printf("  Dates: %d\n", len(m.Dates))
		fmt.Printf("  Subjects: %d\n", len(m.Subjects))
		fmt.Printf("  Related identifiers: %d\n", len(m.RelatedIdentifiers))
		if m.Types != nil && m.Types.ResourceTypeGeneral != "" {
			fmt.Printf("  Resource Type: %s\n", m.Types.ResourceTypeGeneral)
		}
	}

	return nil
}

func parseTarget(s string) (hub.Target, error) {
	switch t := hub.Target(s); t {
	case hub.TargetDraft, hub.TargetRegistered, hub.TargetFindable:
		return t, nil
	}
	return "", fmt.Errorf("unknown target %q: use draft, registered or findable", s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
