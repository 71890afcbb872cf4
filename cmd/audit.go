package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

var auditCmd = &cobra.Command{
	Use:   "audit <input-file>",
	Short: "Audit a batch of metadata records for quality issues",
	Long: `Parses every record in a file and validates each against a target state,
then reports which fields fail most often.

Useful before a bulk registration: BibTeX, RIS and Crossref files often hold
many records.

Example:
  doiregistry audit refs.bib
  doiregistry audit export.ris --target registered --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

// AuditReport summarizes validation failures across records.
type AuditReport struct {
	TotalRecords   int                   `json:"total_records"`
	InvalidRecords int                   `json:"invalid_records"`
	FieldFrequency map[string]FieldStats `json:"field_frequency"`
	Unregistrable  []string              `json:"unregistrable,omitempty"`
}

// FieldStats tracks failures of a single field.
type FieldStats struct {
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
	Examples   []string `json:"examples,omitempty"`
}

func init() {
	auditCmd.Flags().StringP("from", "f", "", "Input format (default: sniffed)")
	auditCmd.Flags().StringP("target", "t", "findable", "Target state: draft, registered or findable")
	auditCmd.Flags().IntP("examples", "e", 3, "Number of example messages per field")
	auditCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	auditCmd.Flags().Bool("json", false, "Output as JSON")
}

func runAudit(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	targetName, _ := cmd.Flags().GetString("target")
	maxExamples, _ := cmd.Flags().GetInt("examples")
	outputFile, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	target, err := parseTarget(targetName)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading input file: %w", err)
	}

	var f format.Format
	if from != "" {
		f, err = format.GetParser(from)
	} else {
		f, err = format.DetectFormat(args[0], data)
	}
	if err != nil {
		return err
	}
	parser, ok := f.(format.Parser)
	if !ok {
		return fmt.Errorf("format %s does not support parsing", f.Name())
	}

	opts := format.NewParseOptions()
	opts.SourceName = args[0]
	records, err := parser.Parse(bytes.NewReader(data), opts)
	if err != nil {
		return fmt.Errorf("parsing input: %w", err)
	}

	report := auditRecords(records, target, maxExamples)

	var output []byte
	if jsonOutput {
		output, err = json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
	} else {
		output = []byte(formatAuditReport(report))
	}

	if outputFile != "" {
		return os.WriteFile(outputFile, output, 0644)
	}

	fmt.Println(string(output))
	return nil
}

func auditRecords(records []*hub.Metadata, target hub.Target, maxExamples int) *AuditReport {
	report := &AuditReport{
		TotalRecords:   len(records),
		FieldFrequency: make(map[string]FieldStats),
	}

	for i, m := range records {
		uid := m.DOI
		if uid == "" {
			uid = fmt.Sprintf("record %d", i+1)
		}
		result := hub.Validate(m, hub.ValidationOptions{UID: uid, Target: target})
		if len(result.Errors) == 0 {
			continue
		}
		report.InvalidRecords++
		if result.Fatal {
			report.Unregistrable = append(report.Unregistrable, uid)
		}

		// count each field once per record
		seen := map[string]bool{}
		for _, fe := range result.Errors {
			field := fieldOf(fe.Source)
			stats := report.FieldFrequency[field]
			if !seen[field] {
				stats.Count++
				seen[field] = true
			}
			if len(stats.Examples) < maxExamples && !contains(stats.Examples, fe.Title) {
				stats.Examples = append(stats.Examples, fe.Title)
			}
			report.FieldFrequency[field] = stats
		}
	}

	for key, stats := range report.FieldFrequency {
		stats.Percentage = float64(stats.Count) / float64(report.TotalRecords) * 100
		report.FieldFrequency[key] = stats
	}
	return report
}

// fieldOf drops list indexes: "creators[2].nameIdentifiers[0]" becomes
// "creators.nameIdentifiers".
func fieldOf(source string) string {
	var sb strings.Builder
	depth := 0
	for _, r := range source {
		switch {
		case r == '[':
			depth++
		case r == ']':
			depth--
		case depth == 0:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func formatAuditReport(report *AuditReport) string {
	var sb strings.Builder

	sb.WriteString("=== Metadata Audit Report ===\n\n")
	sb.WriteString(fmt.Sprintf("Total records: %d\n", report.TotalRecords))
	if report.TotalRecords > 0 {
		sb.WriteString(fmt.Sprintf("Invalid records: %d (%.1f%%)\n\n",
			report.InvalidRecords,
			float64(report.InvalidRecords)/float64(report.TotalRecords)*100))
	}

	if len(report.Unregistrable) > 0 {
		sb.WriteString("UNSUPPORTED SCHEMA (cannot be registered):\n")
		for _, uid := range report.Unregistrable {
			sb.WriteString(fmt.Sprintf("  - %s\n", uid))
		}
		sb.WriteString("\n")
	}

	type kv struct {
		key   string
		stats FieldStats
	}
	var sorted []kv
	for k, v := range report.FieldFrequency {
		sorted = append(sorted, kv{k, v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].stats.Count != sorted[j].stats.Count {
			return sorted[i].stats.Count > sorted[j].stats.Count
		}
		return sorted[i].key < sorted[j].key
	})

	if len(sorted) > 0 {
		sb.WriteString("FAILING FIELDS BY FREQUENCY:\n")
	}
	for _, item := range sorted {
		sb.WriteString(fmt.Sprintf("  %s: %d (%.1f%%)\n", item.key, item.stats.Count, item.stats.Percentage))
		if len(item.stats.Examples) > 0 {
			sb.WriteString(fmt.Sprintf("    examples: %s\n", strings.Join(item.stats.Examples, "; ")))
		}
	}

	return sb.String()
}
