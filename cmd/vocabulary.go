package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/doiregistry/mapping"
)

var vocabularyDir string

var vocabularyCmd = &cobra.Command{
	Use:   "vocabulary",
	Short: "Inspect relation vocabularies",
	Long:  `List and inspect the vocabularies that classify relation types into families.`,
}

var vocabularyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List embedded vocabularies",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := mapping.NewRegistry()
		if err != nil {
			return err
		}
		if vocabularyDir != "" {
			if err := registry.LoadFromDirectory(vocabularyDir); err != nil {
				return err
			}
		}

		names := registry.List()
		if len(names) == 0 {
			fmt.Println("No vocabularies found")
			return nil
		}

		fmt.Println("Available vocabularies:")
		for _, name := range names {
			v, _ := registry.Get(name)
			desc := ""
			if v.Description != "" {
				desc = " - " + v.Description
			}
			fmt.Printf("  %s%s\n", name, desc)
		}
		return nil
	},
}

var vocabularyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the configured vocabulary as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := vocabulary()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var vocabularyFamiliesCmd = &cobra.Command{
	Use:   "families",
	Short: "List relation families in precedence order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := vocabulary()
		if err != nil {
			return err
		}

		fmt.Printf("%-12s %-10s %-7s %s\n", "Family", "Exclusive", "Bucket", "Relation types")
		fmt.Printf("%-12s %-10s %-7s %s\n", "------", "---------", "------", "--------------")
		for _, name := range v.FamilyNames() {
			f, _ := v.Family(name)
			var rels []string
			for rel, rule := range v.Relations {
				if rule.Subject == name || rule.Object == name {
					rels = append(rels, rel)
				}
			}
			sort.Strings(rels)
			fmt.Printf("%-12s %-10t %-7s %s\n", name, f.Exclusive, f.Bucket, strings.Join(rels, ", "))
		}
		return nil
	},
}

func init() {
	vocabularyListCmd.Flags().StringVar(&vocabularyDir, "dir", "", "Also list the *.yaml vocabularies in this directory")
	vocabularyCmd.AddCommand(vocabularyListCmd)
	vocabularyCmd.AddCommand(vocabularyShowCmd)
	vocabularyCmd.AddCommand(vocabularyFamiliesCmd)
}
