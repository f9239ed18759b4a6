package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"file-validator-service/internal/reporter"
	"file-validator-service/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the rule keys a schema can use",
	Long: `List every rule key of the built-in mapping with its rule type, report id,
whether it checks the whole file or single attributes, and its default tags.

Example:
  file-validator rules`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printRules(cmd.OutOrStdout(), rules.NewBaseRegistry(), reporter.DefaultMessageMap())
	},
}

func printRules(w io.Writer, registry *rules.Registry, ids reporter.MessageMap) {
	fmt.Fprintf(w, "%-22s %-32s %-8s %-9s %s\n", "KEY", "TYPE", "ID", "SCOPE", "TAGS")
	for _, key := range registry.Keys() {
		def, _ := registry.Resolve(key)
		typeName := def.TypeName()
		id, ok := ids[typeName]
		if !ok {
			id = typeName
		}
		scope := "attribute"
		if def.Kind.IsFileRule() {
			scope = "file"
		}
		tags := def.Tags
		if len(tags) == 0 {
			tags = rules.DefaultTags(def.Kind)
		}
		fmt.Fprintf(w, "%-22s %-32s %-8s %-9s %s\n", key, typeName, id, scope, strings.Join(tags, ", "))
	}
}
