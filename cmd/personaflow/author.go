package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

func newAuthorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "author",
		Short: "Draft recollections for a persona and store the usable ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			personaID, _ := cmd.Flags().GetString("persona")
			rawKinds, _ := cmd.Flags().GetStringSlice("kinds")

			kinds, err := parseKinds(rawKinds)
			if err != nil {
				return err
			}

			comps, err := componentsFactory(cmd.Context())
			if err != nil {
				return err
			}
			defer comps.Close()

			p, err := comps.personas.GetPersona(cmd.Context(), personaID)
			if err != nil {
				return err
			}
			result, err := comps.author.Populate(cmd.Context(), p, kinds)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringP("persona", "p", "", "persona id (required)")
	cmd.Flags().StringSlice("kinds", nil, "recollection kinds to draft (default: family, education, work, hobby, growth)")
	_ = cmd.MarkFlagRequired("persona")
	return cmd
}

func parseKinds(raw []string) ([]recollection.Kind, error) {
	kinds := make([]recollection.Kind, 0, len(raw))
	for _, s := range raw {
		k := recollection.Kind(strings.ToLower(strings.TrimSpace(s)))
		if !k.Known() {
			return nil, fmt.Errorf("unknown recollection kind %q", s)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
