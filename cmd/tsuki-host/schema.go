package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	"github.com/tsuki-dev/tsuki-host/host"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <extension|processor> <version> [type]",
		Short: "Print the JSON Schemas of the wire types a plugin version exchanges",
		Long: `Print the JSON Schemas of the wire types exchanged with plugins declaring
the given contract and version. Types are named <export>.input and
<export>.output; pass one to print only its schema.`,
		Args: cobra.RangeArgs(2, 3),
		// Needs neither config nor logger.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := host.SelectGeneration(entities.Contract(args[0]), args[1])
			if err != nil {
				return err
			}
			reg, err := host.WireSchemas(gen)
			if err != nil {
				return err
			}

			if len(args) == 3 {
				s, ok := reg.GetSchema(args[2])
				if !ok {
					return fmt.Errorf("%s has no wire type %q", gen, args[2])
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), s)
				return err
			}

			all := make(map[string]json.RawMessage, len(reg.List()))
			for _, name := range reg.List() {
				s, _ := reg.GetSchema(name)
				all[name] = json.RawMessage(s)
			}
			return printJSON(cmd, all)
		},
	}
}
