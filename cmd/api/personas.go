package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/trailblazer/backend/internal/model/persona"
)

func newPersonasCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the configured personas and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.personas
			if path == "" {
				path = envPersonasFile()
			}
			store, err := loadPersonas(path)
			if err != nil {
				return err
			}
			return printPersonas(cmd, store)
		},
	}
}

func printPersonas(cmd *cobra.Command, store persona.Store) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tDEFAULT")
	for _, p := range store.List() {
		mark := ""
		if p.Key == store.DefaultKey() {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Key, p.Display, mark)
	}
	return tw.Flush()
}
