package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"auditor/internal/court"
	"auditor/internal/format"
)

func newRubricCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rubric",
		Short: "Inspect and validate rubrics",
	}

	var showPath string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print a rubric as YAML (the embedded default unless --file is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := loadRubric(showPath)
			if err != nil {
				return err
			}
			data, err := r.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	show.Flags().StringVar(&showPath, "file", "", "Rubric YAML to print")

	validate := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a rubric file and report every problem found",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loadRubric(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s v%s, %d dimensions)\n", args[0], r.Name, r.Version, len(r.Criteria))
			return nil
		},
	}

	var dimsPath, dimsMode string
	dims := &cobra.Command{
		Use:   "dimensions",
		Short: "List a rubric's dimensions with their targets and weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := loadRubric(dimsPath)
			if err != nil {
				return err
			}
			mode, err := format.ParseMode(dimsMode)
			if err != nil {
				return err
			}
			tb := format.NewTable(mode, "ID", "Name", "Target", "Keywords", "Weights (adv/sym/prag)")
			for _, c := range r.Criteria {
				cat, _ := c.Category()
				w := fmt.Sprintf("%g/%g/%g",
					r.WeightFor(c.ID, court.PersonaAdversarial), r.WeightFor(c.ID, court.PersonaSympathetic), r.WeightFor(c.ID, court.PersonaPragmatic))
				tb.Row(c.ID, c.Name, string(cat), strings.Join(c.Keywords, ", "), w)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tb.String())
			return nil
		},
	}
	dims.Flags().StringVar(&dimsPath, "file", "", "Rubric YAML (default: embedded rubric)")
	dims.Flags().StringVar(&dimsMode, "table", "text", "Table style: text or markdown")

	cmd.AddCommand(show, validate, dims)
	return cmd
}
