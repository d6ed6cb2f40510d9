package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dgnsrekt/readalong/tts/normalize"
	"github.com/spf13/cobra"
)

var mapCmd = &cobra.Command{
	Use:   "map DISPLAY [SYNTHESIZED]",
	Short: "Show how display words map to spoken words",
	Long: paragraph(fmt.Sprintf("\n%s the words of DISPLAY to the words a synthesizer speaks. "+
		"When SYNTHESIZED is omitted, the built-in text normalization produces it.", keyword("Map"))),
	Example: paragraph("readalong map \"Dr. Smith paid $5\"\n" +
		"readalong map \"Meet at 10:30\" \"meet at ten thirty\""),
	Args: cobra.RangeArgs(1, 2),
	RunE: runMap,
}

func init() {
	mapCmd.Flags().StringP("output", "o", outputTable, "output format: table, json or yaml")
}

type mappingRow struct {
	Display            string `json:"display" yaml:"display"`
	Synthesized        string `json:"synthesized" yaml:"synthesized"`
	DisplayIndices     []int  `json:"display_indices" yaml:"display_indices,flow"`
	SynthesizedIndices []int  `json:"synthesized_indices" yaml:"synthesized_indices,flow"`
}

func runMap(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if err := validateOutput(output); err != nil {
		return err
	}

	display := normalize.Texts(normalize.SplitWords(args[0]))
	var spoken string
	if len(args) == 2 {
		spoken = args[1]
	} else {
		spoken = normalize.Expand(args[0])
	}
	synthesized := normalize.Texts(normalize.SplitWords(spoken))

	mapping := normalize.BuildMapping(display, synthesized)
	rows := make([]mappingRow, 0, len(mapping))
	for _, m := range mapping {
		rows = append(rows, mappingRow{
			Display:            pick(display, m.DisplayIndices),
			Synthesized:        pick(synthesized, m.SynthesizedIndices),
			DisplayIndices:     m.DisplayIndices,
			SynthesizedIndices: m.SynthesizedIndices,
		})
	}

	if output != outputTable {
		return encode(os.Stdout, output, rows)
	}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		said := r.Synthesized
		if said == "" {
			said = faint("(silent)")
		}
		cells = append(cells, []string{r.Display, said})
	}
	fmt.Println(renderTable([]string{"DISPLAY", "SPOKEN"}, cells))
	return nil
}

func pick(words []string, indices []int) string {
	out := make([]string, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(words) {
			out = append(out, words[i])
		}
	}
	return strings.Join(out, " ")
}
