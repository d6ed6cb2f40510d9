package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgnsrekt/readalong/internal/document"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the alignment cache",
	Args:  cobra.NoArgs,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what the alignment cache holds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := validateOutput(output); err != nil {
			return err
		}
		store, err := openCache(nil)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		st, err := store.Stats()
		if err != nil {
			return err
		}
		if output != outputTable {
			return encode(os.Stdout, output, map[string]any{
				"dir":       st.Dir,
				"documents": st.Documents,
				"records":   st.Records,
				"bytes":     st.Bytes,
			})
		}
		fmt.Println(renderTable([]string{"DIRECTORY", "DOCUMENTS", "RECORDS", "SIZE"}, [][]string{{
			st.Dir,
			humanize.Comma(int64(st.Documents)),
			humanize.Comma(int64(st.Records)),
			humanize.Bytes(uint64(st.Bytes)), //nolint:gosec
		}}))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [FILE...]",
	Short: "Remove cached alignments",
	Long: paragraph(fmt.Sprintf("\n%s the alignments cached for each FILE, or every alignment with --all. "+
		"A file's alignments are keyed by its contents, so pass the file as it was read.", keyword("Remove"))),
	Example: paragraph("readalong cache clear notes.md\nreadalong cache clear --all"),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) > 0) {
			return errors.New("pass files to clear or --all, not both")
		}
		store, err := openCache(nil)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		if all {
			before, _ := store.Stats()
			if err := store.ClearAll(); err != nil {
				return err
			}
			fmt.Printf("Removed %s records (%s)\n", humanize.Comma(int64(before.Records)),
				humanize.Bytes(uint64(before.Bytes))) //nolint:gosec
			return nil
		}

		var errs []error
		for _, path := range args {
			doc, err := document.Load(path, document.FormatAuto)
			if err == nil {
				err = store.Clear(doc.ID)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				continue
			}
			fmt.Println("Cleared", keyword(path))
		}
		return errors.Join(errs...)
	},
}

var cacheDirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print the alignment cache directory",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		fmt.Println(cfg.Cache.Dir)
		return nil
	},
}

func init() {
	cacheStatsCmd.Flags().StringP("output", "o", outputTable, "output format: table, json or yaml")
	cacheClearCmd.Flags().Bool("all", false, "remove every cached alignment")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheDirCmd)
}

