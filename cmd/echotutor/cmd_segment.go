package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/echotutor/tutor-service/internal/segment"
)

func newSegmentCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "segment [file]",
		Short: "Print the sections a text document is split into",
		Long:  "Reads a UTF-8 text file (or stdin when no file is given) and prints the sections tutoring would walk through.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if !utf8.Valid(data) {
				return fmt.Errorf("input is not valid UTF-8")
			}

			sections := segment.Segment(string(data))
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sections)
			}

			total := len(sections)
			for i, s := range sections {
				fmt.Fprintf(out, "--- section %d/%d (%d chars)\n%s\n", i+1, total, utf8.RuneCountInString(s), s)
			}
			fmt.Fprintf(out, "%d sections\n", total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print sections as a JSON array")
	return cmd
}
