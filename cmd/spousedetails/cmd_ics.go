package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"spousedetails/internal/ics"
	appLog "spousedetails/internal/log"
)

type icsOptions struct {
	title  string
	date   string
	notes  string
	outDir string
	strict bool
}

// newICSCmd writes a single-event calendar file to disk, the same document
// the API offers for download.
func newICSCmd(opts *rootOptions) *cobra.Command {
	o := &icsOptions{}

	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Write a single-event .ics file",
		Long: `Generate a one-event iCalendar file for a date and save it.

The file name is derived from the title with every character other than
ASCII letters and digits replaced by "_". An empty title is allowed and
yields an empty SUMMARY and the file ".ics".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(opts)
			if err != nil {
				return err
			}

			enc := newEncoder(conf)
			req := ics.Request{Title: o.title, Date: o.date, Notes: o.notes}

			var doc ics.Document
			if o.strict || conf.Calendar.Strict {
				doc, err = enc.EncodeStrict(req)
				if err != nil {
					return err
				}
			} else {
				doc = enc.Encode(req)
			}

			if err := ics.Offer(cmd.Context(), ics.NewDirSink(o.outDir), doc); err != nil {
				return err
			}
			path := filepath.Join(o.outDir, doc.FileName)
			appLog.Info("calendar file written", "path", path, "bytes", len(doc.Body))
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&o.title, "title", "", "Event title")
	cmd.Flags().StringVar(&o.date, "date", "", "Event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&o.notes, "notes", "", "Event description")
	cmd.Flags().StringVar(&o.outDir, "out", ".", "Output directory")
	cmd.Flags().BoolVar(&o.strict, "strict", false, "Validate the date and escape text")
	return cmd
}
