package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/furnbridge/orderdesk/internal/model"
	"github.com/furnbridge/orderdesk/internal/store"
)

var (
	recordsStatus string
	recordsBranch string
	recordsLimit  int
	recordsJSON   bool
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List processed order records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("records"); err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		records, err := st.ListRecords(ctx, store.RecordFilter{
			Status: model.Status(recordsStatus),
			Branch: recordsBranch,
			Limit:  recordsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list records")
		}

		if recordsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		for _, rec := range records {
			fmt.Printf("%-40s  %-16s  %-8s  %2d warnings  %s\n",
				rec.MessageID, rec.Branch, rec.Status, len(rec.Warnings),
				rec.ReceivedAt.Format("2006-01-02 15:04"),
			)
		}
		fmt.Printf("%d record(s)\n", len(records))
		return nil
	},
}

func init() {
	recordsCmd.Flags().StringVar(&recordsStatus, "status", "", "filter by status (ok, partial, failed)")
	recordsCmd.Flags().StringVar(&recordsBranch, "branch", "", "filter by branch id")
	recordsCmd.Flags().IntVar(&recordsLimit, "limit", 50, "max number of records")
	recordsCmd.Flags().BoolVar(&recordsJSON, "json", false, "print records as JSON")
	rootCmd.AddCommand(recordsCmd)
}
