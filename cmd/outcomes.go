package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/uzuki-lab/kyotei-cli/internal/learn"
	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/internal/store"
)

var outcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "Settle race results and inspect the ledger",
	Long:  "Commands for recording official trifecta results against stored predictions and reviewing how the ticket buckets performed.",
}

// -- outcomes record --

var outcomesRecordCmd = &cobra.Command{
	Use:   "record <race-key> <result>",
	Short: "Settle an official result against a stored prediction",
	Long:  `Race keys look like "20260825-12-08" (date-venue-race); results use trifecta notation like "1-3-2". Settling determines the hit bucket and nudges the venue weight profile.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		payout, _ := cmd.Flags().GetInt("payout")
		settlement, err := learn.New(st).Settle(ctx, args[0], args[1], payout)
		if err != nil {
			return err
		}

		if settlement.Outcome.HitBucket == "" {
			fmt.Printf("%s: %s missed every bucket\n", args[0], settlement.Outcome.Result)
		} else {
			fmt.Printf("%s: %s hit the %s bucket\n", args[0], settlement.Outcome.Result, settlement.Outcome.HitBucket)
		}
		fmt.Println("\nUpdated venue profile:")
		formatWeights(os.Stdout, settlement.Weights)
		return nil
	},
}

// -- outcomes list --

var outcomesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List settled outcomes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		outcomes, err := st.ListOutcomes(ctx, outcomeFilterFromFlags(cmd))
		if err != nil {
			return eris.Wrap(err, "outcomes list")
		}

		if len(outcomes) == 0 {
			fmt.Fprintln(os.Stderr, "No outcomes found.")
			return nil
		}

		formatOutcomes(os.Stdout, outcomes)
		return nil
	},
}

// -- outcomes export --

var outcomesExportCmd = &cobra.Command{
	Use:   "export <file.xlsx>",
	Short: "Export settled outcomes to an xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		outcomes, err := st.ListOutcomes(ctx, outcomeFilterFromFlags(cmd))
		if err != nil {
			return eris.Wrap(err, "outcomes export")
		}

		if err := writeOutcomesXLSX(outcomes, args[0]); err != nil {
			return err
		}

		zap.L().Info("outcomes exported",
			zap.Int("rows", len(outcomes)),
			zap.String("file", args[0]))
		return nil
	},
}

func init() {
	outcomesRecordCmd.Flags().Int("payout", 0, "trifecta payout in yen per 100-yen stake")

	for _, c := range []*cobra.Command{outcomesListCmd, outcomesExportCmd} {
		c.Flags().Int("venue", 0, "filter by venue code")
		c.Flags().String("date", "", "filter by race date YYYYMMDD")
		c.Flags().String("bucket", "", "filter by hit bucket (primary, cover, longshot)")
		c.Flags().Int("limit", 100, "max number of outcomes")
	}

	outcomesCmd.AddCommand(outcomesRecordCmd)
	outcomesCmd.AddCommand(outcomesListCmd)
	outcomesCmd.AddCommand(outcomesExportCmd)
	rootCmd.AddCommand(outcomesCmd)
}

func outcomeFilterFromFlags(cmd *cobra.Command) store.OutcomeFilter {
	venueID, _ := cmd.Flags().GetInt("venue")
	date, _ := cmd.Flags().GetString("date")
	bucket, _ := cmd.Flags().GetString("bucket")
	limit, _ := cmd.Flags().GetInt("limit")
	return store.OutcomeFilter{
		VenueID: venueID,
		Date:    date,
		Bucket:  bucket,
		Limit:   limit,
	}
}

// formatOutcomes writes the settled ledger as a table, newest first.
func formatOutcomes(out io.Writer, outcomes []model.Outcome) {
	table := tablewriter.NewWriter(out)
	table.Header([]string{"Race", "Result", "Bucket", "Payout", "Settled"})
	var data [][]string
	for _, o := range outcomes {
		bucket := o.HitBucket
		if bucket == "" {
			bucket = "miss"
		}
		payout := ""
		if o.Payout > 0 {
			payout = strconv.Itoa(o.Payout)
		}
		data = append(data, []string{
			o.RaceKey,
			o.Result,
			bucket,
			payout,
			o.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	_ = table.Bulk(data)
	_ = table.Render()
}

// writeOutcomesXLSX writes one row per outcome plus a header row.
func writeOutcomesXLSX(outcomes []model.Outcome, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("outcomes")
	if err != nil {
		return eris.Wrap(err, "add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"race_key", "result", "hit_bucket", "hit", "payout", "settled_at"} {
		header.AddCell().SetString(h)
	}

	for _, o := range outcomes {
		row := sheet.AddRow()
		row.AddCell().SetString(o.RaceKey)
		row.AddCell().SetString(o.Result)
		row.AddCell().SetString(o.HitBucket)
		hit := 0
		if o.HitBucket != "" {
			hit = 1
		}
		row.AddCell().SetInt(hit)
		row.AddCell().SetInt(o.Payout)
		row.AddCell().SetString(o.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "save %s", path)
	}
	return nil
}
