package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/uzuki-lab/kyotei-cli/internal/venue"
)

var venuesCmd = &cobra.Command{
	Use:   "venues",
	Short: "List the 24 race venues",
	RunE: func(cmd *cobra.Command, _ []string) error {
		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"Code", "Name", "Reading", "Aliases"})
		var data [][]string
		for _, v := range venue.All() {
			data = append(data, []string{
				strconv.Itoa(v.ID),
				v.Name,
				v.Reading,
				strings.Join(v.Aliases, ", "),
			})
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		return table.Render()
	},
}

func init() {
	rootCmd.AddCommand(venuesCmd)
}
