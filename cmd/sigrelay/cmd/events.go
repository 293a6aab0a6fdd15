package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nfrund/sigrelay/internal/pubsub"
)

var eventsOutputFormat string

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the lifecycle events the relay publishes",
	Long: `List the lifecycle events published on the relay's internal event bus,
with their payload fields.

Examples:
  sigrelay events                 # Table format
  sigrelay events --format json   # JSON format`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVarP(&eventsOutputFormat, "format", "f", "table", "output format: table or json")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	events := pubsub.Events()
	out := cmd.OutOrStdout()

	switch eventsOutputFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	case "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPAYLOAD\tFIELDS\tDESCRIPTION")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Payload, strings.Join(e.Fields, ","), e.Description)
		}
		return w.Flush()
	default:
		return fmt.Errorf("invalid format %q, valid formats: table, json", eventsOutputFormat)
	}
}
