package main

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/nailsizes/nailsizes/internal/schema"
	"github.com/nailsizes/nailsizes/internal/ui"
)

var clientsCmd = &cobra.Command{
	Use:     "clients",
	GroupID: "data",
	Short:   "List and delete clients",
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients, most recently updated first",
	Long: `List clients ordered by last update, newest first.

--search matches name, phone or email, ignoring case. --updated-since takes
an ISO-8601 timestamp or a phrase such as "yesterday" or "last monday".

Example usage:
  nailsizes clients list
  nailsizes clients list --search 555
  nailsizes clients list --updated-since "2 weeks ago"`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		search, _ := cmd.Flags().GetString("search")
		sinceText, _ := cmd.Flags().GetString("updated-since")

		db, err := openStore(ctx)
		if err != nil {
			fatalf("opening database: %v", err)
		}
		defer db.Close()
		a := newApp(db)

		var clients []*schema.Client
		if sinceText != "" {
			since, perr := parseSince(sinceText, time.Now())
			if perr != nil {
				fatalf("%v", perr)
			}
			clients, err = a.ListClientsSince(ctx, search, since)
		} else {
			clients, err = a.ListClients(ctx, search)
		}
		if err != nil {
			fatalf("%v", err)
		}

		if len(clients) == 0 {
			fmt.Println(ui.RenderMuted("No clients found"))
			return
		}
		ui.ClientTable(cmd.OutOrStdout(), clients)
	},
}

var clientsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a client and all of its measurements",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		yes, _ := cmd.Flags().GetBool("yes")

		db, err := openStore(ctx)
		if err != nil {
			fatalf("opening database: %v", err)
		}
		defer db.Close()

		client, err := db.Clients().Get(ctx, args[0])
		if err != nil {
			fatalf("%v", err)
		}
		if !yes {
			ok, err := ui.Confirm(fmt.Sprintf("Delete %s?", client.NameOrID), "All of this client's measurements are deleted too.")
			if err != nil {
				fatalf("%v", err)
			}
			if !ok {
				fmt.Println("Delete cancelled")
				return
			}
		}

		if _, err := newApp(db).DeleteClient(ctx, client.ID); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Deleted %s\n", ui.RenderPass("✓"), client.NameOrID)
	},
}

// parseSince accepts an ISO-8601 timestamp or a natural-language phrase
// relative to now.
func parseSince(text string, now time.Time) (time.Time, error) {
	if t, err := schema.ParseTime(text); err == nil {
		return t, nil
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("cannot parse %q as a date", text)
	}
	return r.Time, nil
}

func init() {
	clientsListCmd.Flags().StringP("search", "s", "", "Case-insensitive match on name, phone or email")
	clientsListCmd.Flags().String("updated-since", "", "Only clients updated at or after this time")
	clientsDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	clientsCmd.AddCommand(clientsListCmd, clientsDeleteCmd)
	rootCmd.AddCommand(clientsCmd)
}
