package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/jobtrail/internal/config"
	"github.com/kalambet/jobtrail/internal/migration"
	"github.com/kalambet/jobtrail/internal/records"
	"github.com/kalambet/jobtrail/internal/storage"
)

// openStore opens the local database directly. Overridden in tests.
var openStore = func() (*storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate stored data to the current schema version",
	Long: `Runs the data migration against the local database without starting the
server. Safe to repeat: an up-to-date store is left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		printStep("Checking stored data")
		rep, err := migration.NewMigrator(store).RunIfNeeded(cmd.Context())
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		printReport(rep)
		return nil
	},
}

func printReport(rep migration.Report) {
	if rep.State == migration.StateUpToDate {
		printSuccess("Data is up to date (schema version %d)", rep.FromVersion)
		return
	}
	printSuccess("Migrated schema version %d → %d", rep.FromVersion, rep.ToVersion)
	if rep.LegacyKey != "" {
		printStatus("Legacy key", "%s", rep.LegacyKey)
	}
	printStatus("Inserted", "%d", rep.Inserted)
	printStatus("Skipped", "%d", rep.Skipped)
	printStatus("Connections", "%d backfilled", rep.ConnectionsBackfilled)
	printStatus("Backup", "%t", rep.BackupWritten)
	if rep.CoercedStatuses > 0 {
		printWarning("%d legacy statuses were not recognized and were mapped to %q", rep.CoercedStatuses, records.StatusSaved)
	}
}

// --- version-status ---

var versionStatusCmd = &cobra.Command{
	Use:   "version-status",
	Short: "Show the detected data generation and stored schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		m := migration.NewMigrator(store)
		detected, err := m.DetectDataVersion(ctx)
		if err != nil {
			return err
		}
		v, err := m.Registry().Version(ctx)
		if err != nil {
			return err
		}
		keys, err := store.Keys(ctx)
		if err != nil {
			return err
		}
		applied, err := store.AppliedMigrations(ctx)
		if err != nil {
			return err
		}

		printStatus("Detected data", "%s", detected)
		printStatus("Schema version", "%d (current %d)", v, records.CurrentSchemaVersion)
		printStatus("Stored keys", "%s", strings.Join(keys, ", "))
		printStatus("Database migrations", "%s", joinInts(applied))
		if v < records.CurrentSchemaVersion {
			printWarning("run `jobtrail migrate` or start the server to upgrade")
		}
		return nil
	},
}

// --- import-legacy ---

var importLegacyCmd = &cobra.Command{
	Use:   "import-legacy",
	Short: "Load a legacy job applications export into the local store",
	Long: `Writes a JSON array of legacy job applications under the primary legacy
key. The schema version is not changed; the next migration picks the records up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		force, _ := cmd.Flags().GetBool("force")
		if path == "" {
			return fmt.Errorf("--file is required")
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		n, err := validateLegacy(data)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := importLegacy(cmd.Context(), store, data, force); err != nil {
			return err
		}
		printSuccess("Imported %d legacy records under %q", n, records.LegacyKeys[0])
		return nil
	},
}

func init() {
	importLegacyCmd.Flags().String("file", "", "path to a legacy JSON export")
	importLegacyCmd.Flags().Bool("force", false, "replace legacy data that is already stored")
}

// validateLegacy checks that data is a non-empty array of legacy records and
// returns its length.
func validateLegacy(data []byte) (int, error) {
	recs, err := records.DecodeList[records.LegacyRecord](data)
	if err != nil {
		return 0, fmt.Errorf("invalid legacy export: %w", err)
	}
	if len(recs) == 0 {
		return 0, fmt.Errorf("legacy export holds no records")
	}
	return len(recs), nil
}

func importLegacy(ctx context.Context, store *storage.Store, data []byte, force bool) error {
	key := records.LegacyKeys[0]
	existing, err := store.Value(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("reading %q: %w", key, err)
	default:
		if n, _ := validateLegacy(existing); n > 0 && !force {
			return fmt.Errorf("%q already holds %d records; use --force to replace them", key, n)
		}
	}
	return store.Set(ctx, map[string][]byte{key: bytes.TrimSpace(data)})
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history <key>",
	Short: "Show previous values of a stored key",
	Long: `Every write archives the value it replaces. history lists the archived
values of one key, newest first. Use --values to print them in full.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		showValues, _ := cmd.Flags().GetBool("values")
		if limit <= 0 {
			return fmt.Errorf("--limit must be positive")
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.History(cmd.Context(), args[0], limit)
		if err != nil {
			return fmt.Errorf("reading history of %q: %w", args[0], err)
		}
		if len(entries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No history for %q.\n", args[0])
			return nil
		}

		if showValues {
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "# %d replaced %s\n%s\n", e.ID, e.ReplacedAt.Format(time.RFC3339), e.Value)
			}
			return nil
		}
		writeHistory(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 10, "maximum number of archived values to show")
	historyCmd.Flags().Bool("values", false, "print each archived value in full")
}

// writeHistory lists archived values. ENTRIES is the element count for values
// that are JSON arrays.
func writeHistory(w io.Writer, entries []storage.HistoryEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREPLACED\tBYTES\tENTRIES")
	for _, e := range entries {
		count := "-"
		var items []json.RawMessage
		if json.Unmarshal(e.Value, &items) == nil {
			count = strconv.Itoa(len(items))
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", e.ID, e.ReplacedAt.Format(time.RFC3339), len(e.Value), count)
	}
	tw.Flush()
}

// --- postings ---

var postingsCmd = &cobra.Command{
	Use:   "postings",
	Short: "List and manage saved job postings",
}

var postingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved postings",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		if status != "" {
			q.Set("status", status)
		}
		if limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}
		path := "/postings"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var postings []records.Posting
		if err := decodeJSON(resp, &postings); err != nil {
			return err
		}

		if asJSON {
			return writeJSON(cmd.OutOrStdout(), postings)
		}
		if len(postings) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No postings.")
			return nil
		}
		writePostings(cmd.OutOrStdout(), postings)
		return nil
	},
}

func writePostings(w io.Writer, postings []records.Posting) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tINTEREST\tCOMPANY\tTITLE\tURL")
	for _, p := range postings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Status, stars(p.Interest), p.Company, p.Title, p.URL)
	}
	tw.Flush()
}

var postingsAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Save a job posting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		company, _ := cmd.Flags().GetString("company")
		title, _ := cmd.Flags().GetString("title")
		location, _ := cmd.Flags().GetString("location")
		status, _ := cmd.Flags().GetString("status")
		interest, _ := cmd.Flags().GetInt("interest")
		tags, _ := cmd.Flags().GetStringSlice("tags")
		notes, _ := cmd.Flags().GetString("notes")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"url":      args[0],
			"company":  company,
			"title":    title,
			"location": location,
			"status":   status,
			"interest": interest,
			"tags":     tags,
			"notes":    notes,
		}
		resp, err := client.post(cmd.Context(), "/postings", req)
		if err != nil {
			return err
		}
		var p records.Posting
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		printSuccess("Saved posting %s", p.ID)
		return nil
	},
}

var postingsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a posting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/postings/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted posting %s", args[0])
		return nil
	},
}

var postingsLinkCmd = &cobra.Command{
	Use:   "link <posting-id> <connection-id>",
	Short: "Link a connection to a posting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/postings/%s/connections/%s", url.PathEscape(args[0]), url.PathEscape(args[1]))
		resp, err := client.post(cmd.Context(), path, nil)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Linked connection %s to posting %s", args[1], args[0])
		return nil
	},
}

func init() {
	postingsListCmd.Flags().String("status", "", "only list postings with this status")
	postingsListCmd.Flags().Int("limit", 0, "maximum number of postings to list")
	postingsListCmd.Flags().Bool("json", false, "print raw JSON")

	postingsAddCmd.Flags().String("company", "", "hiring company")
	postingsAddCmd.Flags().String("title", "", "job title")
	postingsAddCmd.Flags().String("location", "", "location or remote policy")
	postingsAddCmd.Flags().String("status", "", "application status (default saved)")
	postingsAddCmd.Flags().Int("interest", 0, "interest from 1 to 5 (default 2)")
	postingsAddCmd.Flags().StringSlice("tags", nil, "comma-separated tags")
	postingsAddCmd.Flags().String("notes", "", "free-form notes")

	postingsCmd.AddCommand(postingsListCmd)
	postingsCmd.AddCommand(postingsAddCmd)
	postingsCmd.AddCommand(postingsRmCmd)
	postingsCmd.AddCommand(postingsLinkCmd)
}

// --- connections ---

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List and manage connections",
}

var connectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		company, _ := cmd.Flags().GetString("company")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/connections")
		if err != nil {
			return err
		}
		var conns []records.Connection
		if err := decodeJSON(resp, &conns); err != nil {
			return err
		}

		if company != "" {
			filtered := conns[:0]
			for _, c := range conns {
				if strings.EqualFold(c.Company, company) {
					filtered = append(filtered, c)
				}
			}
			conns = filtered
		}

		if asJSON {
			return writeJSON(cmd.OutOrStdout(), conns)
		}
		if len(conns) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No connections.")
			return nil
		}
		writeConnections(cmd.OutOrStdout(), conns)
		return nil
	},
}

func writeConnections(w io.Writer, conns []records.Connection) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOMPANY\tTYPE\tSTRENGTH\tPOSTINGS")
	for _, c := range conns {
		var typ records.RelationshipType
		if c.RelationshipType != nil {
			typ = *c.RelationshipType
		}
		strength := 0
		if c.RelationshipStrength != nil {
			strength = *c.RelationshipStrength
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", c.ID, c.Name, c.Company, typ, stars(strength), len(c.PostingIDs))
	}
	tw.Flush()
}

var connectionsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{"name": args[0]}
		for flag, field := range map[string]string{
			"company":    "company",
			"role":       "role",
			"email":      "email",
			"linkedin":   "linkedInUrl",
			"type":       "relationshipType",
			"how-we-met": "howWeMet",
			"notes":      "notes",
		} {
			if v, _ := cmd.Flags().GetString(flag); v != "" {
				req[field] = v
			}
		}
		if cmd.Flags().Changed("strength") {
			strength, _ := cmd.Flags().GetInt("strength")
			req["relationshipStrength"] = strength
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/connections", req)
		if err != nil {
			return err
		}
		var c records.Connection
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}

		printSuccess("Added connection %s (%s)", c.Name, c.ID)
		return nil
	},
}

func init() {
	connectionsListCmd.Flags().String("company", "", "only list connections at this company")
	connectionsListCmd.Flags().Bool("json", false, "print raw JSON")

	connectionsAddCmd.Flags().String("company", "", "company")
	connectionsAddCmd.Flags().String("role", "", "role or title")
	connectionsAddCmd.Flags().String("email", "", "email address")
	connectionsAddCmd.Flags().String("linkedin", "", "LinkedIn profile URL")
	connectionsAddCmd.Flags().String("type", "", "relationship type (colleague, recruiter, hiring_manager, referral, friend, alumni, other)")
	connectionsAddCmd.Flags().String("how-we-met", "", "how you know this person")
	connectionsAddCmd.Flags().Int("strength", 0, "relationship strength from 1 to 5 (default 3)")
	connectionsAddCmd.Flags().String("notes", "", "free-form notes")

	connectionsCmd.AddCommand(connectionsListCmd)
	connectionsCmd.AddCommand(connectionsAddCmd)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
