package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cellarworks/tasting-cli/internal/model"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Manage raw tasting captures",
	Long:  "Commands for recording, listing, and bulk-importing free-form tasting observations.",
}

// -- capture add --

var captureTags []string

var captureAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Record a raw tasting capture",
	Long:  "Records a free-form tasting observation. Text is taken from the argument, or from stdin when no argument is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var text string
		if len(args) == 1 {
			text = args[0]
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return eris.Wrap(err, "read stdin")
			}
			text = string(data)
		}
		if strings.TrimSpace(text) == "" {
			return eris.New("capture text is empty")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		capture, err := st.CreateCapture(ctx, text, captureTags)
		if err != nil {
			return eris.Wrap(err, "capture add")
		}

		zap.L().Info("capture recorded",
			zap.String("id", capture.ID),
			zap.Int("chars", len(capture.RawText)),
		)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(capture)
	},
}

// -- capture list --

var captureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasting captures",
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

		pending, _ := cmd.Flags().GetBool("pending")
		limit, _ := cmd.Flags().GetInt("limit")

		captures, err := st.ListCaptures(ctx, pending, limit)
		if err != nil {
			return eris.Wrap(err, "capture list")
		}

		if len(captures) == 0 {
			fmt.Fprintln(os.Stderr, "No captures found.")
			return nil
		}

		formatCaptureList(cmd.OutOrStdout(), captures)
		return nil
	},
}

// -- capture show --

var captureShowCmd = &cobra.Command{
	Use:   "show <capture-id>",
	Short: "Show a capture in full",
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

		capture, err := st.GetCapture(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "capture show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(capture)
	},
}

// -- capture import --

var captureImportPath string

var captureImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-import captures from a text file",
	Long:  "Imports a file of tasting observations separated by lines containing only \"---\". Blank entries are skipped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(captureImportPath)
		if err != nil {
			return eris.Wrap(err, "read import file")
		}

		entries := splitEntries(string(data))
		if len(entries) == 0 {
			return eris.New("import file contains no entries")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		imported, err := st.ImportCaptures(ctx, entries, captureTags)
		if err != nil {
			return eris.Wrap(err, "capture import")
		}

		zap.L().Info("import complete",
			zap.Int64("imported", imported),
			zap.String("file", captureImportPath),
		)
		return nil
	},
}

func init() {
	captureAddCmd.Flags().StringArrayVar(&captureTags, "tag", nil, "tag to attach (repeatable)")

	captureListCmd.Flags().Bool("pending", false, "only captures not yet converted")
	captureListCmd.Flags().Int("limit", 50, "max number of captures to display")

	captureImportCmd.Flags().StringVar(&captureImportPath, "file", "", "path to import file (required)")
	captureImportCmd.Flags().StringArrayVar(&captureTags, "tag", nil, "tag to attach to every entry (repeatable)")
	_ = captureImportCmd.MarkFlagRequired("file")

	captureCmd.AddCommand(captureAddCmd)
	captureCmd.AddCommand(captureListCmd)
	captureCmd.AddCommand(captureShowCmd)
	captureCmd.AddCommand(captureImportCmd)
	rootCmd.AddCommand(captureCmd)
}

// splitEntries splits an import file into entries on "---" separator lines.
func splitEntries(data string) []string {
	var entries []string
	var current []string

	flush := func() {
		entry := strings.TrimSpace(strings.Join(current, "\n"))
		if entry != "" {
			entries = append(entries, entry)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(data, "\n") {
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return entries
}

// formatCaptureList writes a tabular list of captures to w.
func formatCaptureList(out io.Writer, captures []model.RawCapture) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCONVERTED\tTAGS\tCREATED\tTEXT")
	_, _ = fmt.Fprintln(w, "--\t---------\t----\t-------\t----")

	for _, c := range captures {
		text := strings.Join(strings.Fields(c.RawText), " ")
		if len(text) > 40 {
			text = text[:37] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\n",
			truncateID(c.ID),
			c.Converted,
			strings.Join(c.Tags, ","),
			c.CreatedAt.Format("2006-01-02 15:04"),
			text,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
