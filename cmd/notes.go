package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/store"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Manage structured tasting notes",
	Long:  "Commands for listing, viewing, and publishing note candidates produced by conversion.",
}

// -- notes list --

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List note candidates",
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

		status, _ := cmd.Flags().GetString("status")
		band, _ := cmd.Flags().GetString("band")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.NoteFilter{
			Status: model.NoteStatus(status),
			Band:   model.QualityBand(band),
			Limit:  limit,
		}

		notes, err := st.ListNotes(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "notes list")
		}

		if len(notes) == 0 {
			fmt.Fprintln(os.Stderr, "No notes found.")
			return nil
		}

		formatNotesList(cmd.OutOrStdout(), notes)
		return nil
	},
}

// -- notes show --

var notesShowCmd = &cobra.Command{
	Use:   "show <note-id>",
	Short: "Show a note candidate in full",
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

		note, err := st.GetNote(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "notes show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(note)
	},
}

// -- notes publish --

var notesPublishCmd = &cobra.Command{
	Use:   "publish <note-id>",
	Short: "Mark a note candidate as published",
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

		if err := st.UpdateNoteStatus(ctx, args[0], model.NoteStatusPublished); err != nil {
			return eris.Wrap(err, "notes publish")
		}

		zap.L().Info("note published", zap.String("id", args[0]))
		return nil
	},
}

func init() {
	notesListCmd.Flags().String("status", "", "filter by status (draft, published)")
	notesListCmd.Flags().String("band", "", "filter by quality band (poor, acceptable, good, very_good, outstanding)")
	notesListCmd.Flags().Int("limit", 50, "max number of notes to display")

	notesCmd.AddCommand(notesListCmd)
	notesCmd.AddCommand(notesShowCmd)
	notesCmd.AddCommand(notesPublishCmd)
	rootCmd.AddCommand(notesCmd)
}

// formatNotesList writes a tabular list of note candidates to w.
func formatNotesList(out io.Writer, notes []model.NoteCandidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tWINE\tVINTAGE\tTOTAL\tBAND\tSTATUS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t-----\t----\t------\t-------")

	for _, n := range notes {
		wine := n.Wine.Producer
		if n.Wine.Cuvee != "" {
			wine += " " + n.Wine.Cuvee
		}
		if len(wine) > 30 {
			wine = wine[:27] + "..."
		}

		vintage := ""
		if n.Wine.Vintage != nil {
			vintage = fmt.Sprintf("%d", *n.Wine.Vintage)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			truncateID(n.ID),
			wine,
			vintage,
			n.Scores.Total,
			n.Scores.QualityBand,
			n.Status,
			n.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
