package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nki-radiology/SegmentationReview/internal/api"
	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/daemonctl"
	"github.com/nki-radiology/SegmentationReview/internal/worklist"
)

func newCasesCommand(ctx *commandContext) *cobra.Command {
	var casesJSON bool

	cmd := &cobra.Command{
		Use:   "cases",
		Short: "List the worklist of the active review session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()

			rows, err := daemonctl.NewClient(cfg).Cases(cmd.Context())
			if err != nil {
				var apiErr *daemonctl.APIError
				if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
					fmt.Fprintln(stdout, "No active review session")
					return nil
				}
				if !daemonUnreachable(err) {
					return err
				}
				// Daemon is down; read the worklist database directly.
				rows, err = offlineCases(cmd.Context(), cfg)
				if err != nil {
					return err
				}
			}

			if casesJSON {
				return writeJSON(cmd, api.CaseListResponse{Cases: rows})
			}
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Worklist is empty")
				return nil
			}
			table := renderTable(
				[]string{"#", "Patient", "Status", "Missing", "Comment", "Saved"},
				buildCaseRows(rows),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprint(stdout, table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&casesJSON, "json", false, "Emit cases as JSON")
	return cmd
}

func offlineCases(ctx context.Context, cfg *config.Config) ([]api.Case, error) {
	store, err := worklist.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open worklist database: %w", err)
	}
	defer store.Close()

	session, err := store.ActiveSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active session: %w", err)
	}
	if session == nil {
		return nil, nil
	}
	rows, err := store.SessionCases(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return api.FromCases(rows), nil
}

func buildCaseRows(rows []api.Case) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{
			fmt.Sprintf("%d", row.Position),
			row.PatientID,
			row.Status,
			yesNo(row.MissingProstate),
			row.Comment,
			row.SavedAt,
		})
	}
	return out
}
