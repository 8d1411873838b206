package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nki-radiology/SegmentationReview/internal/api"
	"github.com/nki-radiology/SegmentationReview/internal/daemonctl"
)

func newSelectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "select [directory]",
		Short: "Start reviewing the cases under a directory",
		Long: "Start reviewing the cases under a directory. Without an argument the\n" +
			"configured default review directory is used. Re-selecting a directory\n" +
			"resumes its session where it left off.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			directory := ""
			if len(args) > 0 {
				directory = strings.TrimSpace(args[0])
			}
			return ctx.withClient(func(client *daemonctl.Client) error {
				status, err := client.Select(cmd.Context(), directory)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Reviewing %d cases under %s\n", status.Total, status.Root)
				printReviewStatus(stdout, status)
				return nil
			})
		},
	}
}

func newSaveNextCommand(ctx *commandContext) *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "save-next",
		Short: "Save the current segmentation, record the annotation, and advance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				if cmd.Flags().Changed("comment") {
					if _, err := client.SetComment(cmd.Context(), comment); err != nil {
						return err
					}
				}
				status, err := client.SaveNext(cmd.Context())
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintln(stdout, "Case saved and recorded")
				printReviewStatus(stdout, status)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "Comment to record with the saved case")
	return cmd
}

func newNextCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Advance to the next case without saving",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				status, err := client.Next(cmd.Context())
				if err != nil {
					return err
				}
				printReviewStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func newPreviousCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "previous",
		Short: "Step back to the previous case",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				status, err := client.Previous(cmd.Context())
				if err != nil {
					return err
				}
				printReviewStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func newCommentCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <text>",
		Short: "Set the comment recorded with the current case",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comment := strings.Join(args, " ")
			return ctx.withClient(func(client *daemonctl.Client) error {
				status, err := client.SetComment(cmd.Context(), comment)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if status.PatientID != "" {
					fmt.Fprintf(stdout, "Comment saved for %s\n", status.PatientID)
				} else {
					fmt.Fprintln(stdout, "Comment saved")
				}
				return nil
			})
		},
	}
}

func printReviewStatus(w io.Writer, status api.ReviewStatus) {
	if !status.Active {
		fmt.Fprintln(w, "No active review session")
		return
	}
	if status.AllChecked {
		fmt.Fprintln(w, status.StatusLine)
		return
	}
	fmt.Fprintf(w, "Progress: %s\n", status.StatusLine)
	if status.PatientID != "" {
		fmt.Fprintf(w, "Patient: %s\n", status.PatientID)
	}
}
