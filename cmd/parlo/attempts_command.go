package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parlo/internal/api"
)

func newAttemptsCommand(ctx *commandContext) *cobra.Command {
	var lessonID int64

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "List lesson attempts for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := ctx.requireUserID()
			if err != nil {
				return err
			}
			path := "/api/attempts"
			if lessonID > 0 {
				path = fmt.Sprintf("%s?lesson=%d", path, lessonID)
			}
			var list api.AttemptListResponse
			if err := ctx.apiGet(path, userID, &list); err != nil {
				return err
			}
			if len(list.Attempts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No attempts found.")
				return nil
			}

			rows := make([][]string, 0, len(list.Attempts))
			for _, attempt := range list.Attempts {
				score := "-"
				if attempt.OverallScore != nil {
					score = fmt.Sprintf("%.1f", *attempt.OverallScore)
				}
				passed := "-"
				if attempt.Passed != nil {
					if *attempt.Passed {
						passed = "yes"
					} else {
						passed = "no"
					}
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", attempt.ID),
					fmt.Sprintf("%d", attempt.LessonID),
					fmt.Sprintf("%d", attempt.AttemptNumber),
					attempt.Status,
					attempt.StartedAt,
					score,
					passed,
				})
			}
			headers := []string{"ID", "Lesson", "#", "Status", "Started", "Score", "Passed"}
			aligns := []columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns, isTerminal(cmd.OutOrStdout())))
			return nil
		},
	}

	cmd.Flags().Int64Var(&lessonID, "lesson", 0, "Filter attempts to one lesson id")
	return cmd
}
