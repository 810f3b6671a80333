package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parlo/internal/api"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show XP, level, and streak for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := ctx.requireUserID()
			if err != nil {
				return err
			}
			var progress api.Progress
			if err := ctx.apiGet("/api/progress", userID, &progress); err != nil {
				return err
			}

			rows := [][]string{
				{"Total XP", fmt.Sprintf("%d", progress.TotalXP)},
				{"Level", fmt.Sprintf("%d", progress.Level)},
				{"XP to next level", fmt.Sprintf("%d", progress.XPToNextLevel)},
				{"Current streak", fmt.Sprintf("%d", progress.CurrentStreak)},
				{"Longest streak", fmt.Sprintf("%d", progress.LongestStreak)},
				{"Lessons passed", fmt.Sprintf("%d", progress.LessonsPassed)},
				{"Attempts completed", fmt.Sprintf("%d", progress.AttemptsCompleted)},
				{"Average score", fmt.Sprintf("%.1f", progress.AverageScore)},
			}
			if progress.LastPracticeDate != "" {
				rows = append(rows, []string{"Last practice", progress.LastPracticeDate})
			}
			headers := []string{"Metric", "Value"}
			aligns := []columnAlignment{alignLeft, alignRight}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns, isTerminal(cmd.OutOrStdout())))
			return nil
		},
	}
}
