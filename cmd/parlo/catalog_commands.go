package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"parlo/internal/api"
	"parlo/internal/store"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Lesson catalog utilities",
	}

	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogSeedCommand(ctx))

	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List topics and lessons with your standing",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := ctx.userID()
			if err != nil {
				return err
			}
			var catalog api.CatalogResponse
			if err := ctx.apiGet("/api/catalog", userID, &catalog); err != nil {
				return err
			}

			rows := make([][]string, 0)
			for _, topic := range catalog.Topics {
				for _, lesson := range topic.Lessons {
					standing := ""
					if userID > 0 {
						switch {
						case lesson.Passed:
							standing = "passed"
						case lesson.Unlocked:
							standing = "unlocked"
						default:
							standing = "locked"
						}
					}
					rows = append(rows, []string{
						topic.Slug,
						lesson.Slug,
						lesson.Title,
						lesson.Type,
						fmt.Sprintf("%.0f", lesson.PassingScore),
						standing,
					})
				}
			}
			headers := []string{"Topic", "Lesson", "Title", "Type", "Pass", "Standing"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns, isTerminal(cmd.OutOrStdout())))
			return nil
		},
	}
}

// seedFile is the TOML shape consumed by catalog seed.
type seedFile struct {
	Language string      `toml:"language"`
	Topics   []seedTopic `toml:"topics"`
}

type seedTopic struct {
	Slug        string       `toml:"slug"`
	Title       string       `toml:"title"`
	Description string       `toml:"description"`
	Lessons     []seedLesson `toml:"lessons"`
}

type seedLesson struct {
	Slug         string            `toml:"slug"`
	Title        string            `toml:"title"`
	Type         string            `toml:"type"`
	PassingScore float64           `toml:"passing_score"`
	Pairs        []seedPair        `toml:"pairs"`
	Exercises    []seedExercise    `toml:"exercises"`
	Conversation *seedConversation `toml:"conversation"`
}

type seedPair struct {
	Word    string `toml:"word"`
	Meaning string `toml:"meaning"`
}

type seedExercise struct {
	Content     string  `toml:"content"`
	Phonetic    string  `toml:"phonetic"`
	TargetScore float64 `toml:"target_score"`
}

type seedConversation struct {
	AIRole           string   `toml:"ai_role"`
	Scenario         string   `toml:"scenario"`
	MinTurns         int      `toml:"min_turns"`
	VocabularyFocus  []string `toml:"vocabulary_focus"`
	VocabularyTarget int      `toml:"vocabulary_target"`
}

func newCatalogSeedCommand(ctx *commandContext) *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load topics and lessons from a TOML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}
			var seed seedFile
			if err := toml.Unmarshal(raw, &seed); err != nil {
				return fmt.Errorf("parse seed file: %w", err)
			}
			if len(seed.Topics) == 0 {
				return fmt.Errorf("seed file has no topics")
			}

			languageName := ""
			if tag := strings.TrimSpace(seed.Language); tag != "" {
				parsed, err := language.Parse(tag)
				if err != nil {
					return fmt.Errorf("invalid language tag %q: %w", tag, err)
				}
				languageName = display.English.Languages().Name(parsed)
			}

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			runCtx := cmd.Context()
			topics, lessons := 0, 0
			for topicIdx, topic := range seed.Topics {
				record := &store.Topic{
					Slug:        topic.Slug,
					Title:       topic.Title,
					Description: topic.Description,
					Position:    topicIdx + 1,
				}
				if err := st.CreateTopic(runCtx, record); err != nil {
					return fmt.Errorf("create topic %q: %w", topic.Slug, err)
				}
				topics++
				for lessonIdx, lesson := range topic.Lessons {
					if err := seedLessonRecords(runCtx, st, record.ID, lessonIdx+1, lesson); err != nil {
						return fmt.Errorf("create lesson %q: %w", lesson.Slug, err)
					}
					lessons++
				}
			}

			out := cmd.OutOrStdout()
			if languageName != "" {
				fmt.Fprintf(out, "Seeded %d topics and %d lessons (%s)\n", topics, lessons, languageName)
			} else {
				fmt.Fprintf(out, "Seeded %d topics and %d lessons\n", topics, lessons)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Path to the TOML seed file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func seedLessonRecords(ctx context.Context, st *store.Store, topicID int64, position int, lesson seedLesson) error {
	passingScore := lesson.PassingScore
	if passingScore <= 0 {
		passingScore = 60
	}
	record := &store.Lesson{
		TopicID:      topicID,
		Slug:         lesson.Slug,
		Title:        lesson.Title,
		Type:         store.LessonType(lesson.Type),
		Position:     position,
		PassingScore: passingScore,
		Active:       true,
	}
	if err := st.CreateLesson(ctx, record); err != nil {
		return err
	}

	for i, pair := range lesson.Pairs {
		if err := st.AddVocabularyPair(ctx, &store.VocabularyPair{
			LessonID: record.ID,
			Word:     pair.Word,
			Meaning:  pair.Meaning,
			Position: i + 1,
		}); err != nil {
			return fmt.Errorf("add pair %q: %w", pair.Word, err)
		}
	}
	for i, exercise := range lesson.Exercises {
		targetScore := exercise.TargetScore
		if targetScore <= 0 {
			targetScore = passingScore
		}
		if err := st.AddPronunciationExercise(ctx, &store.PronunciationExercise{
			LessonID:    record.ID,
			Content:     exercise.Content,
			Phonetic:    exercise.Phonetic,
			TargetScore: targetScore,
			Position:    i + 1,
		}); err != nil {
			return fmt.Errorf("add exercise %q: %w", exercise.Content, err)
		}
	}
	if lesson.Conversation != nil {
		conv := lesson.Conversation
		if err := st.SetConversationTemplate(ctx, &store.ConversationTemplate{
			LessonID:         record.ID,
			AIRole:           conv.AIRole,
			Scenario:         conv.Scenario,
			MinTurns:         conv.MinTurns,
			VocabularyFocus:  conv.VocabularyFocus,
			VocabularyTarget: conv.VocabularyTarget,
		}); err != nil {
			return fmt.Errorf("set conversation template: %w", err)
		}
	}
	return nil
}
