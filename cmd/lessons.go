package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	lessonTopic   string
	lessonSubject string
	lessonLevel   string
	lessonOwner   string
)

var lessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "Manage the lesson knowledge base",
}

var lessonsAddCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Add a lesson and index its embedding",
	Args:  cobra.ExactArgs(1),
	RunE:  runLessonsAdd,
}

var lessonsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored lessons",
	Args:  cobra.NoArgs,
	RunE:  runLessonsList,
}

var lessonsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a lesson and its embeddings",
	Args:  cobra.ExactArgs(1),
	RunE:  runLessonsDelete,
}

func init() {
	lessonsAddCmd.Flags().StringVar(&lessonTopic, "topic", "", "short lesson topic (required)")
	lessonsAddCmd.Flags().StringVar(&lessonSubject, "subject", "", `subject category, e.g. "Physics"`)
	lessonsAddCmd.Flags().StringVar(&lessonLevel, "level", "", `difficulty label, e.g. "High School"`)
	lessonsAddCmd.Flags().StringVar(&lessonOwner, "owner", "", "owning user id")
	_ = lessonsAddCmd.MarkFlagRequired("topic")

	lessonsCmd.AddCommand(lessonsAddCmd, lessonsListCmd, lessonsDeleteCmd)
	rootCmd.AddCommand(lessonsCmd)
}

func runLessonsAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, cleanup, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	lesson, err := a.Repository.Add(ctx, lessonTopic, args[0], lessonSubject, lessonLevel, lessonOwner)
	if err != nil {
		return fmt.Errorf("adding lesson: %w", err)
	}

	fmt.Printf("Added lesson %s (%s)\n", lesson.ID, lesson.Topic)
	return nil
}

func runLessonsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, cleanup, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.Repository.Load(ctx); err != nil {
		return fmt.Errorf("loading lessons: %w", err)
	}

	lessons := a.Repository.All()
	if len(lessons) == 0 {
		fmt.Println("No lessons stored.")
		return nil
	}

	for _, lesson := range lessons {
		line := lesson.Topic
		if lesson.Subject != "" {
			line += " [" + lesson.Subject + "]"
		}
		fmt.Printf("%s  %s\n", lesson.ID, line)
	}
	return nil
}

func runLessonsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, cleanup, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.Repository.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("deleting lesson: %w", err)
	}

	fmt.Printf("Deleted lesson %s\n", args[0])
	return nil
}
