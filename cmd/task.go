package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomosync/internal/edit"
	"github.com/fakeyudi/pomosync/internal/state"
)

var taskEstimate int

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the task list pomodoros are credited to",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := applyEdit(cmd.Context(), edit.Edit{
			Kind:     edit.TaskAdd,
			Name:     strings.Join(args, " "),
			Estimate: taskEstimate,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added task %d: %s\n", res.TaskID, res.TaskName)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := readState(cmd.Context())
		if err != nil {
			return err
		}
		printTasks(cmd.OutOrStdout(), snap)
		return nil
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Toggle a task's done flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		res, err := applyEdit(cmd.Context(), edit.Edit{Kind: edit.TaskToggle, TaskID: id})
		if err != nil {
			return err
		}
		if res.Done {
			fmt.Fprintf(cmd.OutOrStdout(), "task %d done\n", id)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "task %d reopened\n", id)
		}
		return nil
	},
}

var taskRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTask(cmd, args[0], "removed", edit.Edit{Kind: edit.TaskRemove})
	},
}

var taskSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Credit future pomodoros to a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTask(cmd, args[0], "selected", edit.Edit{Kind: edit.TaskSelect})
	},
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <id> <position>",
	Short: "Move a task to a 1-based position in the list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := strconv.Atoi(args[1])
		if err != nil || pos < 1 {
			return fmt.Errorf("invalid position %q", args[1])
		}
		return editTask(cmd, args[0], "moved", edit.Edit{Kind: edit.TaskMove, Position: pos - 1})
	},
}

var taskNoteCmd = &cobra.Command{
	Use:   "note <id> <text>",
	Short: "Set a task's notes (empty text clears them)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTask(cmd, args[0], "updated", edit.Edit{Kind: edit.TaskNote, Text: strings.Join(args[1:], " ")})
	},
}

var taskTagCmd = &cobra.Command{
	Use:   "tag <id> <tag>...",
	Short: "Tag a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTask(cmd, args[0], "tagged", edit.Edit{Kind: edit.TaskTag, Values: args[1:]})
	},
}

// editTask applies e to the task named by rawID and reports verb.
func editTask(cmd *cobra.Command, rawID, verb string, e edit.Edit) error {
	id, err := parseTaskID(rawID)
	if err != nil {
		return err
	}
	e.TaskID = id
	if _, err := applyEdit(cmd.Context(), e); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "task %d %s\n", id, verb)
	return nil
}

func parseTaskID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}

func printTasks(out io.Writer, snap state.Snapshot) {
	if len(snap.Tasks) == 0 {
		fmt.Fprintln(out, "no tasks")
		return
	}
	for _, t := range snap.Tasks {
		check := " "
		if t.Done {
			check = "x"
		}
		marker := " "
		if snap.CurrentTaskID != nil && *snap.CurrentTaskID == t.ID {
			marker = ">"
		}
		progress := strconv.Itoa(t.CompletedPomodoros)
		if t.EstimatedPomodoros != nil {
			progress += "/" + strconv.Itoa(*t.EstimatedPomodoros)
		}
		line := fmt.Sprintf("%s [%s] %3d  %s (%s)", marker, check, t.ID, t.Name, progress)
		for _, tag := range t.Tags {
			line += " #" + tag
		}
		fmt.Fprintln(out, line)
		if t.Notes != "" {
			fmt.Fprintf(out, "           %s\n", t.Notes)
		}
	}
}

func init() {
	taskAddCmd.Flags().IntVarP(&taskEstimate, "estimate", "e", 0, "estimated pomodoros")
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskDoneCmd, taskRemoveCmd,
		taskSelectCmd, taskMoveCmd, taskNoteCmd, taskTagCmd)
	rootCmd.AddCommand(taskCmd)
}
