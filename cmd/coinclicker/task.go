package main

import (
	"fmt"
	"time"

	"coinclicker/pkg/tasks"
	"coinclicker/pkg/ui"

	"github.com/spf13/cobra"
)

// taskCmd represents the task command
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Earn bonus coins by completing tasks",
}

// taskListCmd represents the task list command
var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks and whether they can be claimed",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

// taskCompleteCmd represents the task complete command
var taskCompleteCmd = &cobra.Command{
	Use:       "complete <type>",
	Short:     "Claim the reward for a task",
	Example:   `  coinclicker task complete daily`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: taskTypes(),
	RunE:      runTaskComplete,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskCompleteCmd)
}

func taskTypes() []string {
	types := make([]string, 0, len(tasks.Catalogue))
	for _, t := range tasks.Catalogue {
		types = append(types, t.Type)
	}
	return types
}

func runTaskList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(); err != nil {
		return err
	}

	svc, err := a.newTasks()
	if err != nil {
		return err
	}

	ui.PrintHighlight("Tasks")
	for _, st := range svc.List() {
		fmt.Fprintf(ui.Output, "  %-8s %-28s +%d coins  %s\n", st.Type, st.Title, st.Reward, taskAvailability(st))
		fmt.Fprintf(ui.Output, "           %s\n", ui.Dim(st.Description))
	}
	return nil
}

func taskAvailability(st tasks.Status) string {
	switch {
	case st.Available:
		return ui.Green("available")
	case st.NextAvailable.IsZero():
		return ui.Dim("claimed")
	default:
		return ui.Yellow("again in " + time.Until(st.NextAvailable).Round(time.Minute).String())
	}
}

func runTaskComplete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(); err != nil {
		return err
	}

	task, ok := tasks.Lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: %q (choose one of %v)", tasks.ErrUnknownTask, args[0], taskTypes())
	}

	svc, err := a.newTasks()
	if err != nil {
		return err
	}
	balance, err := svc.Complete(cmd.Context(), task.Type)
	if err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("%s complete, +%d coins", task.Title, task.Reward))
	ui.PrintInfo("Balance", fmt.Sprintf("%d coins", balance))
	return nil
}
