package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/imkarma/flowctl/internal/apflow"
	"github.com/imkarma/flowctl/internal/store"
	"github.com/imkarma/flowctl/internal/task"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	taskExecutor string
	taskPriority int
	taskInputs   string
	taskUser     string
	taskParent   string
	taskID       string
	taskFile     string

	treeRoot bool

	updStatus      string
	updProgress    float64
	updError       string
	updResult      string
	updInputs      string
	updStartedAt   string
	updCompletedAt string

	cancelForce bool
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create or manage tasks",
	Long:  "Create tasks and inspect, update, copy, cancel or delete them on the flow server.",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a task and start executing it",
	Long:  "Creates a task from flags, or one or more tasks from a JSON file (--file) holding a task object or an array of tasks.",
	RunE:  runTaskCreate,
}

var taskGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskGet,
}

var taskDetailCmd = &cobra.Command{
	Use:   "detail [id]",
	Short: "Show a task with full detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDetail,
}

var taskTreeCmd = &cobra.Command{
	Use:   "tree [id]",
	Short: "Show the task tree a task belongs to",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskTree,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Change fields of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var taskCopyCmd = &cobra.Command{
	Use:   "copy [id]",
	Short: "Copy a task and its subtree for re-execution",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCopy,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel [id...]",
	Short: "Cancel running tasks",
	Long:  "Asks the server to stop the given tasks. Tasks that already finished are reported, not treated as errors.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskCancel,
}

var taskTimelineCmd = &cobra.Command{
	Use:   "timeline [id]",
	Short: "Show created/started/completed times for every task in a tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskTimeline,
}

func init() {
	taskCreateCmd.Flags().StringVarP(&taskExecutor, "executor", "e", "", "Executor id (schemas.method)")
	taskCreateCmd.Flags().IntVarP(&taskPriority, "priority", "p", task.DefaultPriority, "Priority: 0 urgent, 1 high, 2 normal, 3 low")
	taskCreateCmd.Flags().StringVarP(&taskInputs, "inputs", "i", "{}", "Inputs as a JSON object")
	taskCreateCmd.Flags().StringVarP(&taskUser, "user", "u", "", "User id")
	taskCreateCmd.Flags().StringVar(&taskParent, "parent", "", "Parent task id")
	taskCreateCmd.Flags().StringVar(&taskID, "id", "", "Task id (default task-<uuid>)")
	taskCreateCmd.Flags().StringVar(&taskFile, "file", "", "JSON file with a task or an array of tasks")

	taskTreeCmd.Flags().BoolVar(&treeRoot, "root", false, "Treat the id as a root id")

	taskUpdateCmd.Flags().StringVar(&updStatus, "status", "", "New status")
	taskUpdateCmd.Flags().Float64Var(&updProgress, "progress", 0, "Progress in [0,1]")
	taskUpdateCmd.Flags().StringVar(&updError, "error", "", "Error message")
	taskUpdateCmd.Flags().StringVar(&updResult, "result", "", "Result as JSON")
	taskUpdateCmd.Flags().StringVar(&updInputs, "inputs", "", "Inputs as a JSON object")
	taskUpdateCmd.Flags().StringVar(&updStartedAt, "started-at", "", "Start timestamp")
	taskUpdateCmd.Flags().StringVar(&updCompletedAt, "completed-at", "", "Completion timestamp")

	taskCancelCmd.Flags().BoolVar(&cancelForce, "force", false, "Cancel immediately")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskGetCmd)
	taskCmd.AddCommand(taskDetailCmd)
	taskCmd.AddCommand(taskTreeCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskCopyCmd)
	taskCmd.AddCommand(taskCancelCmd)
	taskCmd.AddCommand(taskTimelineCmd)
}

// tasksFromFlags builds the tasks to submit for `task create`.
func tasksFromFlags(cmd *cobra.Command, args []string) ([]task.Task, error) {
	if taskFile != "" {
		data, err := os.ReadFile(taskFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", taskFile, err)
		}
		return task.ParseTasks(data)
	}

	d := task.Draft{
		ID:       taskID,
		Name:     strings.Join(args, " "),
		Executor: taskExecutor,
		Inputs:   taskInputs,
		UserID:   taskUser,
		ParentID: taskParent,
	}
	if cmd.Flags().Changed("priority") {
		d.Priority = &taskPriority
	}
	t, err := d.Build()
	if err != nil {
		return nil, err
	}
	return []task.Task{t}, nil
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	tasks, err := tasksFromFlags(cmd, args)
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.client.CreateTasks(cmd.Context(), tasks...)
	if err != nil {
		return err
	}
	s.record(res.RootTaskID, tasks[0].Name, store.ActionCreated)

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %d task(s), root %s %s\n",
		res.TaskCount, colorCyan.Sprint(res.RootTaskID), badge(task.Status(res.Status)))
	return nil
}

func runTaskGet(cmd *cobra.Command, args []string) error {
	return showTask(cmd, args[0], false)
}

func runTaskDetail(cmd *cobra.Command, args []string) error {
	return showTask(cmd, args[0], true)
}

func showTask(cmd *cobra.Command, id string, detail bool) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	get := s.client.GetTask
	if detail {
		get = s.client.GetTaskDetail
	}
	t, err := get(cmd.Context(), id)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), t)
	}
	renderTask(cmd.OutOrStdout(), t)
	return nil
}

func treeQuery(id string) apflow.TreeQuery {
	if treeRoot {
		return apflow.TreeQuery{RootID: id}
	}
	return apflow.TreeQuery{TaskID: id}
}

func runTaskTree(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	tree, err := s.client.GetTaskTree(cmd.Context(), treeQuery(args[0]))
	if err != nil {
		return err
	}
	if err := task.CheckLinks(&tree.Task); err != nil {
		log.Warn().Err(err).Msg("tree links")
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), tree)
	}
	return renderTree(cmd.OutOrStdout(), &tree.Task)
}

// updateFromFlags collects the fields the user asked to change.
func updateFromFlags(cmd *cobra.Command) (apflow.Update, error) {
	var u apflow.Update
	f := cmd.Flags()

	if f.Changed("status") {
		st := task.Status(updStatus)
		u.Status = &st
	}
	if f.Changed("progress") {
		p := updProgress
		u.Progress = &p
	}
	if f.Changed("error") {
		e := updError
		u.Error = &e
	}
	if f.Changed("result") {
		if !json.Valid([]byte(updResult)) {
			return u, fmt.Errorf("--result: invalid JSON format")
		}
		u.Result = json.RawMessage(updResult)
	}
	if f.Changed("inputs") {
		doc, err := task.ParseDocument(updInputs)
		if err != nil {
			return u, fmt.Errorf("--inputs: %w", err)
		}
		u.Inputs = doc
	}
	if f.Changed("started-at") {
		v := updStartedAt
		u.StartedAt = &v
	}
	if f.Changed("completed-at") {
		v := updCompletedAt
		u.CompletedAt = &v
	}
	if u.Empty() {
		return u, fmt.Errorf("nothing to update: pass at least one of --status, --progress, --error, --result, --inputs, --started-at, --completed-at")
	}
	return u, nil
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	u, err := updateFromFlags(cmd)
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	t, err := s.client.UpdateTask(cmd.Context(), args[0], u)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), t)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", nodeLine(t))
	return nil
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.client.DeleteTask(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if res.Success {
		s.record(res.TaskID, "", store.ActionDeleted)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), res)
	}
	if !res.Success {
		return fmt.Errorf("server did not delete task %s", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", res.TaskID)
	return nil
}

func runTaskCopy(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	tree, err := s.client.CopyTask(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	s.record(tree.ID, tree.Name, store.ActionCopied)

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), tree)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Copied %s to %s\n\n", args[0], colorCyan.Sprint(tree.ID))
	return renderTree(cmd.OutOrStdout(), &tree.Task)
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	outcomes, err := s.client.CancelTasks(cmd.Context(), args, cancelForce)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		if task.Status(o.Status) == task.StatusCancelled {
			s.record(o.TaskID, "", store.ActionCancelled)
		}
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), outcomes)
	}
	renderOutcomes(cmd.OutOrStdout(), outcomes)
	return nil
}

func runTaskTimeline(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	tree, err := s.client.GetTaskTree(cmd.Context(), apflow.TreeQuery{TaskID: args[0]})
	if err != nil {
		return err
	}
	if flagJSON {
		type event struct {
			TaskID      string `json:"task_id"`
			Depth       int    `json:"depth"`
			CreatedAt   string `json:"created_at,omitempty"`
			StartedAt   string `json:"started_at,omitempty"`
			CompletedAt string `json:"completed_at,omitempty"`
		}
		var events []event
		for _, n := range task.Flatten(&tree.Task) {
			events = append(events, event{n.Task.ID, n.Depth, n.Task.CreatedAt, n.Task.StartedAt, n.Task.CompletedAt})
		}
		return printJSON(cmd.OutOrStdout(), events)
	}
	return renderTimeline(cmd.OutOrStdout(), &tree.Task)
}
