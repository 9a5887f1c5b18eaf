package main

import (
	"fmt"
	"os"
	"time"

	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/internal/editor"
	internalstrings "github.com/amonks/taskdash/internal/strings"
	"github.com/amonks/taskdash/todo"
	"github.com/spf13/cobra"
)

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "Manage your todos",
}

// todo list
var todoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List todos",
	Args:  cobra.NoArgs,
	RunE:  runTodoList,
}

var (
	todoListSearch string
	todoListStatus = string(todo.FilterAll)
	todoListJSON   bool
)

// todo show
var todoShowCmd = &cobra.Command{
	Use:   "show <id>...",
	Short: "Show detailed information about todos",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTodoShow,
}

var todoShowJSON bool

// todo create
var todoCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new todo",
	Long: `Create a new todo.

By default, opens $EDITOR to edit a TOML representation of the todo
when running interactively. Use --no-edit to skip the editor, or
--edit to force opening the editor even when not interactive.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTodoCreate,
}

var (
	todoCreateDescription string
	todoCreatePriority    = string(todo.PriorityMedium)
	todoCreateDue         string
	todoCreatePDF         string
	todoCreateEdit        bool
	todoCreateNoEdit      bool
)

// todo update
var todoUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a todo",
	Long: `Update a todo.

By default, opens $EDITOR to edit a TOML representation of the todo
when running interactively and no update flags are provided.
Use --no-edit to skip the editor, or --edit to force opening the editor even when not interactive.`,
	Args: cobra.ExactArgs(1),
	RunE: runTodoUpdate,
}

var (
	todoUpdateTitle       string
	todoUpdateDescription string
	todoUpdateStatus      string
	todoUpdatePriority    string
	todoUpdateDue         string
	todoUpdatePDF         string
	todoUpdateEdit        bool
	todoUpdateNoEdit      bool
)

// todo complete
var todoCompleteCmd = &cobra.Command{
	Use:   "complete <id>...",
	Short: "Mark one or more todos as completed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTodoSetStatus(cmd, args, todo.StatusCompleted, "Completed")
	},
}

// todo reopen
var todoReopenCmd = &cobra.Command{
	Use:   "reopen <id>...",
	Short: "Mark one or more todos as pending again",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTodoSetStatus(cmd, args, todo.StatusPending, "Reopened")
	},
}

// todo toggle
var todoToggleCmd = &cobra.Command{
	Use:   "toggle <id>...",
	Short: "Flip todos between pending and completed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTodoToggle,
}

// todo delete
var todoDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a todo",
	Args:  cobra.ExactArgs(1),
	RunE:  runTodoDelete,
}

// todo bulk-delete
var todoBulkDeleteCmd = &cobra.Command{
	Use:   "bulk-delete <id>...",
	Short: "Delete several todos in one request",
	Long: `Delete several todos in one request.

The server accepts or rejects the whole batch; on failure no todo is
reported as deleted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTodoBulkDelete,
}

func init() {
	rootCmd.AddCommand(todoCmd)
	todoCmd.AddCommand(todoListCmd, todoShowCmd, todoCreateCmd, todoUpdateCmd,
		todoCompleteCmd, todoReopenCmd, todoToggleCmd, todoDeleteCmd, todoBulkDeleteCmd)

	// todo list flags
	todoListCmd.Flags().StringVarP(&todoListSearch, "search", "s", "", "Search titles and descriptions")
	todoListCmd.Flags().Var(newStatusFilterValue(&todoListStatus), "status", statusFilterUsage())
	todoListCmd.Flags().BoolVar(&todoListJSON, "json", false, "Output as JSON")

	// todo show flags
	todoShowCmd.Flags().BoolVar(&todoShowJSON, "json", false, "Output as JSON")

	// todo create flags
	todoCreateCmd.Flags().StringVarP(&todoCreateDescription, "description", "d", "", "Description (use '-' to read from stdin)")
	todoCreateCmd.Flags().VarP(newPriorityValue(&todoCreatePriority), "priority", "p", priorityUsage())
	todoCreateCmd.Flags().StringVar(&todoCreateDue, "due", "", "Due date (YYYY-MM-DD)")
	todoCreateCmd.Flags().StringVar(&todoCreatePDF, "pdf", "", "Attach a PDF file")
	todoCreateCmd.Flags().BoolVarP(&todoCreateEdit, "edit", "e", false, "Open $EDITOR (default if interactive)")
	todoCreateCmd.Flags().BoolVar(&todoCreateNoEdit, "no-edit", false, "Do not open $EDITOR")

	// todo update flags
	todoUpdateCmd.Flags().StringVar(&todoUpdateTitle, "title", "", "New title")
	todoUpdateCmd.Flags().StringVarP(&todoUpdateDescription, "description", "d", "", "New description (use '-' to read from stdin)")
	todoUpdateCmd.Flags().Var(newStatusValue(&todoUpdateStatus), "status", statusUsage())
	todoUpdateCmd.Flags().VarP(newPriorityValue(&todoUpdatePriority), "priority", "p", priorityUsage())
	todoUpdateCmd.Flags().StringVar(&todoUpdateDue, "due", "", "New due date (YYYY-MM-DD, or none to clear)")
	todoUpdateCmd.Flags().StringVar(&todoUpdatePDF, "pdf", "", "Replace the attached PDF")
	todoUpdateCmd.Flags().BoolVarP(&todoUpdateEdit, "edit", "e", false, "Open $EDITOR (default if interactive and no flags)")
	todoUpdateCmd.Flags().BoolVar(&todoUpdateNoEdit, "no-edit", false, "Do not open $EDITOR")

	addDescriptionFlagAliases(todoCreateCmd, todoUpdateCmd)
}

func runTodoList(cmd *cobra.Command, args []string) error {
	syncer, _, err := openSyncer()
	if err != nil {
		return err
	}

	filter := todo.Filter{Search: todoListSearch, Status: todo.StatusFilter(todoListStatus)}
	if _, err := syncer.List(commandContext(cmd), filter); err != nil {
		return err
	}
	items := syncer.Collection().Visible()

	if todoListJSON {
		return encodeJSONToStdout(items)
	}

	if len(items) == 0 {
		fmt.Println(todoEmptyListMessage(filter))
		return nil
	}
	fmt.Print(formatTodoTable(items, time.Now()))
	return nil
}

func runTodoShow(cmd *cobra.Command, args []string) error {
	ids, err := parseTodoIDs(args)
	if err != nil {
		return err
	}
	syncer, _, err := openSyncer()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	items := make([]todo.Todo, 0, len(ids))
	for _, id := range ids {
		item, err := syncer.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("todo %d: %w", id, err)
		}
		items = append(items, *item)
	}

	if todoShowJSON {
		return encodeJSONToStdout(items)
	}

	now := time.Now()
	for i, item := range items {
		if i > 0 {
			fmt.Println()
			fmt.Println("---")
			fmt.Println()
		}
		printTodoDetail(item, now)
	}
	return nil
}

func runTodoCreate(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("description") {
		desc, err := resolveDescriptionFromStdin(todoCreateDescription, os.Stdin)
		if err != nil {
			return err
		}
		todoCreateDescription = desc
	}

	upload, err := openUploadFlag(todoCreatePDF)
	if err != nil {
		return err
	}

	// Determine whether to open editor:
	// - --edit forces editor
	// - --no-edit skips editor
	// - otherwise, open editor if interactive
	useEditor := todoCreateEdit || (!todoCreateNoEdit && editor.IsInteractive())

	var draft todo.Draft
	if useEditor {
		data := editor.DefaultCreateData()
		if len(args) > 0 {
			data.Title = args[0]
		}
		if cmd.Flags().Changed("priority") {
			data.Priority = todoCreatePriority
		}
		if cmd.Flags().Changed("due") {
			data.Due = todoCreateDue
		}
		if cmd.Flags().Changed("description") {
			data.Description = todoCreateDescription
		}

		parsed, err := editor.EditTodoWithData(data)
		if err != nil {
			return err
		}
		draft = parsed.Draft()
	} else {
		// Non-editor path: title is required
		if len(args) == 0 {
			return fmt.Errorf("title is required (use --edit to open editor)")
		}
		due, err := parseDueFlag(todoCreateDue)
		if err != nil {
			return err
		}
		draft = todo.Draft{
			Title:       args[0],
			Description: todoCreateDescription,
			Priority:    todo.Priority(todoCreatePriority),
			DueDate:     due,
		}
	}

	syncer, _, err := openSyncer()
	if err != nil {
		return err
	}
	created, err := syncer.Create(commandContext(cmd), draft, upload)
	if err != nil {
		return err
	}
	fmt.Printf("Created todo %s: %s\n", formatTodoID(created.ID), created.Title)
	return nil
}

func runTodoUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseTodoID(args[0])
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("description") {
		desc, err := resolveDescriptionFromStdin(todoUpdateDescription, os.Stdin)
		if err != nil {
			return err
		}
		todoUpdateDescription = desc
	}

	upload, err := openUploadFlag(todoUpdatePDF)
	if err != nil {
		return err
	}

	hasFlags := hasChangedFlags(cmd, "title", "description", "status", "priority", "due", "pdf")

	syncer, _, err := openSyncer()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	var patch todo.Patch
	if shouldUseTodoUpdateEditor(hasFlags, todoUpdateEdit, todoUpdateNoEdit, editor.IsInteractive()) {
		existing, err := syncer.Get(ctx, id)
		if err != nil {
			return err
		}

		// Pre-populate from existing todo, then override with any flags
		data := editor.DataFromTodo(existing)
		if cmd.Flags().Changed("title") {
			data.Title = todoUpdateTitle
		}
		if cmd.Flags().Changed("description") {
			data.Description = todoUpdateDescription
		}
		if cmd.Flags().Changed("status") {
			data.Status = todoUpdateStatus
		}
		if cmd.Flags().Changed("priority") {
			data.Priority = todoUpdatePriority
		}
		if cmd.Flags().Changed("due") {
			data.Due = todoUpdateDue
			if isNoDueDate(todoUpdateDue) {
				data.Due = ""
			}
		}

		parsed, err := editor.EditTodoWithData(data)
		if err != nil {
			return err
		}
		patch = parsed.Patch()
	} else {
		// Non-editor path: at least one flag is required
		if !hasFlags {
			return fmt.Errorf("at least one update flag is required (use --edit to open editor)")
		}
		if patch, err = updatePatchFromFlags(cmd); err != nil {
			return err
		}
	}

	updated, err := syncer.Update(ctx, id, patch, upload)
	if err != nil {
		return err
	}
	fmt.Printf("Updated %s: %s\n", formatTodoID(updated.ID), updated.Title)
	return nil
}

func updatePatchFromFlags(cmd *cobra.Command) (todo.Patch, error) {
	var patch todo.Patch
	if cmd.Flags().Changed("title") {
		title := todoUpdateTitle
		patch.Title = &title
	}
	if cmd.Flags().Changed("description") {
		description := todoUpdateDescription
		patch.Description = &description
	}
	if cmd.Flags().Changed("status") {
		status := todo.Status(todoUpdateStatus)
		patch.Status = &status
	}
	if cmd.Flags().Changed("priority") {
		priority := todo.Priority(todoUpdatePriority)
		patch.Priority = &priority
	}
	if cmd.Flags().Changed("due") {
		if isNoDueDate(todoUpdateDue) {
			patch.ClearDueDate = true
			return patch, nil
		}
		due, err := parseDueFlag(todoUpdateDue)
		if err != nil {
			return todo.Patch{}, err
		}
		if due == nil {
			return todo.Patch{}, fmt.Errorf("--due requires a date (use --due none to clear it)")
		}
		patch.DueDate = due
	}
	return patch, nil
}

func shouldUseTodoUpdateEditor(hasUpdateFlags bool, editFlag bool, noEditFlag bool, interactive bool) bool {
	if editFlag {
		return true
	}
	if noEditFlag {
		return false
	}
	if hasUpdateFlags {
		return false
	}
	return interactive
}

func runTodoSetStatus(cmd *cobra.Command, args []string, status todo.Status, verb string) error {
	ids, err := parseTodoIDs(args)
	if err != nil {
		return err
	}
	syncer, _, err := openSyncer()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	for _, id := range ids {
		updated, err := syncer.SetStatus(ctx, id, status)
		if err != nil {
			return fmt.Errorf("todo %d: %w", id, err)
		}
		fmt.Printf("%s %s: %s\n", verb, formatTodoID(updated.ID), updated.Title)
	}
	return nil
}

func runTodoToggle(cmd *cobra.Command, args []string) error {
	ids, err := parseTodoIDs(args)
	if err != nil {
		return err
	}
	syncer, _, err := openSyncer()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	for _, id := range ids {
		// Toggle flips what the view holds, so load the todo first.
		if _, err := syncer.Get(ctx, id); err != nil {
			return fmt.Errorf("todo %d: %w", id, err)
		}
		updated, err := syncer.Toggle(ctx, id)
		if err != nil {
			return fmt.Errorf("todo %d: %w", id, err)
		}
		verb := "Reopened"
		if updated.Status == todo.StatusCompleted {
			verb = "Completed"
		}
		fmt.Printf("%s %s: %s\n", verb, formatTodoID(updated.ID), updated.Title)
	}
	return nil
}

func runTodoDelete(cmd *cobra.Command, args []string) error {
	id, err := parseTodoID(args[0])
	if err != nil {
		return err
	}
	syncer, _, err := openSyncer()
	if err != nil {
		return err
	}
	if err := syncer.Remove(commandContext(cmd), id); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", formatTodoID(id))
	return nil
}

func runTodoBulkDelete(cmd *cobra.Command, args []string) error {
	ids, err := parseTodoIDs(args)
	if err != nil {
		return err
	}
	syncer, _, err := openSyncer()
	if err != nil {
		return err
	}
	if err := syncer.BulkRemove(commandContext(cmd), ids); err != nil {
		return err
	}
	fmt.Printf("Deleted %d todos\n", len(dedupeIDs(ids)))
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// openUploadFlag opens the --pdf argument, if any, and checks it before
// anything is sent.
func openUploadFlag(path string) (*todo.Upload, error) {
	if path == "" {
		return nil, nil
	}
	upload, err := todo.OpenUpload(path)
	if err != nil {
		return nil, err
	}
	if err := upload.Check(); err != nil {
		return nil, err
	}
	return upload, nil
}

// isNoDueDate reports whether an update flag asks to remove the due date.
func isNoDueDate(value string) bool {
	return internalstrings.NormalizeLowerTrimSpace(value) == "none"
}

func parseDueFlag(value string) (*todo.Date, error) {
	if value == "" {
		return nil, nil
	}
	due, err := api.ParseDate(value)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q (use YYYY-MM-DD)", value)
	}
	return &due, nil
}

func todoEmptyListMessage(filter todo.Filter) string {
	switch {
	case filter.Search != "" && filter.Status != todo.FilterAll && filter.Status != "":
		return fmt.Sprintf("No %s todos match %q.", filter.Status, filter.Search)
	case filter.Search != "":
		return fmt.Sprintf("No todos match %q.", filter.Search)
	case filter.Status != todo.FilterAll && filter.Status != "":
		return fmt.Sprintf("No %s todos found.", filter.Status)
	}
	return "No todos found."
}
