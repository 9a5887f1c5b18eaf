package main

import (
	"fmt"

	"github.com/amonks/taskdash/todo"
	"github.com/spf13/cobra"
)

var todoAttachmentCmd = &cobra.Command{
	Use:     "attachment",
	Aliases: []string{"pdf"},
	Short:   "Manage the PDF attached to a todo",
}

// todo attachment rm
var todoAttachmentRemoveCmd = &cobra.Command{
	Use:   "rm <todo-id> [attachment-id]",
	Short: "Remove a PDF from a todo",
	Long: `Remove a PDF from a todo.

Without an attachment ID the todo's current PDF is removed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTodoAttachmentRemove,
}

// todo attachment download
var todoAttachmentDownloadCmd = &cobra.Command{
	Use:   "download <todo-id>",
	Short: "Save a todo's PDF to disk",
	Args:  cobra.ExactArgs(1),
	RunE:  runTodoAttachmentDownload,
}

var (
	todoAttachmentDownloadOut  string
	todoAttachmentDownloadName string
)

func init() {
	todoCmd.AddCommand(todoAttachmentCmd)
	todoAttachmentCmd.AddCommand(todoAttachmentRemoveCmd, todoAttachmentDownloadCmd)

	todoAttachmentDownloadCmd.Flags().StringVarP(&todoAttachmentDownloadOut, "out", "o", "", "Directory to save into (default from config)")
	todoAttachmentDownloadCmd.Flags().StringVar(&todoAttachmentDownloadName, "name", "", "File name (default the uploaded name)")
}

func runTodoAttachmentRemove(cmd *cobra.Command, args []string) error {
	todoID, err := parseTodoID(args[0])
	if err != nil {
		return err
	}
	syncer, _, err := openSyncer()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	var attachmentID int64
	if len(args) > 1 {
		if attachmentID, err = parseTodoID(args[1]); err != nil {
			return fmt.Errorf("invalid attachment id %q", args[1])
		}
	} else {
		item, err := syncer.Get(ctx, todoID)
		if err != nil {
			return err
		}
		attachment, err := firstAttachment(item)
		if err != nil {
			return err
		}
		attachmentID = attachment.ID
	}

	if err := syncer.RemoveAttachment(ctx, todoID, attachmentID); err != nil {
		return err
	}
	fmt.Printf("Removed PDF %d from %s\n", attachmentID, formatTodoID(todoID))
	return nil
}

func runTodoAttachmentDownload(cmd *cobra.Command, args []string) error {
	todoID, err := parseTodoID(args[0])
	if err != nil {
		return err
	}
	syncer, _, err := openSyncer()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	// Loading the todo lets the download keep the uploaded file name.
	item, err := syncer.Get(ctx, todoID)
	if err != nil {
		return err
	}
	if _, err := firstAttachment(item); err != nil {
		return err
	}

	dir := todoAttachmentDownloadOut
	if dir == "" {
		dir = cfg.Downloads.Dir
	}
	path, err := syncer.DownloadAttachment(ctx, todoID, todoAttachmentDownloadName, dir)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s\n", path)
	return nil
}

func firstAttachment(item *todo.Todo) (todo.Attachment, error) {
	if len(item.Attachments) == 0 {
		return todo.Attachment{}, fmt.Errorf("todo %d has no PDF attached", item.ID)
	}
	return item.Attachments[0], nil
}
