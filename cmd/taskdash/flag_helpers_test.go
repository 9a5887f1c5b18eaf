package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/amonks/taskdash/todo"
	"github.com/spf13/cobra"
)

func TestHasChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("title", "", "")
	cmd.Flags().String("status", "", "")

	if hasChangedFlags(cmd, "title", "status") {
		t.Fatal("expected no changed flags")
	}
	if err := cmd.Flags().Set("status", "pending"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if !hasChangedFlags(cmd, "title", "status") {
		t.Fatal("expected status to be reported as changed")
	}
}

func TestDescriptionAlias(t *testing.T) {
	var description string
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&description, "description", "", "")
	addDescriptionFlagAliases(cmd)

	if err := cmd.ParseFlags([]string{"--desc", "hello"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if description != "hello" {
		t.Fatalf("expected alias to set description, got %q", description)
	}
	if !cmd.Flags().Changed("description") {
		t.Fatal("expected description to be marked changed")
	}
}

func TestPriorityValue(t *testing.T) {
	target := string(todo.PriorityMedium)
	value := newPriorityValue(&target)

	if err := value.Set(" HIGH "); err != nil {
		t.Fatalf("set high: %v", err)
	}
	if target != "high" || value.String() != "high" {
		t.Fatalf("expected high, got %q", target)
	}

	err := value.Set("p1")
	if !errors.Is(err, todo.ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
	if !strings.Contains(err.Error(), "urgent, high, medium, low") {
		t.Fatalf("expected valid values in error, got %v", err)
	}
	if target != "high" {
		t.Fatalf("expected rejected value to leave target alone, got %q", target)
	}
}

func TestStatusValues(t *testing.T) {
	var status string
	if err := newStatusValue(&status).Set("completed"); err != nil || status != "completed" {
		t.Fatalf("expected completed, got %q (%v)", status, err)
	}
	if err := newStatusValue(&status).Set("all"); !errors.Is(err, todo.ErrInvalidStatus) {
		t.Fatalf("expected all to be rejected as a status, got %v", err)
	}

	filter := string(todo.FilterAll)
	if err := newStatusFilterValue(&filter).Set("pending"); err != nil || filter != "pending" {
		t.Fatalf("expected pending filter, got %q (%v)", filter, err)
	}
	if err := newStatusFilterValue(&filter).Set("done"); !errors.Is(err, todo.ErrInvalidStatusFilter) {
		t.Fatalf("expected ErrInvalidStatusFilter, got %v", err)
	}
}

func TestParseTodoIDs(t *testing.T) {
	ids, err := parseTodoIDs([]string{"1", "#12", " 7 "})
	if err != nil {
		t.Fatalf("parse ids: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 12 || ids[2] != 7 {
		t.Fatalf("unexpected ids %v", ids)
	}

	for _, bad := range []string{"", "abc", "0", "-3"} {
		if _, err := parseTodoID(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestShouldUseTodoUpdateEditor(t *testing.T) {
	cases := []struct {
		name        string
		hasFlags    bool
		edit        bool
		noEdit      bool
		interactive bool
		want        bool
	}{
		{name: "edit forces", hasFlags: true, edit: true, want: true},
		{name: "no-edit skips", noEdit: true, interactive: true, want: false},
		{name: "flags skip", hasFlags: true, interactive: true, want: false},
		{name: "interactive default", interactive: true, want: true},
		{name: "non-interactive default", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := shouldUseTodoUpdateEditor(tc.hasFlags, tc.edit, tc.noEdit, tc.interactive)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestResolveDescriptionFromStdin(t *testing.T) {
	got, err := resolveDescriptionFromStdin("-", strings.NewReader("from stdin\n"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "from stdin" {
		t.Fatalf("expected trailing newline trimmed, got %q", got)
	}

	got, err = resolveDescriptionFromStdin("literal", strings.NewReader("ignored"))
	if err != nil || got != "literal" {
		t.Fatalf("expected literal, got %q (%v)", got, err)
	}
}

func TestParseDueFlag(t *testing.T) {
	due, err := parseDueFlag("2026-03-05")
	if err != nil || due == nil || due.String() != "2026-03-05" {
		t.Fatalf("unexpected due %v (%v)", due, err)
	}
	if due, err := parseDueFlag(""); err != nil || due != nil {
		t.Fatalf("expected no due date, got %v (%v)", due, err)
	}
	if _, err := parseDueFlag("next week"); err == nil {
		t.Fatal("expected bad date to be rejected")
	}
}

func TestUpdatePatchDueFlag(t *testing.T) {
	t.Cleanup(func() { todoUpdateDue = "" })
	parse := func(args ...string) (todo.Patch, error) {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().StringVar(&todoUpdateDue, "due", "", "")
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatalf("parse flags: %v", err)
		}
		return updatePatchFromFlags(cmd)
	}

	patch, err := parse("--due", " None ")
	if err != nil || !patch.ClearDueDate || patch.DueDate != nil {
		t.Fatalf("expected none to clear the due date, got %+v (%v)", patch, err)
	}

	patch, err = parse("--due", "2030-01-15")
	if err != nil || patch.ClearDueDate || patch.DueDate == nil || patch.DueDate.String() != "2030-01-15" {
		t.Fatalf("expected a due date, got %+v (%v)", patch, err)
	}

	if _, err := parse("--due", ""); err == nil || !strings.Contains(err.Error(), "--due none") {
		t.Fatalf("expected empty --due to be rejected, got %v", err)
	}

	patch, err = parse()
	if err != nil || patch.ClearDueDate || patch.DueDate != nil {
		t.Fatalf("expected the due date left alone, got %+v (%v)", patch, err)
	}
}
