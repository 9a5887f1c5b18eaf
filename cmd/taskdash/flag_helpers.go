package main

import (
	"fmt"
	"strconv"
	"strings"

	internalstrings "github.com/amonks/taskdash/internal/strings"
	"github.com/amonks/taskdash/internal/validation"
	"github.com/amonks/taskdash/todo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func hasChangedFlags(cmd *cobra.Command, flags ...string) bool {
	for _, flag := range flags {
		if cmd.Flags().Changed(flag) {
			return true
		}
	}
	return false
}

var descriptionFlagAliases = map[string]string{
	"desc": "description",
}

func addDescriptionFlagAliases(cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		setFlagAliases(cmd.Flags(), descriptionFlagAliases)
	}
}

func setFlagAliases(flags *pflag.FlagSet, aliases map[string]string) {
	if len(aliases) == 0 {
		return
	}

	normalize := flags.GetNormalizeFunc()
	flags.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if alias, ok := aliases[name]; ok {
			name = alias
		}
		return normalize(f, name)
	})
}

// enumValue is a string flag restricted to a fixed set of values. The
// parse func reports errors in the same words as the todo validators.
type enumValue struct {
	target   *string
	typeName string
	parse    func(string) error
}

func (v *enumValue) String() string {
	if v.target == nil {
		return ""
	}
	return *v.target
}

func (v *enumValue) Type() string { return v.typeName }

func (v *enumValue) Set(value string) error {
	value = internalstrings.NormalizeLowerTrimSpace(value)
	if err := v.parse(value); err != nil {
		return err
	}
	*v.target = value
	return nil
}

func newStatusFilterValue(target *string) *enumValue {
	return &enumValue{target: target, typeName: "status", parse: func(value string) error {
		_, err := todo.ParseStatusFilter(value)
		return err
	}}
}

func newStatusValue(target *string) *enumValue {
	return &enumValue{target: target, typeName: "status", parse: func(value string) error {
		if !todo.Status(value).IsValid() {
			return validation.FormatInvalidValueError(todo.ErrInvalidStatus, todo.Status(value), todo.ValidStatuses())
		}
		return nil
	}}
}

func newPriorityValue(target *string) *enumValue {
	return &enumValue{target: target, typeName: "priority", parse: func(value string) error {
		if !todo.Priority(value).IsValid() {
			return validation.FormatInvalidValueError(todo.ErrInvalidPriority, todo.Priority(value), todo.ValidPriorities())
		}
		return nil
	}}
}

func statusFilterUsage() string {
	return "Filter by status (" + validation.FormatValidValues(todo.ValidStatusFilters()) + ")"
}

func statusUsage() string {
	return "Status (" + validation.FormatValidValues(todo.ValidStatuses()) + ")"
}

func priorityUsage() string {
	return "Priority (" + validation.FormatValidValues(todo.ValidPriorities()) + ")"
}

// parseTodoIDs parses positional todo IDs.
func parseTodoIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseTodoID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseTodoID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(arg), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid todo id %q", arg)
	}
	return id, nil
}
