package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amonks/taskdash/todo"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize your todos",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var statsJSON bool

var (
	statsBorder = lipgloss.Border{
		Top:         "-",
		Bottom:      "-",
		Left:        "|",
		Right:       "|",
		TopLeft:     "+",
		TopRight:    "+",
		BottomLeft:  "+",
		BottomRight: "+",
	}
	statsCardStyle  = lipgloss.NewStyle().Border(statsBorder).Padding(0, 1).Width(14)
	statsLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	statsValueStyle = lipgloss.NewStyle().Bold(true)
	statsAlertStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

const statsBarWidth = 20

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	syncer, _, err := openSyncer()
	if err != nil {
		return err
	}
	items, err := syncer.List(commandContext(cmd), todo.Filter{Status: todo.FilterAll})
	if err != nil {
		return err
	}

	stats := todo.Summarize(items, time.Now())
	if statsJSON {
		return encodeJSONToStdout(stats)
	}
	fmt.Print(renderStats(stats))
	return nil
}

func renderStats(stats todo.Analytics) string {
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		statsCard("Total", strconv.Itoa(stats.Total), false),
		statsCard("Completed", strconv.Itoa(stats.Completed), false),
		statsCard("Pending", strconv.Itoa(stats.Pending), false),
		statsCard("Done", strconv.Itoa(stats.CompletionRate)+"%", false),
		statsCard("Overdue", strconv.Itoa(stats.Overdue), stats.Overdue > 0),
		statsCard("Due today", strconv.Itoa(stats.DueToday), false),
	)

	var b strings.Builder
	b.WriteString(cards)
	b.WriteString("\n\nBy priority\n")
	for _, priority := range todo.ValidPriorities() {
		count := stats.ByPriority[priority]
		fmt.Fprintf(&b, "  %-7s %-*s %d\n", priority, statsBarWidth, statsBar(count, stats.Total), count)
	}
	return b.String()
}

func statsCard(label, value string, alert bool) string {
	valueStyle := statsValueStyle
	if alert {
		valueStyle = statsAlertStyle
	}
	return statsCardStyle.Render(statsLabelStyle.Render(label) + "\n" + valueStyle.Render(value))
}

// statsBar draws count as a share of total.
func statsBar(count, total int) string {
	if total == 0 || count == 0 {
		return ""
	}
	width := count * statsBarWidth / total
	if width == 0 {
		width = 1
	}
	return strings.Repeat("#", width)
}
