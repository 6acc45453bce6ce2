package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/taskbot/pkg/autonomous"
	"github.com/gwillem/taskbot/pkg/robot"
	"github.com/gwillem/taskbot/pkg/sim"
	"github.com/gwillem/taskbot/pkg/task"
)

type AutosCommand struct {
	Tree bool `long:"tree" description:"Show each routine's task tree"`
}

var (
	autoNameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	autoKindStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func (c *AutosCommand) Execute(args []string) error {
	k, err := robot.LoadConstants(opts.Constants)
	if err != nil {
		return err
	}
	// Routines are only built here, never run.
	reg, err := autonomous.Routines(sim.NewWorld().Robot(), k)
	if err != nil {
		return err
	}

	for _, name := range reg.Names() {
		line := autoNameStyle.Render(name)
		if name == reg.Default() {
			line += dimStyle.Render(" (default)")
		}
		fmt.Println(line)
		if !c.Tree {
			continue
		}
		t, err := reg.Build(name)
		if err != nil {
			return err
		}
		var sb strings.Builder
		writeTree(&sb, t, 1)
		fmt.Print(sb.String())
	}
	return nil
}

func writeTree(sb *strings.Builder, t *task.Task, depth int) {
	detail := t.Kind().String()
	switch t.Kind() {
	case task.KindParallel:
		detail += " " + t.Policy().String()
	case task.KindTimeout:
		detail += " " + t.Bound().String()
	}
	fmt.Fprintf(sb, "%s%s %s %s\n", strings.Repeat("  ", depth), t.Name(),
		autoKindStyle.Render(detail), dimStyle.Render(t.Requires().String()))
	for _, ch := range t.Children() {
		writeTree(sb, ch, depth+1)
	}
}
