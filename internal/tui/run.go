package tui

import (
	"context"
	"os"

	"github.com/betbot/botdash/internal/dashboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// ErrNotTerminal stdout 不是终端
var ErrNotTerminal = errors.New("stdout is not a terminal")

// Run 在备用屏幕里运行界面，直到用户退出或 ctx 结束
func Run(ctx context.Context, client *dashboard.Client, opts Options) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNotTerminal
	}

	p := tea.NewProgram(NewModel(ctx, client, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("界面 panic: %v", r)
		}
	}()
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return errors.Wrap(err, "run tui")
	}
	return nil
}
