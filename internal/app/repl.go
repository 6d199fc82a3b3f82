package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/previewctl/internal/command"
	"github.com/dshills/previewctl/internal/config/registry"
)

// shortcuts maps prompt words to command ids.
var shortcuts = map[string]string{
	"menu":    command.ShowMenu,
	"enable":  command.Enable,
	"disable": command.Disable,
	"restart": command.Restart,
	"log":     command.OutputFocus,
	"trace":   command.TraceFocus,
	"version": command.SelectVersion,
}

const helpText = `commands:
  menu      show the native preview menu
  enable    enable the native preview
  disable   disable the native preview
  restart   restart the language server
  log       show the server log
  trace     show the LSP message trace
  status    show activation state and settings
  commands  list registered command ids
  quit      exit
Any registered command id can be entered directly.`

// ReadLines delivers the lines of r until EOF, then closes the channel.
// One reader serves every application generation.
func ReadLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// serve routes input lines until the session ends.
func (a *Application) serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.loop.Done():
			return nil
		case <-a.restart:
			return ErrRestartRequested
		case line, ok := <-a.opts.Input:
			if !ok {
				return nil
			}
			if a.window.Offer(line) {
				continue
			}
			if quit := a.handle(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

// handle runs one prompt line and reports whether it asked to quit.
// Commands run on the event loop without waiting, so prompts they raise
// can be answered by the next lines.
func (a *Application) handle(ctx context.Context, line string) bool {
	switch line {
	case "":
		return false
	case "quit", "exit":
		return true
	case "help", "?":
		a.info(ctx, helpText)
		return false
	case "status":
		a.info(ctx, a.Status())
		return false
	case "commands":
		a.info(ctx, strings.Join(a.commands.List(), "\n"))
		return false
	}

	id := line
	if mapped, ok := shortcuts[line]; ok {
		id = mapped
	}
	if !a.commands.Has(id) {
		a.showError(ctx, fmt.Sprintf("%v: %q (type help)", ErrUnknownCommand, line))
		return false
	}

	a.loop.Post(func() {
		if _, err := a.commands.ExecuteCommand(ctx, id); err != nil {
			a.logger.Warn("command %s: %v", id, err)
			a.showError(ctx, fmt.Sprintf("%s: %v", id, err))
		}
	})
	return false
}

func (a *Application) info(ctx context.Context, msg string) {
	if _, err := a.window.ShowInformationMessage(ctx, msg); err != nil {
		a.logger.Warn("show message: %v", err)
	}
}

func (a *Application) showError(ctx context.Context, msg string) {
	if _, err := a.window.ShowErrorMessage(ctx, msg); err != nil {
		a.logger.Warn("show error: %v", err)
	}
}

// Status describes the controller state, the flag at every scope and the
// scope an enable or disable would write.
func (a *Application) Status() string {
	flag := registry.UseTsgo
	insp := a.store.Inspect(flag)
	effective, _ := a.store.Get(flag)

	var b strings.Builder
	fmt.Fprintf(&b, "state: %s\n", a.controller.State())
	if bundle := a.controller.Bundle(); bundle != nil {
		fmt.Fprintf(&b, "activation: %s since %s\n", bundle.ID(), bundle.Started().Format("15:04:05"))
	}
	fmt.Fprintf(&b, "%s = %v\n", flag, effective)
	fmt.Fprintf(&b, "  default:          %s\n", show(insp.DefaultValue))
	fmt.Fprintf(&b, "  global:           %s\n", show(insp.GlobalValue))
	fmt.Fprintf(&b, "  workspace:        %s\n", show(insp.WorkspaceValue))
	fmt.Fprintf(&b, "  workspace folder: %s\n", show(insp.WorkspaceFolderValue))
	fmt.Fprintf(&b, "write scope: %s", a.controller.Resolver().ResolveWriteScope(flag))
	if bar := a.window.StatusBar(); bar != "" {
		fmt.Fprintf(&b, "\nstatus bar: %s", bar)
	}
	return b.String()
}

func show(v any) string {
	if v == nil {
		return "(unset)"
	}
	return fmt.Sprint(v)
}
