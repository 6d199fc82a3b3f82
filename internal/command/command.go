// Package command names the command ids, context keys and output channels
// the add-on contributes to the host.
package command

// Prefix is the namespace of every contributed command.
const Prefix = "typescript.native-preview"

// Enablement commands, registered for the whole process lifetime.
const (
	Enable  = Prefix + ".enable"
	Disable = Prefix + ".disable"
)

// Language commands, owned by the active feature bundle.
const (
	Restart       = Prefix + ".restart"
	OutputFocus   = Prefix + ".output.focus"
	TraceFocus    = Prefix + ".lsp-trace.focus"
	SelectVersion = Prefix + ".selectVersion"
	ShowMenu      = Prefix + ".showMenu"
)

// RestartExtensionHost is the host command that restarts the extension
// subsystem.
const RestartExtensionHost = "workbench.action.restartExtensionHost"

// ContextServerRunning is true while the language server is up.
const ContextServerRunning = Prefix + ".serverRunning"

// Output channel names.
const (
	OutputChannel      = "typescript-native-preview"
	TraceOutputChannel = "typescript-native-preview (LSP)"
)

// Language returns the language commands in registration order.
func Language() []string {
	return []string{Restart, OutputFocus, TraceFocus, SelectVersion, ShowMenu}
}
