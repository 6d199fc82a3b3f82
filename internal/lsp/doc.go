// Package lsp is the language server client owned by an active feature
// bundle.
//
// A Client starts the configured server (tsgo --lsp --stdio by default),
// performs the initialize handshake over JSON-RPC 2.0 with Content-Length
// framing, and mirrors every message to a trace output channel. The
// disposable returned by Initialize sends shutdown and exit and then stops
// the process.
//
//	c := lsp.NewClient(lsp.Options{
//		Command: "tsgo",
//		Args:    []string{"--lsp", "--stdio"},
//		Output:  output,
//		Trace:   trace,
//	})
//	stop, err := c.Initialize(ctx)
//	if err != nil {
//		return err
//	}
//	defer stop.Dispose()
package lsp
