// Package tui provides the terminal view for the watch command.
//
// The view is driven by reload batches from the engine's event bus. It shows:
//   - Registry totals (skills, edges, cycles) and per-role load
//   - A task field that ranks skills against the live catalogue
//   - A log of recent reload batches
//
// Results are re-ranked after every batch so edits to skill sources show up
// without restarting. Quit with Esc or Ctrl+C.
//
// Usage:
//
//	events, unsubscribe, err := eng.Watch(ctx)
//	...
//	p := tea.NewProgram(tui.NewWatchApp(eng, events, eng.Root()), tea.WithAltScreen())
//	_, err = p.Run()
package tui
