// Package viz renders field states for the terminal.
//
//   - [LiveModel]: Bubble Tea program that animates a compile run
//   - [Canvas]: braille dot canvas, used for the phase portrait
//   - [AuditTable], [RenderState], [Chart]: static report helpers
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Reinitialize from the input
//	T     - Cycle color themes
//	+/-   - Change steps per frame
//	?     - Show help
package viz
