// Package viz provides terminal-based visualization for continuation
// runs built on the Bubble Tea framework:
//
//   - [Live]: a live bifurcation diagram fed by a running continuation
//   - [Canvas]: Braille-based pixel canvas for high-fidelity rendering
//
// # Key Bindings
//
//	Space - Pause/resume redrawing
//	Q     - Quit the view (the run keeps going)
package viz
