// Package presentation bridges the mode controller to the panel display.
//
// The controller sees a mode.Renderer whose calls only queue redraws. The
// poll/render loop owns the other half: PollInput turns queued widget
// presses into controller calls, and Flush hands queued redraws to the
// Display. Widgets are resolved through a static table:
//
//	bright_switch, relax_switch   toggle the mode
//	bright_on, bright_off         set bright
//	relax_on, relax_off           set relax
package presentation
