// Package loop runs the indicator's poll/render cycle.
//
// On every tick the loop first applies queued touch input to the mode
// controller and then flushes queued render commands to the display, so a
// press and the redraw it causes land in the same tick. A second, slower
// ticker logs a status line for the network and the display.
//
// # Usage
//
//	l, err := loop.New(loop.Config{
//	    TickInterval:   cfg.GetTickInterval(),
//	    StatusInterval: cfg.GetStatusInterval(),
//	    Presenter:      presentationBridge,
//	    Status:         statusFn,
//	})
//	if err != nil {
//	    return err
//	}
//	return l.Run(ctx)
package loop
