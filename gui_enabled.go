//go:build gui

package main

import (
	"context"
	"fmt"
	"runtime"

	"respire/gui"
	"respire/session"
)

// The window's event loop needs the main OS thread.
func init() {
	runtime.LockOSThread()
}

type guiView struct {
	app  *gui.App
	info viewInfo
}

func newGUIView(info viewInfo) (view, error) {
	return &guiView{app: gui.NewApp("respire - " + info.device), info: info}, nil
}

func (v *guiView) Render(f session.Frame) {
	v.app.Show(f.RawTail, f.Filtered, guiStatus(f, v.info))
}

// run keeps the event loop on the calling goroutine and the session on
// another. Closing the window stops the session at its next iteration.
func (v *guiView) run(ctx context.Context, sess *session.Session) (*session.Result, error) {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		res  *session.Result
		err  error
		done = make(chan struct{})
	)
	gui.Run(v.app, func() {
		defer close(done)
		res, err = sess.Run(runCtx)
		v.app.Quit()
	}, stop)
	<-done
	return res, err
}

func guiStatus(f session.Frame, info viewInfo) string {
	progress := fmt.Sprintf("[%d/%d] %s", f.Iteration, f.Iterations, info.device)
	switch {
	case f.Flat:
		return progress + "  no signal, check the microphone"
	case f.HasEstimate:
		return fmt.Sprintf("%s  %s per minute (%s Hz)", progress,
			trimFloat(f.Estimate.RatePerMinute), trimFloat(f.Estimate.FrequencyHz))
	case f.Skip != nil:
		return fmt.Sprintf("%s  no estimate yet: %v", progress, f.Skip)
	}
	return progress
}
