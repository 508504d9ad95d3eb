//go:build gui

package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
)

type App struct {
	fyneApp fyne.App
	window  fyne.Window
	plot    *PlotWidget
	title   string
}

func NewApp(title string) *App {
	return &App{title: title, plot: NewPlotWidget()}
}

// Run opens the window and blocks in the event loop until Quit is called or
// the window is closed. work starts on its own goroutine once the window is
// up; onClose runs when the user closes the window.
func Run(a *App, work, onClose func()) {
	a.fyneApp = app.NewWithID("io.respire.gui")
	a.fyneApp.Settings().SetTheme(&darkTheme{})

	a.window = a.fyneApp.NewWindow(a.title)
	a.window.SetContent(a.plot)
	a.window.Resize(a.plot.MinSize())
	a.window.SetOnClosed(onClose)
	a.window.Show()

	go work()

	a.fyneApp.Run()
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		a.fyneApp.Quit()
	}
}

// Show hands the latest traces and status line to the window.
func (a *App) Show(raw []int16, filtered []float64, status string) {
	a.plot.Update(raw, filtered, status)
}
