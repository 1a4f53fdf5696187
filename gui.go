//go:build gui

package main

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"github.com/metcalfc/prr/internal/extract"
	"github.com/metcalfc/prr/internal/layout"
	"github.com/metcalfc/prr/internal/playback"
	"github.com/metcalfc/prr/internal/session"
)

var focusColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}

// wordText is a tappable word on the page.
type wordText struct {
	widget.BaseWidget
	text  *canvas.Text
	onTap func()
}

func newWordText(word string, size float32, current bool, onTap func()) *wordText {
	t := canvas.NewText(word, theme.Color(theme.ColorNameForeground))
	t.TextSize = size
	if current {
		t.Color = theme.Color(theme.ColorNamePrimary)
		t.TextStyle.Bold = true
	}
	w := &wordText{text: t, onTap: onTap}
	w.ExtendBaseWidget(w)
	return w
}

func (w *wordText) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(w.text)
}

func (w *wordText) Tapped(*fyne.PointEvent) {
	if w.onTap != nil {
		w.onTap()
	}
}

// rowLayout places words left to right separated by one measured space.
type rowLayout struct {
	space float32
}

func (l *rowLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	var w, h float32
	for i, o := range objects {
		size := o.MinSize()
		if i > 0 {
			w += l.space
		}
		w += size.Width
		if size.Height > h {
			h = size.Height
		}
	}
	return fyne.NewSize(w, h)
}

func (l *rowLayout) Layout(objects []fyne.CanvasObject, _ fyne.Size) {
	var x float32
	for _, o := range objects {
		size := o.MinSize()
		o.Move(fyne.NewPos(x, 0))
		o.Resize(size)
		x += size.Width + l.space
	}
}

// pageLayout stacks rows at a fixed line height inside the viewport.
type pageLayout struct {
	vp layout.Viewport
}

func (l *pageLayout) MinSize([]fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(float32(l.vp.Width), float32(l.vp.Height))
}

func (l *pageLayout) Layout(objects []fyne.CanvasObject, _ fyne.Size) {
	for i, o := range objects {
		o.Move(fyne.NewPos(0, float32(i)*float32(l.vp.LineHeight)))
		o.Resize(o.MinSize())
	}
}

type gui struct {
	sess     *session.Session
	win      fyne.Window
	fontSize float32
	log      *zap.Logger

	status    *widget.Label
	page      *fyne.Container
	focus     *fyne.Container
	wordEntry *widget.Entry
	pageEntry *widget.Entry
	play      *widget.Button
}

func (g *gui) refresh() {
	snap := g.sess.Snapshot()
	g.status.SetText(statusText(snap))
	if snap.PlaybackState == playback.Playing {
		g.play.SetText("Pause")
	} else {
		g.play.SetText("Play")
	}
	if g.win.Canvas().Focused() != g.pageEntry && g.pageEntry.Text != snap.PageInput {
		g.pageEntry.SetText(snap.PageInput)
	}

	space := fyne.MeasureText(" ", g.fontSize, fyne.TextStyle{}).Width
	var rows []fyne.CanvasObject
	for _, row := range g.sess.Rows(snap.CurrentPage) {
		var words []fyne.CanvasObject
		for i, w := range row.Words {
			n := row.FirstWord + i
			words = append(words, newWordText(w, g.fontSize, n == snap.CurrentWordIndex, func() {
				if _, err := g.sess.SelectWord(n); err != nil {
					dialog.ShowError(err, g.win)
				}
			}))
		}
		rows = append(rows, container.New(&rowLayout{space: space}, words...))
	}
	g.page.Objects = rows
	g.page.Refresh()

	g.focus.Objects = focusWord(snap.CurrentWord(), g.fontSize*2)
	g.focus.Refresh()
}

func statusText(snap session.Snapshot) string {
	if snap.Status == session.StatusIdle {
		return "Open a document to start reading"
	}
	return fmt.Sprintf("%s | Page %d/%d | Word %d/%d | %dms | %s",
		snap.Name, snap.CurrentPage, snap.PageCount,
		snap.CurrentWordIndex+1, len(snap.Words),
		snap.TickInterval.Milliseconds(), snap.PlaybackState)
}

// focusWord renders word with its recognition point highlighted.
func focusWord(word string, size float32) []fyne.CanvasObject {
	before, focus, after := splitORP(word)
	var out []fyne.CanvasObject
	for _, part := range []struct {
		s string
		c color.Color
	}{
		{before, theme.Color(theme.ColorNameForeground)},
		{focus, focusColor},
		{after, theme.Color(theme.ColorNameForeground)},
	} {
		t := canvas.NewText(part.s, part.c)
		t.TextSize = size
		t.TextStyle.Bold = true
		out = append(out, t)
	}
	return out
}

func (g *gui) report(err error) {
	if err != nil {
		dialog.ShowError(err, g.win)
	}
}

func (g *gui) open() {
	dialog.ShowFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			g.report(err)
			return
		}
		name := rc.URI().Name()
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			g.report(err)
			return
		}
		go func() {
			if err := g.sess.Upload(context.Background(), name, data); err != nil {
				fyne.Do(func() { g.report(err) })
			}
		}()
	}, g.win)
}

func (g *gui) build(vp layout.Viewport) fyne.CanvasObject {
	g.status = widget.NewLabel("")
	g.status.Alignment = fyne.TextAlignCenter
	g.page = container.New(&pageLayout{vp: vp})
	g.focus = container.New(&rowLayout{})

	g.wordEntry = widget.NewEntry()
	g.wordEntry.SetPlaceHolder("word #")
	g.wordEntry.OnChanged = func(s string) {
		if !g.sess.SetWordInput(s) {
			g.wordEntry.SetText(g.sess.Snapshot().WordInput)
		}
	}
	g.wordEntry.OnSubmitted = func(string) {
		if _, err := g.sess.CommitWordInput(); err != nil {
			g.report(err)
			return
		}
		g.wordEntry.SetText("")
	}

	g.pageEntry = widget.NewEntry()
	g.pageEntry.SetPlaceHolder("page")
	g.pageEntry.OnChanged = func(s string) {
		if !g.sess.SetPageInput(s) {
			g.pageEntry.SetText(g.sess.Snapshot().PageInput)
		}
	}
	g.pageEntry.OnSubmitted = func(string) {
		_, err := g.sess.CommitPageInput()
		g.report(err)
	}

	g.play = widget.NewButton("Play", func() {
		_, err := g.sess.PlayPause()
		g.report(err)
	})

	controls := container.NewHBox(
		widget.NewButton("Open", g.open),
		widget.NewButton("Close", g.sess.Close),
		g.play,
		widget.NewButton("Slower", func() { g.sess.AdjustSpeed(playback.SpeedStep) }),
		widget.NewButton("Faster", func() { g.sess.AdjustSpeed(-playback.SpeedStep) }),
		widget.NewButton("◀", func() {
			_, err := g.sess.GoToPage(g.sess.Snapshot().CurrentPage - 1)
			g.report(err)
		}),
		g.pageEntry,
		widget.NewButton("▶", func() {
			_, err := g.sess.GoToPage(g.sess.Snapshot().CurrentPage + 1)
			g.report(err)
		}),
		g.wordEntry,
	)

	return container.NewBorder(
		g.status,
		container.NewVBox(container.NewCenter(g.focus), container.NewCenter(controls)),
		nil, nil,
		container.NewCenter(g.page),
	)
}

func (g *gui) bindKeys() {
	g.win.Canvas().SetOnTypedKey(func(k *fyne.KeyEvent) {
		var err error
		switch k.Name {
		case fyne.KeySpace:
			_, err = g.sess.PlayPause()
		case fyne.KeyUp:
			g.sess.AdjustSpeed(-playback.SpeedStep)
		case fyne.KeyDown:
			g.sess.AdjustSpeed(playback.SpeedStep)
		case fyne.KeyLeft:
			_, err = g.sess.PrevSentence()
		case fyne.KeyRight:
			_, err = g.sess.NextSentence()
		case fyne.KeyPageUp:
			_, err = g.sess.GoToPage(g.sess.Snapshot().CurrentPage - 1)
		case fyne.KeyPageDown:
			_, err = g.sess.GoToPage(g.sess.Snapshot().CurrentPage + 1)
		case fyne.KeyR:
			_, err = g.sess.Restart()
		case fyne.KeyF:
			g.win.SetFullScreen(!g.win.FullScreen())
		case fyne.KeyQ:
			g.sess.Close()
			g.win.Close()
		}
		if err != nil && !errors.Is(err, session.ErrNoDocument) {
			g.report(err)
		}
	})
}

func runReader(ctx context.Context, e *env, name string, data []byte, store session.PositionStore, ro *readOptions) error {
	a := app.New()
	w := a.NewWindow("prr")

	fontSize := float32(e.cfg.Viewport.FontSize)
	measurer := layout.MeasureFunc(func(s string) float64 {
		return float64(fyne.MeasureText(s, fontSize, fyne.TextStyle{}).Width)
	})

	g := &gui{win: w, fontSize: fontSize, log: e.log}
	opts := []session.Option{
		session.WithLogger(e.log),
		session.WithInterval(e.cfg.Playback.TickInterval),
		session.WithFresh(ro.fresh),
		session.WithOnChange(func(session.Snapshot) { fyne.Do(g.refresh) }),
	}
	if store != nil {
		opts = append(opts, session.WithStore(store))
	}
	sess, err := session.New(extract.Default, measurer, e.cfg.Viewport.Layout(), opts...)
	if err != nil {
		return err
	}
	g.sess = sess

	w.SetContent(g.build(e.cfg.Viewport.Layout()))
	g.bindKeys()
	w.SetOnClosed(sess.Close)
	w.Resize(fyne.NewSize(float32(e.cfg.Viewport.Width)+80, float32(e.cfg.Viewport.Height)+160))

	if data != nil {
		go func() {
			if err := sess.Upload(ctx, name, data); err != nil {
				e.log.Error("open failed", zap.String("name", name), zap.Error(err))
				fyne.Do(func() { g.report(err) })
			}
		}()
	}
	fyne.Do(g.refresh)
	w.ShowAndRun()
	return nil
}
