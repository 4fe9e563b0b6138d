package ui

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
)

// CellSize is the assumed size of a terminal cell in pixels, used to turn
// mouse drags into gesture distances.
var CellSize = image.Point{X: 8, Y: 16}

const messageTTL = 3 * time.Second

// Viewer shows rendered frames on a terminal using half-block cells, two
// image rows per text row, with a status line at the bottom.
type Viewer struct {
	// FollowTerminal makes the canvas take the aspect of the terminal,
	// updated on every resize.
	FollowTerminal bool

	screen tcell.Screen
	ctrl   *Controller

	mu        sync.Mutex
	gesture   Gesture
	message   string
	messageAt time.Time
	lastSize  image.Point
}

func NewViewer(screen tcell.Screen, ctrl *Controller) *Viewer {
	screen.EnableMouse()
	screen.HideCursor()
	return &Viewer{FollowTerminal: true, screen: screen, ctrl: ctrl}
}

// Aspect is the width/height ratio of the preview area in half-block
// pixels.
func (v *Viewer) Aspect() float64 {
	cols, rows := v.preview()
	if cols < 1 || rows < 1 {
		return 0
	}
	return float64(cols) / float64(rows*2)
}

// preview returns the text area reserved for the image.
func (v *Viewer) preview() (int, int) {
	cols, rows := v.screen.Size()
	return cols, rows - 1
}

// Present implements frame.Sink.
func (v *Viewer) Present(img *image.RGBA) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.lastSize = img.Rect.Size()
	cols, rows := v.preview()
	if cols > 0 && rows > 0 && !img.Rect.Empty() {
		w, h := img.Rect.Dx(), img.Rect.Dy()
		for cy := range rows {
			top := (cy * 2 * h) / (rows * 2)
			bottom := ((cy*2 + 1) * h) / (rows * 2)
			for cx := range cols {
				x := img.Rect.Min.X + cx*w/cols
				fg := img.RGBAAt(x, img.Rect.Min.Y+top)
				bg := img.RGBAAt(x, img.Rect.Min.Y+bottom)
				style := tcell.StyleDefault.
					Foreground(tcell.NewRGBColor(int32(fg.R), int32(fg.G), int32(fg.B))).
					Background(tcell.NewRGBColor(int32(bg.R), int32(bg.G), int32(bg.B)))
				v.screen.SetContent(cx, cy, '▀', nil, style)
			}
		}
	}

	v.drawStatus()
	v.screen.Show()
	return nil
}

func (v *Viewer) drawStatus() {
	cols, rows := v.screen.Size()
	if rows < 1 {
		return
	}
	line := v.ctrl.Status()
	if v.message != "" && time.Since(v.messageAt) < messageTTL {
		line += "  | " + v.message
	}

	style := tcell.StyleDefault.Reverse(true)
	x := 0
	for _, r := range line {
		if x >= cols {
			break
		}
		v.screen.SetContent(x, rows-1, r, nil, style)
		x++
	}
	for ; x < cols; x++ {
		v.screen.SetContent(x, rows-1, ' ', nil, style)
	}
}

func (v *Viewer) notify(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.message, v.messageAt = msg, time.Now()
	v.drawStatus()
	v.screen.Show()
}

// Run handles keyboard and mouse input until the user quits or ctx ends.
func (v *Viewer) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	v.resized()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if quit := v.handle(ev); quit {
				return nil
			}
		}
	}
}

func (v *Viewer) resized() {
	v.screen.Sync()
	if !v.FollowTerminal {
		return
	}
	if aspect := v.Aspect(); aspect > 0 {
		v.ctrl.Driver.SetAspect(aspect)
	}
}

// handle applies one input event and reports whether the viewer should
// quit.
func (v *Viewer) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.resized()
	case *tcell.EventKey:
		return v.key(ev)
	case *tcell.EventMouse:
		v.mouse(ev)
	}
	return false
}

func (v *Viewer) key(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		v.ctrl.NudgeExposure(1)
	case tcell.KeyDown:
		v.ctrl.NudgeExposure(-1)
	case tcell.KeyRight:
		v.ctrl.NudgeTemperature(1)
	case tcell.KeyLeft:
		v.ctrl.NudgeTemperature(-1)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'p':
			v.report(v.ctrl.CyclePalette(1))
		case 'P':
			v.report(v.ctrl.CyclePalette(-1))
		case 'r':
			v.report(v.ctrl.CycleResolution(1))
		case 'R':
			v.report(v.ctrl.CycleResolution(-1))
		case '0':
			v.ctrl.Reset()
		case ' ':
			snap, err := v.ctrl.Shutter()
			if err != nil {
				v.report(err)
			} else {
				v.notify("saved " + snap.Name())
			}
		}
	}
	return false
}

func (v *Viewer) report(err error) {
	if err == nil {
		return
	}
	slog.Error("action failed", "error", err)
	v.notify(err.Error())
}

func (v *Viewer) mouse(ev *tcell.EventMouse) {
	cx, cy := ev.Position()
	px, py := float64(cx*CellSize.X), float64(cy*CellSize.Y)
	pressed := ev.Buttons()&tcell.Button1 != 0

	switch {
	case pressed && !v.gesture.Active():
		v.gesture.Start(px, py)
	case pressed:
		if mode, value, ok := v.gesture.Move(px, py); ok {
			v.ctrl.ApplyGesture(mode, value)
		}
	case v.gesture.Active():
		if tap := v.gesture.End(); tap {
			v.sample(cx, cy)
		}
	}
}

// sample maps a cell to the frame pixel shown in its upper half.
func (v *Viewer) sample(cx, cy int) {
	cols, rows := v.preview()
	v.mu.Lock()
	size := v.lastSize
	v.mu.Unlock()
	if cy >= rows || cols < 1 || rows < 1 || size.X == 0 {
		return
	}

	s, err := v.ctrl.Sample(cx*size.X/cols, (cy*2*size.Y)/(rows*2))
	if err != nil {
		if !errors.Is(err, ErrNoFrame) {
			v.report(err)
		}
		return
	}
	v.notify(s.String())
}
