package ui

import (
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// Clicker plays the shutter sound. A zero Clicker is silent.
type Clicker struct {
	ready bool
}

// NewClicker opens the audio device. Callers may keep using the returned
// Clicker when it fails; it just stays silent.
func NewClicker() (*Clicker, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return &Clicker{}, err
	}
	return &Clicker{ready: true}, nil
}

func (c *Clicker) Click() {
	if c == nil || !c.ready {
		return
	}
	sine, err := generators.SineTone(sampleRate, 1760)
	if err != nil {
		return
	}
	speaker.Play(beep.Seq(
		beep.Take(sampleRate.N(15*time.Millisecond), sine),
		beep.Silence(sampleRate.N(25*time.Millisecond)),
		beep.Take(sampleRate.N(10*time.Millisecond), sine),
	))
}

func (c *Clicker) Close() {
	if c == nil || !c.ready {
		return
	}
	speaker.Close()
	c.ready = false
}
