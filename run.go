package genie

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// RunConfig configures the window opened by Run. Zero values fall back to a
// 640x480 window titled "genie".
type RunConfig struct {
	Title   string
	Width   int
	Height  int
	ShowFPS bool
}

func (c RunConfig) withDefaults() (RunConfig, error) {
	if c.Width < 0 || c.Height < 0 {
		return c, fmt.Errorf("%w: window size %dx%d", ErrPrecondition, c.Width, c.Height)
	}
	if c.Title == "" {
		c.Title = "genie"
	}
	if c.Width == 0 {
		c.Width = 640
	}
	if c.Height == 0 {
		c.Height = 480
	}
	return c, nil
}

// game adapts a Scene to ebiten.Game.
type game struct {
	scene *Scene
	cfg   RunConfig
	fps   *ebiten.Image
	since float64
}

func (g *game) Update() error {
	return g.scene.Update()
}

func (g *game) Draw(screen *ebiten.Image) {
	g.scene.Draw(screen)
	if !g.cfg.ShowFPS {
		return
	}
	g.since += 1 / float64(ebiten.TPS())
	if g.fps == nil || g.since >= 0.5 {
		g.since = 0
		if g.fps == nil {
			// 100x32 is enough for "FPS: 60.0\nTPS: 60.0"
			g.fps = ebiten.NewImage(100, 32)
		}
		g.fps.Fill(color.RGBA{0, 0, 0, 128})
		ebitenutil.DebugPrint(g.fps, fmt.Sprintf("FPS: %.1f\nTPS: %.1f", ebiten.ActualFPS(), ebiten.ActualTPS()))
	}
	screen.DrawImage(g.fps, nil)
}

func (g *game) Layout(int, int) (int, int) {
	return g.cfg.Width, g.cfg.Height
}

// Run opens a window and drives scene until the window closes or the
// scene's update callback returns an error.
func Run(scene *Scene, cfg RunConfig) error {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return err
	}
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	return ebiten.RunGame(&game{scene: scene, cfg: cfg})
}
