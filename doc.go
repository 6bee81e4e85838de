// Package genie implements the "genie" exit animation for [Ebitengine]: an
// element is sucked into a smaller target rect through a curved funnel, the
// way a window minimizes into a dock.
//
// The effect is a displacement filter. [NewFunnel] captures the geometry of
// the element and the target, [Synthesize] rasterizes a displacement field
// whose red channel encodes how far each pixel samples to the side, and
// [NewFilterSpec] derives the recolor matrix and scale that decode it. A
// [GenieFilter] runs both passes as Kage shaders over the element's wrapper
// while the element rises through the funnel and fades out.
//
// # Quick start
//
// The simplest way to get started is [Run], which creates a window and game
// loop for you, together with [Scene.RunExit]:
//
//	scene := genie.NewScene()
//	scene.Root().AddChild(card)
//	scene.Root().AddChild(dock)
//
//	anim, err := scene.RunExit(card, dock, genie.ExitOptions{
//		OnComplete: func(err error) { log.Println("exit done:", err) },
//	})
//
//	genie.Run(scene, genie.RunConfig{Title: "Minimize", Width: 640, Height: 480})
//
// For full control, implement [ebiten.Game] yourself and call [Scene.Update]
// and [Scene.Draw] directly, or drive [RunExit] from your own [Host] and
// [Scheduler].
//
// # Timing
//
// Everything runs on the caller's goroutine. [FrameScheduler] fires timers
// and per-frame callbacks from [FrameScheduler.Advance], which [Scene.Update]
// calls once per tick. [Capabilities] picks between the gween-driven
// [NativeTimeline] and the clock-driven [ManualTimeline], and between the
// single-phase and two-phase policies. Choose it once at startup.
//
// # Diagnostics
//
// [SetLogger] routes debug output to a [log/slog] logger. With
// ExitOptions.Debug the derived parameters are logged and the field is drawn
// behind the element at half opacity (see [DebugOverlay]).
//
// [Ebitengine]: https://ebitengine.org
package genie
