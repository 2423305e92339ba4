package audio

import (
	"context"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Play previews an audio file on the default output device and blocks
// until it finishes or ctx is cancelled
func Play(ctx context.Context, path string, playbackRate float64) error {
	streamer, format, err := Decode(path)
	if err != nil {
		return err
	}
	defer streamer.Close()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return err
	}
	defer speaker.Close()

	// resampling by the rate reproduces the sped-up playback of the video
	var source beep.Streamer = streamer
	if playbackRate > 0 && playbackRate != 1 {
		source = beep.ResampleRatio(4, playbackRate, streamer)
	}

	ctrl := &beep.Ctrl{Streamer: source, Paused: false}
	done := make(chan bool)
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		done <- true
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Lock()
		ctrl.Paused = true
		speaker.Unlock()
		return ctx.Err()
	}
}
