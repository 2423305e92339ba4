package timeline

import "kokuban/internal/domain/script"

// AudioCue is one voice clip placed on the timeline
type AudioCue struct {
	LineID           int                 `json:"lineId"`
	VoiceFile        string              `json:"voiceFile"`
	From             int                 `json:"from"`
	DurationInFrames int                 `json:"durationInFrames"`
	PlaybackRate     float64             `json:"playbackRate"`
	SE               *script.SoundEffect `json:"se,omitempty"`
}

// SubtitleCue is the subtitle window of one line
type SubtitleCue struct {
	LineID           int    `json:"lineId"`
	Character        string `json:"character"`
	Text             string `json:"text"`
	From             int    `json:"from"`
	DurationInFrames int    `json:"durationInFrames"`
}

// VisualCue keeps a visual on screen for the whole window of a line
type VisualCue struct {
	LineID           int            `json:"lineId"`
	From             int            `json:"from"`
	DurationInFrames int            `json:"durationInFrames"`
	Visual           *script.Visual `json:"visual"`
}

// SceneCue marks the frame at which a scene becomes visible
type SceneCue struct {
	Scene int `json:"scene"`
	From  int `json:"from"`
}

// Plan is the frame-accurate composition handed to the renderer
type Plan struct {
	FPS          int           `json:"fps"`
	PlaybackRate float64       `json:"playbackRate"`
	TotalFrames  int           `json:"totalFrames"`
	BGM          *script.BGM   `json:"bgm,omitempty"`
	Audio        []AudioCue    `json:"audio"`
	Subtitles    []SubtitleCue `json:"subtitles"`
	Visuals      []VisualCue   `json:"visuals"`
	Scenes       []SceneCue    `json:"scenes"`
}

// Plan lays every line out on the timeline
func (t *Timeline) Plan(fps int, bgm *script.BGM) Plan {
	plan := Plan{
		FPS:          fps,
		PlaybackRate: t.rate,
		TotalFrames:  t.total,
		BGM:          bgm,
		Audio:        make([]AudioCue, 0, len(t.lines)),
		Subtitles:    make([]SubtitleCue, 0, len(t.lines)),
		Visuals:      []VisualCue{},
		Scenes:       []SceneCue{{Scene: t.firstScene, From: 0}},
	}

	for i, line := range t.lines {
		from := t.starts[i]
		duration := t.LineDuration(i)

		plan.Audio = append(plan.Audio, AudioCue{
			LineID:           line.ID,
			VoiceFile:        line.VoiceFile,
			From:             from,
			DurationInFrames: duration,
			PlaybackRate:     t.rate,
			SE:               line.SE,
		})

		plan.Subtitles = append(plan.Subtitles, SubtitleCue{
			LineID:           line.ID,
			Character:        line.Character,
			Text:             line.SubtitleText(),
			From:             from,
			DurationInFrames: duration,
		})

		if line.Visual != nil && line.Visual.Type != "none" {
			plan.Visuals = append(plan.Visuals, VisualCue{
				LineID:           line.ID,
				From:             from,
				DurationInFrames: duration + t.LinePause(i),
				Visual:           line.Visual,
			})
		}

		last := plan.Scenes[len(plan.Scenes)-1]
		if line.Scene != last.Scene {
			if last.From == from {
				plan.Scenes[len(plan.Scenes)-1].Scene = line.Scene
			} else {
				plan.Scenes = append(plan.Scenes, SceneCue{Scene: line.Scene, From: from})
			}
		}
	}

	return plan
}
