package datasync

import (
	"fmt"

	"kokuban/internal/domain/settings"
	"kokuban/internal/domain/timeline"
	"kokuban/internal/store"
)

// Project is the resolved script with its settings and timeline, as
// the renderer would see it after a sync
type Project struct {
	Script   *ScriptDocument
	Settings settings.VideoSettings
	Timeline *timeline.Timeline
}

// BuildProject resolves the sources without writing anything
func BuildProject(p Paths) (*Project, error) {
	doc, err := BuildScript(p)
	if err != nil {
		return nil, err
	}

	vs, err := store.NewSettingsStore(p.Settings).Get()
	if err != nil {
		return nil, err
	}
	if err := vs.Validate(); err != nil {
		return nil, err
	}

	tl, err := timeline.New(doc.Lines, vs.Video.PlaybackRate, doc.FirstScene())
	if err != nil {
		return nil, fmt.Errorf("failed to build timeline: %w", err)
	}

	return &Project{Script: doc, Settings: vs, Timeline: tl}, nil
}

// Plan lays out every cue of the video
func (p *Project) Plan() timeline.Plan {
	return p.Timeline.Plan(p.Settings.Video.FPS, p.Script.BGM)
}
