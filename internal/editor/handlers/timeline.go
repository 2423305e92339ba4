package handlers

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"kokuban/internal/datasync"
	"kokuban/internal/domain/timeline"
)

type TimelineHandler struct {
	paths datasync.Paths
}

func NewTimelineHandler(paths datasync.Paths) *TimelineHandler {
	return &TimelineHandler{paths: paths}
}

type timelineLine struct {
	ID             int    `json:"id"`
	Character      string `json:"character"`
	Scene          int    `json:"scene"`
	VoiceFile      string `json:"voiceFile"`
	StartFrame     int    `json:"startFrame"`
	SpeakingFrames int    `json:"speakingFrames"`
	PauseFrames    int    `json:"pauseFrames"`
}

type timelineSummary struct {
	FPS             int            `json:"fps"`
	PlaybackRate    float64        `json:"playbackRate"`
	TotalFrames     int            `json:"totalFrames"`
	DurationSeconds float64        `json:"durationSeconds"`
	Lines           []timelineLine `json:"lines"`
}

type framePosition struct {
	Frame          int    `json:"frame"`
	LineID         *int   `json:"lineId"`
	Index          int    `json:"index"`
	LineStartFrame int    `json:"lineStartFrame"`
	IsSpeaking     bool   `json:"isSpeaking"`
	Scene          int    `json:"scene"`
	Subtitle       string `json:"subtitle,omitempty"`
}

// Get summarises the timeline. With ?frame=N it resolves that frame instead.
func (h *TimelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := datasync.BuildProject(h.paths)
	if err != nil {
		logrus.WithError(err).Error("Failed to build timeline")
		writeError(w, http.StatusInternalServerError, "Failed to build timeline")
		return
	}
	tl := project.Timeline

	if raw := r.URL.Query().Get("frame"); raw != "" {
		frame, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "frame must be an integer")
			return
		}
		writeJSON(w, http.StatusOK, toFramePosition(frame, tl.Resolve(frame)))
		return
	}

	fps := project.Settings.Video.FPS
	summary := timelineSummary{
		FPS:             fps,
		PlaybackRate:    tl.PlaybackRate(),
		TotalFrames:     tl.TotalFrames(),
		DurationSeconds: float64(tl.TotalFrames()) / float64(fps),
		Lines:           make([]timelineLine, 0, tl.Len()),
	}
	for i := 0; i < tl.Len(); i++ {
		line := tl.Line(i)
		summary.Lines = append(summary.Lines, timelineLine{
			ID:             line.ID,
			Character:      line.Character,
			Scene:          line.Scene,
			VoiceFile:      line.VoiceFile,
			StartFrame:     tl.LineStartFrame(i),
			SpeakingFrames: tl.LineDuration(i),
			PauseFrames:    tl.LinePause(i),
		})
	}

	writeJSON(w, http.StatusOK, summary)
}

// Plan returns every cue of the composition
func (h *TimelineHandler) Plan(w http.ResponseWriter, r *http.Request) {
	project, err := datasync.BuildProject(h.paths)
	if err != nil {
		logrus.WithError(err).Error("Failed to build timeline")
		writeError(w, http.StatusInternalServerError, "Failed to build timeline")
		return
	}

	writeJSON(w, http.StatusOK, project.Plan())
}

func toFramePosition(frame int, pos timeline.Position) framePosition {
	out := framePosition{
		Frame:          frame,
		Index:          pos.Index,
		LineStartFrame: pos.LineStartFrame,
		IsSpeaking:     pos.IsSpeaking,
		Scene:          pos.Scene,
	}
	if pos.Line != nil {
		id := pos.Line.ID
		out.LineID = &id
		out.Subtitle = pos.Line.SubtitleText()
	}
	return out
}
