package settings

import "fmt"

type Font struct {
	Family            string `json:"family" yaml:"family"`
	Size              int    `json:"size" yaml:"size"`
	Weight            string `json:"weight" yaml:"weight"`
	Color             string `json:"color" yaml:"color"`
	OutlineColor      string `json:"outlineColor" yaml:"outlineColor"`
	InnerOutlineColor string `json:"innerOutlineColor" yaml:"innerOutlineColor"`
}

type Subtitle struct {
	BottomOffset      int `json:"bottomOffset" yaml:"bottomOffset"`
	MaxWidthPercent   int `json:"maxWidthPercent" yaml:"maxWidthPercent"`
	MaxWidthPixels    int `json:"maxWidthPixels" yaml:"maxWidthPixels"`
	OutlineWidth      int `json:"outlineWidth" yaml:"outlineWidth"`
	InnerOutlineWidth int `json:"innerOutlineWidth" yaml:"innerOutlineWidth"`
}

type Character struct {
	Height         int    `json:"height" yaml:"height"`
	UseImages      bool   `json:"useImages" yaml:"useImages"`
	ImagesBasePath string `json:"imagesBasePath" yaml:"imagesBasePath"`
}

type Content struct {
	TopPadding    int `json:"topPadding" yaml:"topPadding"`
	SidePadding   int `json:"sidePadding" yaml:"sidePadding"`
	BottomPadding int `json:"bottomPadding" yaml:"bottomPadding"`
}

type Video struct {
	Width        int     `json:"width" yaml:"width"`
	Height       int     `json:"height" yaml:"height"`
	FPS          int     `json:"fps" yaml:"fps"`
	PlaybackRate float64 `json:"playbackRate" yaml:"playbackRate"`
}

// VideoSettings mirrors video-settings.yaml
type VideoSettings struct {
	Font      Font              `json:"font" yaml:"font"`
	Subtitle  Subtitle          `json:"subtitle" yaml:"subtitle"`
	Character Character         `json:"character" yaml:"character"`
	Content   Content           `json:"content" yaml:"content"`
	Video     Video             `json:"video" yaml:"video"`
	Colors    map[string]string `json:"colors" yaml:"colors"`
}

// Default returns the settings used when video-settings.yaml is absent
func Default() VideoSettings {
	return VideoSettings{
		Font: Font{
			Family:            "M PLUS Rounded 1c",
			Size:              48,
			Weight:            "900",
			Color:             "#ffffff",
			OutlineColor:      "#228B22",
			InnerOutlineColor: "none",
		},
		Subtitle: Subtitle{
			BottomOffset:      40,
			MaxWidthPercent:   55,
			MaxWidthPixels:    1000,
			OutlineWidth:      14,
			InnerOutlineWidth: 8,
		},
		Character: Character{Height: 367, UseImages: true, ImagesBasePath: "images"},
		Video:     Video{Width: 1920, Height: 1080, FPS: 30, PlaybackRate: 1.2},
		Colors: map[string]string{
			"background": "#ffffff",
			"text":       "#ffffff",
			"zundamon":   "#228B22",
			"metan":      "#FF1493",
		},
	}
}

// Validate checks the values the timeline depends on
func (s VideoSettings) Validate() error {
	if s.Video.FPS <= 0 {
		return fmt.Errorf("video.fps must be positive, got %d", s.Video.FPS)
	}
	if s.Video.PlaybackRate <= 0 {
		return fmt.Errorf("video.playbackRate must be positive, got %v", s.Video.PlaybackRate)
	}
	return nil
}
