package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"kokuban/internal/domain/script"
	"kokuban/internal/store"
)

// CharacterInfo is a character with a sprite folder under the images dir
type CharacterInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SpeakerID *int   `json:"speakerId"`
}

type Metadata struct {
	Characters  []CharacterInfo     `json:"characters"`
	Emotions    map[string][]string `json:"emotions"`
	Animations  []string            `json:"animations"`
	VisualTypes []string            `json:"visualTypes"`
}

// MetadataHandler describes what the editor may offer, from the sprite
// folders and the character roster
type MetadataHandler struct {
	imagesDir      string
	charactersPath string
}

func NewMetadataHandler(imagesDir, charactersPath string) *MetadataHandler {
	return &MetadataHandler{imagesDir: imagesDir, charactersPath: charactersPath}
}

func (h *MetadataHandler) characterDirs() ([]string, error) {
	entries, err := os.ReadDir(h.imagesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	dirs := []string{}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs, nil
}

func (h *MetadataHandler) characters() ([]CharacterInfo, error) {
	dirs, err := h.characterDirs()
	if err != nil {
		return nil, err
	}

	roster, err := store.LoadRoster(h.charactersPath)
	if err != nil {
		return nil, err
	}

	characters := []CharacterInfo{}
	for _, dir := range dirs {
		info := CharacterInfo{ID: dir, Name: dir}
		if c, ok := roster[dir]; ok {
			if c.Name != "" {
				info.Name = c.Name
			}
			info.SpeakerID = c.SpeakerID
		}
		characters = append(characters, info)
	}
	return characters, nil
}

// emotions reads {emotion}_open.png / {emotion}_close.png sprite pairs;
// mouth_open.png / mouth_close.png stand for "normal"
func (h *MetadataHandler) emotions() (map[string][]string, error) {
	dirs, err := h.characterDirs()
	if err != nil {
		return nil, err
	}

	emotions := make(map[string][]string, len(dirs))
	for _, dir := range dirs {
		files, err := os.ReadDir(filepath.Join(h.imagesDir, dir))
		if err != nil {
			return nil, err
		}

		set := make(map[string]bool)
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".png") {
				continue
			}
			base := strings.TrimSuffix(f.Name(), ".png")

			if base == "mouth_open" || base == "mouth_close" {
				set["normal"] = true
				continue
			}
			for _, suffix := range []string{"_open", "_close"} {
				if name := strings.TrimSuffix(base, suffix); name != base && name != "" {
					set[name] = true
				}
			}
		}

		list := make([]string, 0, len(set))
		for name := range set {
			list = append(list, name)
		}
		sort.Strings(list)
		emotions[dir] = list
	}

	return emotions, nil
}

func (h *MetadataHandler) All(w http.ResponseWriter, r *http.Request) {
	characters, err := h.characters()
	if err != nil {
		h.fail(w, err)
		return
	}
	emotions, err := h.emotions()
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Metadata{
		Characters:  characters,
		Emotions:    emotions,
		Animations:  script.Animations,
		VisualTypes: script.VisualTypes,
	})
}

func (h *MetadataHandler) Characters(w http.ResponseWriter, r *http.Request) {
	characters, err := h.characters()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, characters)
}

// Emotions lists the emotions of one character; unknown characters get
// only "normal"
func (h *MetadataHandler) Emotions(w http.ResponseWriter, r *http.Request) {
	emotions, err := h.emotions()
	if err != nil {
		h.fail(w, err)
		return
	}

	list, ok := emotions[chi.URLParam(r, "characterId")]
	if !ok {
		list = []string{"normal"}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *MetadataHandler) Animations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, script.Animations)
}

func (h *MetadataHandler) fail(w http.ResponseWriter, err error) {
	logrus.WithError(err).Error("Failed to get metadata")
	writeError(w, http.StatusInternalServerError, "Failed to get metadata")
}
