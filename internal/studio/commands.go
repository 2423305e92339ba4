package studio

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kokuban/internal/cli/scheme/colours"
	"kokuban/internal/datasync"
	"kokuban/internal/domain/script"
	"kokuban/internal/editor"
	"kokuban/internal/voice/audio"
	"kokuban/internal/voice/generator"
	"kokuban/internal/voice/tts"
)

func (s *Studio) ShowWelcome() {
	fmt.Println()
	colours.Title.Println("🎬 kokuban: narrated videos from a script 🎬")
	fmt.Println()
	colours.Info.Println("📋 Available commands:")
	fmt.Println("  • kokuban voices generate - Synthesize new or changed lines")
	fmt.Println("  • kokuban voices status   - Show the voice cache")
	fmt.Println("  • kokuban sync all        - Regenerate the renderer data")
	fmt.Println("  • kokuban timeline show   - Inspect line timings")
	fmt.Println("  • kokuban serve           - Start the editor API")
	fmt.Println()
}

// AddVoiceCommands registers the "voices" command group
func (s *Studio) AddVoiceCommands(rootCmd *cobra.Command) {
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🎙️ Manage synthesized voice files",
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "🔊 Synthesize lines whose text or speaker changed",
		Run:   s.GenerateVoicesCmd,
	}
	generateCmd.Flags().BoolP("force", "f", false, "Regenerate every line")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "📊 Show the voice cache",
		Run:   s.VoiceStatusCmd,
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "🧹 Delete voice files no line refers to",
		Run:   s.PruneVoicesCmd,
	}

	playCmd := &cobra.Command{
		Use:   "play [line-id]",
		Short: "▶️ Play the voice of a line",
		Args:  cobra.ExactArgs(1),
		Run:   s.PlayVoiceCmd,
	}

	speakersCmd := &cobra.Command{
		Use:   "speakers",
		Short: "🗣️ List engines and the voices of the configured engine",
		Run:   s.ListSpeakersCmd,
	}

	voicesCmd.AddCommand(generateCmd, statusCmd, pruneCmd, playCmd, speakersCmd)
	rootCmd.AddCommand(voicesCmd)
}

// AddSyncCommands registers the "sync" command group
func (s *Studio) AddSyncCommands(rootCmd *cobra.Command) {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "🔄 Convert the YAML sources into renderer data",
	}

	syncCmd.AddCommand(
		&cobra.Command{Use: "script", Short: "📜 Regenerate script.json", Run: s.SyncScriptCmd},
		&cobra.Command{Use: "settings", Short: "⚙️ Regenerate settings.json", Run: s.SyncSettingsCmd},
		&cobra.Command{Use: "all", Short: "📦 Regenerate everything", Run: s.SyncAllCmd},
	)
	rootCmd.AddCommand(syncCmd)
}

// AddTimelineCommands registers the "timeline" command group
func (s *Studio) AddTimelineCommands(rootCmd *cobra.Command) {
	timelineCmd := &cobra.Command{
		Use:   "timeline",
		Short: "🎞️ Inspect the frame timeline",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "📋 Print line timings",
		Run:   s.ShowTimelineCmd,
	}
	showCmd.Flags().IntP("frame", "F", -1, "Resolve a single frame")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "💾 Write the composition plan as JSON",
		Run:   s.ExportTimelineCmd,
	}
	exportCmd.Flags().StringP("output", "o", "", "Output file (default generated/plan.json)")

	timelineCmd.AddCommand(showCmd, exportCmd)
	rootCmd.AddCommand(timelineCmd)
}

func (s *Studio) AddServeCommand(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "🌐 Start the editor API",
		Run:   s.ServeCmd,
	}
	serveCmd.Flags().String("addr", "", "Listen address (default editor.addr)")
	rootCmd.AddCommand(serveCmd)
}

func (s *Studio) GenerateVoicesCmd(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")

	colours.Info.Println("🎙️ Generating voices...")
	report, err := s.GenerateVoices(s.ctx, generator.Options{ForceAll: force})
	if err != nil {
		if errors.Is(err, generator.ErrEngineUnavailable) {
			colours.Error.Printf("❌ TTS engine is not reachable: %v\n", err)
			colours.Info.Printf("💡 Is VOICEVOX running at %s?\n", s.cfg.TTS.Voicevox.Host)
		} else {
			colours.Error.Printf("❌ Voice generation failed: %v\n", err)
		}
		s.Exit(1)
		return
	}

	fmt.Println()
	for _, r := range report.Results {
		if r.Cached {
			colours.Frame.Printf("  ⏭️  %-20s %4d frames (cached)\n", r.VoiceFile, r.Frames)
		} else {
			colours.Success.Printf("  ✅ %-20s %4d frames (%.2fs)\n", r.VoiceFile, r.Frames, r.Seconds)
		}
	}
	for _, e := range report.Errors {
		colours.Error.Printf("  ❌ %-20s %s\n", e.VoiceFile, e.Message)
	}

	fmt.Println()
	colours.Title.Printf("✨ Generated %d, skipped %d, failed %d\n", report.Generated, report.Skipped, report.Failed)
	if report.Failed > 0 {
		s.Exit(1)
		return
	}
}

func (s *Studio) VoiceStatusCmd(cmd *cobra.Command, args []string) {
	stats, err := s.VoiceStats()
	if err != nil {
		colours.Error.Printf("❌ Failed to read voice directory: %v\n", err)
		s.Exit(1)
		return
	}

	colours.Title.Println("📊 Voice cache")
	colours.Info.Printf("📁 Location: %s\n", stats.Directory)
	colours.Info.Printf("🔊 Audio files: %d (%d bytes)\n", stats.AudioFiles, stats.TotalBytes)
	colours.Info.Printf("📝 Manifest entries: %d\n", stats.Entries)

	if len(stats.MissingFiles) > 0 {
		colours.Warning.Printf("⚠️  Missing files (will be regenerated): %v\n", stats.MissingFiles)
	}
	if len(stats.Untracked) > 0 {
		colours.Warning.Printf("🗑️  Untracked files (see 'kokuban voices prune'): %v\n", stats.Untracked)
	}
	if len(stats.MissingFiles) == 0 && len(stats.Untracked) == 0 {
		colours.Success.Println("✅ Cache is consistent")
	}
}

func (s *Studio) PruneVoicesCmd(cmd *cobra.Command, args []string) {
	removed, err := s.PruneVoices()
	if err != nil {
		colours.Error.Printf("❌ Failed to prune voices: %v\n", err)
		s.Exit(1)
		return
	}

	if len(removed) == 0 {
		colours.Success.Println("✅ Nothing to prune")
		return
	}
	for _, name := range removed {
		colours.Warning.Printf("  🗑️  %s\n", name)
	}
	colours.Success.Printf("✨ Removed %d files\n", len(removed))
}

func (s *Studio) PlayVoiceCmd(cmd *cobra.Command, args []string) {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		colours.Error.Printf("❌ Invalid line id %q\n", args[0])
		s.Exit(1)
		return
	}

	line, err := s.scripts.Get(id)
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		s.Exit(1)
		return
	}

	vs, err := s.settings.Get()
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		s.Exit(1)
		return
	}

	voiceFile := script.VoiceFileName(line.ID, line.Character)
	colours.Speaker.Printf("%s: ", line.Character)
	fmt.Println(line.SubtitleText())

	if err := audio.Play(s.ctx, filepath.Join(s.cfg.Paths.VoicesDir(), voiceFile), vs.Video.PlaybackRate); err != nil {
		colours.Error.Printf("❌ Playback failed: %v\n", err)
		s.Exit(1)
		return
	}
}

func (s *Studio) ListSpeakersCmd(cmd *cobra.Command, args []string) {
	colours.Title.Println("🗣️ TTS engines")
	for _, e := range tts.GetAvailableEngines() {
		fmt.Printf("  • %s\n", e)
	}

	engine, err := s.Engine(s.ctx)
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		s.Exit(1)
		return
	}

	lister, ok := engine.(tts.VoiceLister)
	if !ok {
		colours.Warning.Println("⚠️  The configured engine cannot list voices")
		return
	}

	voices, err := lister.GetAvailableVoices(s.ctx)
	if err != nil {
		colours.Error.Printf("❌ Failed to list voices: %v\n", err)
		s.Exit(1)
		return
	}

	fmt.Println()
	colours.Title.Printf("🎤 Voices of %s\n", s.cfg.TTS.Type)
	for _, v := range voices {
		fmt.Printf("  • %s\n", v)
	}
}

func (s *Studio) SyncScriptCmd(cmd *cobra.Command, args []string) {
	doc, err := datasync.SyncScript(s.paths())
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		s.Exit(1)
		return
	}
	colours.Success.Printf("✅ Wrote %s (%d lines)\n", s.paths().ScriptOutputPath(), len(doc.Lines))
}

func (s *Studio) SyncSettingsCmd(cmd *cobra.Command, args []string) {
	if _, err := datasync.SyncSettings(s.paths()); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		s.Exit(1)
		return
	}
	colours.Success.Printf("✅ Wrote %s\n", s.paths().SettingsOutputPath())
}

func (s *Studio) SyncAllCmd(cmd *cobra.Command, args []string) {
	doc, err := s.SyncAll()
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		s.Exit(1)
		return
	}
	colours.Success.Printf("✅ Synced script (%d lines) and settings\n", len(doc.Lines))
}

func (s *Studio) ShowTimelineCmd(cmd *cobra.Command, args []string) {
	project, err := s.Project()
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		s.Exit(1)
		return
	}
	tl := project.Timeline
	fps := project.Settings.Video.FPS

	if frame, _ := cmd.Flags().GetInt("frame"); frame >= 0 {
		pos := tl.Resolve(frame)
		if pos.Line == nil {
			colours.Warning.Printf("⏸️  Frame %d: no line active (scene %d)\n", frame, pos.Scene)
			return
		}
		state := "pause"
		if pos.IsSpeaking {
			state = "speaking"
		}
		colours.Info.Printf("🎞️ Frame %d: line %d, %s, scene %d (line starts at %d)\n",
			frame, pos.Line.ID, state, pos.Scene, pos.LineStartFrame)
		colours.Speaker.Printf("%s: ", pos.Line.Character)
		fmt.Println(pos.Line.SubtitleText())
		return
	}

	colours.Title.Printf("🎞️ Timeline at %dfps, playback x%.2f\n", fps, tl.PlaybackRate())
	fmt.Println()
	for i := 0; i < tl.Len(); i++ {
		line := tl.Line(i)
		colours.Frame.Printf("  %6d  +%-4d +%-3d ", tl.LineStartFrame(i), tl.LineDuration(i), tl.LinePause(i))
		colours.Speaker.Printf("%-10s ", line.Character)
		fmt.Println(line.SubtitleText())
	}
	fmt.Println()
	colours.Success.Printf("✨ %d lines, %d frames (%.1fs)\n", tl.Len(), tl.TotalFrames(), float64(tl.TotalFrames())/float64(fps))
}

func (s *Studio) ExportTimelineCmd(cmd *cobra.Command, args []string) {
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = filepath.Join(s.cfg.Paths.GeneratedDir(), "plan.json")
	}

	project, err := s.Project()
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		s.Exit(1)
		return
	}

	if err := writePlan(output, project); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		s.Exit(1)
		return
	}
	colours.Success.Printf("✅ Wrote %s (%d frames)\n", output, project.Timeline.TotalFrames())
}

func writePlan(path string, project *datasync.Project) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(project.Plan())
}

func (s *Studio) ServeCmd(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = s.cfg.Editor.Addr
	}

	server, err := editor.NewServer(s.ctx, editor.Options{
		Paths:       s.cfg.Paths,
		Pipeline:    s,
		Engine:      s,
		Scripts:     s.scripts,
		Settings:    s.settings,
		VoiceOnSave: s.defaults.Automation.VoiceOnSave,
	})
	if err != nil {
		logrus.WithError(err).Error("failed to create editor server")
		s.Exit(1)
		return
	}

	colours.Success.Printf("🌐 Script editor API running on %s\n", addr)
	if err := server.ListenAndServe(s.ctx, addr); err != nil {
		logrus.WithError(err).Error("editor server stopped")
		s.Exit(1)
		return
	}
}
