// Package cli implements the framecut command line: one subcommand per export
// pipeline, sharing the job service used by the HTTP server.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maauso/framecut/internal/video"
)

// Main runs the CLI against the OpenCV backend and exits on failure.
func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := NewRootCommand(video.NewGoCVBackend())
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree over backend.
func NewRootCommand(backend video.Backend) *cobra.Command {
	root := &cobra.Command{
		Use:           "framecut",
		Short:         "Export a frame range of a video as stills, a clip or a GIF",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().Bool("discard", false, "Remove partial output when interrupted")
	root.PersistentFlags().Bool("publish", false, "Publish the artifact to the configured storage")

	root.AddCommand(
		newImagesCommand(backend),
		newVideoCommand(backend),
		newGIFCommand(backend),
		newCodecsCommand(),
	)
	return root
}

func newImagesCommand(backend video.Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images <input>",
		Short: "Write every frame of the range as a numbered still",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSegmentExport(cmd, backend, exportImages, args[0])
		},
	}
	cmd.Flags().String("out", "frames", "Output directory")
	addRangeFlags(cmd)
	return cmd
}

func newVideoCommand(backend video.Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video <input>",
		Short: "Re-encode the range as a new clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSegmentExport(cmd, backend, exportVideo, args[0])
		},
	}
	cmd.Flags().String("out", "", "Output clip path (default: <input>_cut.<codec ext>)")
	addRangeFlags(cmd)
	return cmd
}

func newGIFCommand(backend video.Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gif <stills-dir>",
		Short: "Assemble the stills of a directory into an animated GIF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGIFExport(cmd, backend, args[0])
		},
	}
	cmd.Flags().String("out", "out.gif", "Output GIF path")
	cmd.Flags().Int("frame-ms", 0, "Frame duration in milliseconds (default: GIF_FRAME_DURATION_MS)")
	return cmd
}

func newCodecsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "codecs",
		Short: "List the supported EXPORT_CODEC values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, c := range video.Codecs() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c, video.FileExtension(c))
			}
			return nil
		},
	}
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("start", 0, "First frame of the range")
	cmd.Flags().Int("end", -1, "Last frame of the range, inclusive (default: last frame)")
}
