package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"visra.app/studio/internal/mask"
)

var (
	maskImage    string
	maskStrokes  string
	maskOut      string
	maskOverlay  string
	maskDisplayW float64
	maskDisplayH float64
)

var maskCmd = &cobra.Command{
	Use:   "mask",
	Short: "Render a mask from recorded brush strokes",
	Long: `Replay brush strokes over a room photo and write the mask at the photo's size.
Strokes are a JSON array of polylines, each a list of {"x":..,"y":..} points in
display coordinates. Painted areas are bright on a black background.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := fileDataURI(maskImage)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(maskStrokes)
		if err != nil {
			return fmt.Errorf("failed to read strokes: %w", err)
		}
		var strokes []mask.Stroke
		if err := json.Unmarshal(raw, &strokes); err != nil {
			return fmt.Errorf("failed to parse strokes: %w", err)
		}

		c, err := mask.FromDataURI(source)
		if err != nil {
			return err
		}
		c.SetDisplaySize(maskDisplayW, maskDisplayH)
		c.Replay(strokes)

		m, err := c.Export()
		if err != nil {
			return err
		}
		if err := writePNG(maskOut, m); err != nil {
			return err
		}
		w, h := c.Size()
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %dx%d mask to %s\n", w, h, maskOut)

		if maskOverlay != "" {
			if err := writePNG(maskOverlay, c.Overlay()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote overlay to %s\n", maskOverlay)
		}
		return nil
	},
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

func init() {
	maskCmd.Flags().StringVar(&maskImage, "image", "", "Room photo the strokes were drawn on")
	maskCmd.Flags().StringVar(&maskStrokes, "strokes", "", "JSON file with the stroke polylines")
	maskCmd.Flags().StringVar(&maskOut, "out", "mask.png", "Where to write the mask")
	maskCmd.Flags().StringVar(&maskOverlay, "overlay", "", "Also write the on-screen stroke overlay")
	maskCmd.Flags().Float64Var(&maskDisplayW, "display-width", 0, "Width the photo was shown at (defaults to its natural width)")
	maskCmd.Flags().Float64Var(&maskDisplayH, "display-height", 0, "Height the photo was shown at (defaults to its natural height)")
	maskCmd.MarkFlagRequired("image")
	maskCmd.MarkFlagRequired("strokes")
	rootCmd.AddCommand(maskCmd)
}
