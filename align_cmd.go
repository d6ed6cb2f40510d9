package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/align"
	"github.com/dgnsrekt/readalong/tts/align/ctc"
	"github.com/spf13/cobra"
)

var alignCmd = &cobra.Command{
	Use:   "align TEXT",
	Short: "Print word timings for a sentence",
	Long: paragraph(fmt.Sprintf("\n%s TEXT and print when each word is spoken. "+
		"With --emissions, TEXT is force-aligned against a recognizer's emission matrix instead of being synthesized.",
		keyword("Align"))),
	Example: paragraph("readalong align \"Dr. Smith paid $5 on the 3rd.\"\n" +
		"readalong align --strategy ctc --output json \"Hello world\"\n" +
		"readalong align --emissions frames.json \"hello world\""),
	Args: cobra.ExactArgs(1),
	RunE: runAlign,
}

func init() {
	alignCmd.Flags().String("emissions", "", "JSON file with an emission matrix to align against")
	alignCmd.Flags().Float64("frame-rate", 0, "frames per second of the emission matrix (overrides the file)")
	alignCmd.Flags().Bool("skip-blanks", false, "let blanks be skipped between distinct tokens")
	alignCmd.Flags().StringP("output", "o", outputTable, "output format: table, json or yaml")
}

// emissionsFile is the on-disk form of an emission matrix. A bare array of
// rows is accepted too.
type emissionsFile struct {
	FrameRate float64     `json:"frame_rate"`
	Matrix    [][]float64 `json:"matrix"`
}

func readEmissions(path string) (*tts.Emissions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading emissions: %w", err)
	}
	var f emissionsFile
	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		err = json.Unmarshal(data, &f.Matrix)
	} else {
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding emissions: %w", err)
	}
	return &tts.Emissions{Matrix: f.Matrix, FrameRate: f.FrameRate}, nil
}

func runAlign(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	output, _ := flags.GetString("output")
	if err := validateOutput(output); err != nil {
		return err
	}
	if output != outputTable {
		discardLog()
	}
	text := args[0]
	logger := log.Default()

	var result *tts.AlignmentResult
	if path, _ := flags.GetString("emissions"); path != "" {
		em, err := readEmissions(path)
		if err != nil {
			return err
		}
		if rate, _ := flags.GetFloat64("frame-rate"); rate > 0 {
			em.FrameRate = rate
		}
		if em.FrameRate <= 0 {
			return errors.New("unknown frame rate: set frame_rate in the file or pass --frame-rate")
		}
		skip, _ := flags.GetBool("skip-blanks")
		aligner := ctc.NewAligner(nil, ctc.Options{SkipBlanks: skip || cfg.Alignment.SkipBlanks}, logger)
		timings, err := aligner.Align(em, text)
		if err != nil {
			return err
		}
		result = &tts.AlignmentResult{WordTimings: timings}
		for _, wt := range timings {
			result.TotalDuration = max(result.TotalDuration, wt.EndTime())
		}
	} else {
		var err error
		if result, err = synthesizeAndAlign(cmd.Context(), text, logger); err != nil {
			return err
		}
	}

	if output != outputTable {
		return encode(os.Stdout, output, result)
	}
	rows := make([][]string, 0, len(result.WordTimings))
	for _, wt := range result.WordTimings {
		rows = append(rows, []string{
			strconv.Itoa(wt.WordIndex),
			wt.Text,
			fmt.Sprintf("%.3f", wt.StartTime),
			fmt.Sprintf("%.3f", wt.EndTime()),
			fmt.Sprintf("%d:%d", wt.RangeLocation, wt.RangeLocation+wt.RangeLength),
		})
	}
	fmt.Println(renderTable([]string{"#", "WORD", "START", "END", "BYTES"}, rows))
	fmt.Println(faint(fmt.Sprintf("%d words, %.3fs", len(result.WordTimings), result.TotalDuration)))
	return nil
}

// synthesizeAndAlign speaks text with the configured synthesizer and times
// it with the configured strategy.
func synthesizeAndAlign(ctx context.Context, text string, logger *log.Logger) (*tts.AlignmentResult, error) {
	synth, recognizer, err := newSynthesizer(logger)
	if err != nil {
		return nil, err
	}
	strategy, err := align.NewStrategy(cfg.Alignment, recognizer, logger)
	if err != nil {
		return nil, err
	}
	res, err := synth.Synthesize(ctx, tts.SynthesisRequest{Text: text, Voice: cfg.Voice, Speed: cfg.Speed}, nil)
	if err != nil {
		return nil, err
	}
	logger.Debug("aligning", "strategy", strategy.Name(), "normalized", res.NormalizedText)
	return strategy.Align(ctx, align.Input{Text: text, Synthesis: res, Audio: res.Audio})
}
