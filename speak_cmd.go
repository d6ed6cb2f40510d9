package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/internal/cache"
	"github.com/dgnsrekt/readalong/internal/document"
	"github.com/dgnsrekt/readalong/internal/metrics"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/align"
	"github.com/dgnsrekt/readalong/tts/audio"
	"github.com/dgnsrekt/readalong/tts/pipeline"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var speakCmd = &cobra.Command{
	Use:   "speak [FILE|-]",
	Short: "Read a document aloud",
	Long: paragraph(fmt.Sprintf("\n%s a text or markdown document, printing each word as it is spoken. "+
		"Reads standard input when FILE is - or omitted and input is piped.", keyword("Speak"))),
	Example: paragraph("readalong speak notes.md\nreadalong speak --device --speed 1.25 book.txt\ncat notes.txt | readalong speak"),
	Args:    cobra.MaximumNArgs(1),
	RunE:    runSpeak,
}

func init() {
	addSpeakFlags(speakCmd)
}

func addSpeakFlags(cmd *cobra.Command) {
	cmd.Flags().Int("from", 0, "paragraph to start reading at")
	cmd.Flags().String("format", "auto", "document format: auto, text or markdown")
	cmd.Flags().Bool("device", false, "play audio on the system audio device")
	cmd.Flags().Float64("pace", 1.0, "without --device, how much faster than real time to read (0 is instant)")
	cmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address while reading")
	cmd.Flags().Bool("no-controls", false, "disable keyboard controls")
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// loadDocument reads the document named by args, or standard input.
func loadDocument(args []string, format document.Format) (*document.Document, bool, error) {
	if len(args) == 0 || args[0] == "-" {
		if len(args) == 0 {
			pipe, err := stdinIsPipe()
			if err != nil {
				return nil, false, err
			}
			if !pipe {
				return nil, false, errors.New("missing document: pass a file or pipe text on stdin")
			}
		}
		doc, err := document.Read("stdin", os.Stdin, format)
		return doc, true, err
	}
	doc, err := document.Load(args[0], format)
	return doc, false, err
}

func openCache(observer cache.Observer) (*cache.Store, error) {
	store, err := cache.New(cache.Options{
		Dir:              cfg.Cache.Dir,
		CompressionLevel: cfg.Cache.CompressionLevel,
		MemoryEntries:    cfg.Cache.MemoryEntries,
		Observer:         observer,
		Logger:           log.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open alignment cache: %w", err)
	}
	return store, nil
}

// openSink returns the audio output and a function that releases it.
func openSink(device bool, pace float64, format tts.AudioFormat) (tts.AudioSink, func(), error) {
	if device {
		d, err := audio.NewDeviceSink(format, log.Default())
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open audio device: %w", err)
		}
		return d, func() { _ = d.Close() }, nil
	}
	if pace < 0 {
		return nil, nil, fmt.Errorf("%w: pace cannot be negative", tts.ErrInvalidConfig)
	}
	return audio.NewMemorySink(format, audio.WithRealtime(pace)), func() {}, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	log.Info("serving metrics", "addr", addr)
	return srv
}

func runSpeak(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	formatName, _ := flags.GetString("format")
	format, err := document.ParseFormat(formatName)
	if err != nil {
		return err
	}
	doc, fromStdin, err := loadDocument(args, format)
	if err != nil {
		return err
	}
	if len(doc.Paragraphs) == 0 {
		return errors.New("nothing to read: the document has no text")
	}
	from, _ := flags.GetInt("from")
	if from < 0 || from >= len(doc.Paragraphs) {
		return fmt.Errorf("%w: --from %d, document has %d paragraphs", tts.ErrInvalidPosition, from, len(doc.Paragraphs))
	}

	logger := log.Default()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, quit := context.WithCancel(ctx)
	defer quit()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	if addr, _ := flags.GetString("metrics-addr"); addr != "" {
		srv := serveMetrics(addr, reg)
		defer srv.Close() //nolint:errcheck
	}

	synth, recognizer, err := newSynthesizer(logger)
	if err != nil {
		return err
	}
	device, _ := flags.GetBool("device")
	pace, _ := flags.GetFloat64("pace")
	sink, closeSink, err := openSink(device, pace, synth.Format())
	if err != nil {
		return err
	}
	defer closeSink()

	strategy, err := align.NewStrategy(cfg.Alignment, recognizer, logger)
	if err != nil {
		return err
	}

	interactive := !fromStdin && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	if noControls, _ := flags.GetBool("no-controls"); noControls {
		interactive = false
	}
	out := newPrinter(os.Stdout, doc, highlightStyle(cfg.Highlight.Color))

	opts := pipeline.Options{
		Config:      cfg,
		Synthesizer: synth,
		Sink:        sink,
		Strategy:    strategy,
		Listener:    out.listener(logger),
		Metrics:     collector,
		Logger:      logger,
	}
	var store *cache.Store
	if cfg.Cache.Enabled {
		store, err = openCache(collector)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck
		opts.Cache = store
		if cfg.Cache.Watch {
			go func() {
				if err := store.Watch(ctx); err != nil {
					logger.Warn("cache watcher stopped", "error", err)
				}
			}()
		}
	}

	p, err := pipeline.New(opts)
	if err != nil {
		return err
	}
	defer p.Close() //nolint:errcheck

	if err := p.Load(doc.ID, doc.Paragraphs); err != nil {
		return err
	}
	logger.Debug("document loaded", "name", doc.Name, "format", doc.Format,
		"paragraphs", len(doc.Paragraphs), "words", doc.Words())

	if interactive {
		restore, err := startControls(ctx, p, cfg.Speed, quit)
		if err != nil {
			logger.Warn("keyboard controls unavailable", "error", err)
		} else {
			defer restore()
			out.setRaw(true)
			fmt.Fprint(os.Stdout, faint(controlsHelp)+"\r\n\r\n")
		}
	}

	started := time.Now()
	if err := p.Play(from); err != nil {
		return err
	}
	err = waitDone(ctx, p)
	out.flush()
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("%s words in %s", humanize.Comma(int64(out.spoken())),
		time.Since(started).Round(100*time.Millisecond))
	if s, ok := sink.(interface{ PlayedBytes() int64 }); ok {
		summary += fmt.Sprintf(", %s of audio", humanize.Bytes(uint64(s.PlayedBytes()))) //nolint:gosec
	}
	if store != nil {
		if st, err := store.Stats(); err == nil && st.MemoryHits+st.DiskHits+st.Misses > 0 {
			summary += fmt.Sprintf(", %.0f%% cached", st.HitRate()*100)
		}
	}
	fmt.Fprintln(os.Stderr, faint(summary))
	return nil
}

// waitDone waits until the document was read to the end or ctx is done.
// Sessions restarted by navigation or a speed change are waited for too.
func waitDone(ctx context.Context, p *pipeline.Pipeline) error {
	for {
		err := p.Wait(ctx)
		switch {
		case ctx.Err() != nil:
			_ = p.Stop()
			return nil
		case errors.Is(err, tts.ErrCanceled) && p.Snapshot().State.IsActive():
			continue
		case tts.IsCancellation(err):
			return nil
		default:
			return err
		}
	}
}
