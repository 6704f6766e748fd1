package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kstaniek/go-sml-decoder/internal/metrics"
	"github.com/kstaniek/go-sml-decoder/internal/sml"
	"github.com/kstaniek/go-sml-decoder/internal/smlbuf"
	"github.com/kstaniek/go-sml-decoder/internal/transport"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("smldump %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}
	metrics.SetReadinessFunc(func() bool { return true })

	f, err := openInput(cfg.input)
	if err != nil {
		l.Error("open_input_error", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := run(l, bufio.NewReader(f), cfg); err != nil {
		l.Error("run_error", "error", err)
		os.Exit(1)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// run decodes transport frames from src and parses each as an SML payload,
// logging one structured event per decoded message (or per parse/decode
// failure) until src is exhausted. It uses transport.DecodeFile (or, in
// streaming mode, transport.DecodeRawPayload) rather than re-deriving the
// decode-then-parse loop inline, so the two convenience entry points stay
// the ones actually exercised by the library's own example consumer.
func run(l *slog.Logger, src *bufio.Reader, cfg *appConfig) error {
	buf := smlbuf.NewArray(cfg.bufCapacity)

	for {
		if cfg.streaming {
			frame, err := transport.DecodeRawPayload(src, buf)
			if err != nil {
				if logDecodeErr(l, err) {
					continue
				}
				return nil
			}
			metrics.IncFrameDecoded()
			dumpStreaming(l, frame)
			continue
		}

		file, err := transport.DecodeFile(src, buf)
		if err != nil {
			if logDecodeErr(l, err) {
				continue
			}
			return nil
		}
		metrics.IncFrameDecoded()
		dumpFile(l, file)
	}
}

// logDecodeErr logs a decode error from either transport.DecodeFile or
// transport.DecodeRawPayload and reports whether decoding should continue
// (true) or stop because the source is exhausted or failed to read (false).
func logDecodeErr(l *slog.Logger, err error) bool {
	if errors.Is(err, io.EOF) {
		return false
	}

	var readErr *transport.ReadError
	if errors.As(err, &readErr) {
		if readErr.Discarded > 0 {
			metrics.AddBytesDiscarded(readErr.Discarded)
		}
		if errors.Is(readErr.Err, io.EOF) {
			return false
		}
		l.Warn("source_read_error", "error", readErr.Err, "discarded", readErr.Discarded)
		metrics.IncParseError(metrics.ErrSourceRead)
		return false
	}

	var invalidMsg *transport.InvalidMessageError
	if errors.As(err, &invalidMsg) {
		if invalidMsg.ChecksumMismatch[0] != invalidMsg.ChecksumMismatch[1] {
			metrics.IncTransportCrcMismatch()
		}
		metrics.IncParseError(metrics.ErrTransportCrc)
		l.Warn("invalid_message", "error", invalidMsg)
		return true
	}

	var parseFail *transport.ParseFailureError
	if errors.As(err, &parseFail) {
		metrics.IncParseError(metrics.ErrMessageDecode)
		if errors.Is(parseFail.Err, sml.ErrCrcMismatch) {
			metrics.IncMessageCrcMismatch()
		}
		l.Warn("sml_parse_error", "error", parseFail.Err)
		return true
	}

	metrics.IncParseError(metrics.ErrTransportDecode)
	l.Warn("transport_decode_error", "error", err)
	return true
}

func dumpFile(l *slog.Logger, file *sml.File) {
	for _, msg := range file.Messages {
		metrics.IncMessageDecoded()
		l.Info("sml_message",
			"transaction_id", fmt.Sprintf("%x", msg.TransactionID),
			"group_no", msg.GroupNo,
			"body_kind", msg.MessageBody.Kind,
		)
	}
}

func dumpStreaming(l *slog.Logger, frame []byte) {
	p := sml.NewParser(frame)
	for {
		ev, err := p.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				metrics.IncParseError(metrics.ErrMessageDecode)
				if errors.Is(err, sml.ErrCrcMismatch) {
					metrics.IncMessageCrcMismatch()
				}
				l.Warn("sml_parse_error", "error", err)
			}
			return
		}
		switch ev.Kind {
		case sml.EventMessageStart:
			metrics.IncMessageDecoded()
			l.Info("sml_message_start",
				"transaction_id", fmt.Sprintf("%x", ev.MessageStart.TransactionID),
				"body_kind", ev.MessageStart.MessageBody.Kind,
			)
		case sml.EventListEntry:
			l.Debug("sml_list_entry", "obj_name", fmt.Sprintf("%x", ev.ListEntry.ObjName))
		case sml.EventGetListResponseEnd:
			l.Debug("sml_get_list_response_end")
		}
	}
}
