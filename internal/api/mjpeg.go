package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"match-replay/internal/imagecache"

	"github.com/rs/zerolog/hlog"
)

const (
	// MJPEGBoundary separates parts of the multipart stream
	MJPEGBoundary = "replayframe"

	// MaxMJPEGClients caps concurrent live streams
	MaxMJPEGClients = 20

	// DefaultMJPEGFPS is the stream rate when ?fps= is absent
	DefaultMJPEGFPS = 15
	maxMJPEGFPS     = 30

	// MaxConsecutiveWriteErrors ends a stream whose client stopped reading
	MaxConsecutiveWriteErrors = 3
)

// handleMJPEG serves the rendered frames as a multipart/x-mixed-replace
// stream that browsers show in a plain <img> tag. Frames are paced at the
// requested rate; ticks that find no new frame are skipped.
func (h *routerHandlers) handleMJPEG(w http.ResponseWriter, r *http.Request) {
	if h.frames == nil {
		writeError(w, "rendering disabled", http.StatusServiceUnavailable)
		return
	}
	if n := h.streamClients.Add(1); n > MaxMJPEGClients {
		h.streamClients.Add(-1)
		RecordConnectionRejected("stream_limit")
		writeError(w, "too many streams", http.StatusServiceUnavailable)
		return
	}
	defer h.streamClients.Add(-1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	fps := DefaultMJPEGFPS
	if v, err := strconv.Atoi(q.Get("fps")); err == nil && v >= 1 {
		fps = min(v, maxMJPEGFPS)
	}
	key := imagecache.Key{Format: imagecache.JPEG, Quality: h.jpegQuality}
	if v, err := strconv.Atoi(q.Get("q")); err == nil && v >= 1 && v <= 100 {
		key.Quality = v
	}
	if v, err := strconv.Atoi(q.Get("w")); err == nil && v > 0 {
		key.Width = v
	}

	logger := hlog.FromRequest(r)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+MJPEGBoundary)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Info().Int("fps", fps).Str("ip", GetClientIP(r)).Msg("📺 MJPEG stream opened")

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var lastSeq uint64
	var sent, skipped uint64
	errorsInRow := 0
	defer func() {
		logger.Info().Uint64("sent", sent).Uint64("skipped", skipped).Msg("📺 MJPEG stream closed")
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		f := h.frames.Latest()
		if f == nil || f.Image == nil || f.Seq == lastSeq {
			skipped++
			continue
		}

		key.Seq = f.Seq
		data, err := h.images.Encode(r.Context(), f.Image, key)
		if err != nil {
			return
		}

		if err := writePart(w, data); err != nil {
			errorsInRow++
			if errorsInRow >= MaxConsecutiveWriteErrors {
				logger.Debug().Err(err).Msg("MJPEG client gone")
				return
			}
			continue
		}
		errorsInRow = 0
		flusher.Flush()
		lastSeq = f.Seq
		sent++
	}
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", MJPEGBoundary, len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
