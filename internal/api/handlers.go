package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"match-replay/internal/camera"
	"match-replay/internal/imagecache"
	"match-replay/internal/render"
	"match-replay/internal/scene"

	"github.com/rs/zerolog/log"
)

// DefaultJPEGQuality is used when RouterConfig.JPEGQuality is unset.
const DefaultJPEGQuality = 80

// maxBodyBytes caps JSON command bodies.
const maxBodyBytes = 4 << 10

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.viewer.Snapshot())
}

func (h *routerHandlers) handleToggle(w http.ResponseWriter, r *http.Request) {
	playing, err := h.viewer.TogglePlay()
	if err != nil {
		writePlaybackError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"success": true, "playing": playing})
}

func (h *routerHandlers) handlePlay(w http.ResponseWriter, r *http.Request) {
	if err := h.viewer.Play(); err != nil {
		writePlaybackError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"success": true, "playing": h.viewer.Snapshot().Playing})
}

func (h *routerHandlers) handlePause(w http.ResponseWriter, r *http.Request) {
	h.viewer.Pause()
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Frame *int `json:"frame"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Frame == nil {
		writeError(w, "frame is required", http.StatusBadRequest)
		return
	}

	// Out-of-range seeks are a no-op, not an error
	ok := h.viewer.Seek(*req.Frame)
	writeJSON(w, map[string]interface{}{"success": ok, "state": h.viewer.Snapshot()})
}

func (h *routerHandlers) handleGetPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, camera.PresetNames())
}

func (h *routerHandlers) handlePreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.viewer.SetCameraPreset(req.Name); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"success": true, "preset": req.Name})
}

func (h *routerHandlers) handleFollow(w http.ResponseWriter, r *http.Request) {
	mode := h.viewer.ToggleBallFollow()
	writeJSON(w, map[string]interface{}{"success": true, "mode": mode.String()})
}

func (h *routerHandlers) handleOrbit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DTheta float64 `json:"dTheta"`
		DPhi   float64 `json:"dPhi"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.viewer.Orbit(req.DTheta, req.DPhi)
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scale float64 `json:"scale"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Scale <= 0 {
		writeError(w, "scale must be positive", http.StatusBadRequest)
		return
	}
	h.viewer.Zoom(req.Scale)
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handlePan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DX float64 `json:"dx"`
		DY float64 `json:"dy"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.viewer.Pan(req.DX, req.DY)
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeError(w, "key is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]bool{"handled": h.viewer.HandleKey(req.Key)})
}

func (h *routerHandlers) handlePointer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Y      float64 `json:"y"`
		Height float64 `json:"height"`
		Over   *bool   `json:"overControls"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Over != nil {
		h.viewer.HoverControls(*req.Over)
	}
	if req.Height > 0 {
		h.viewer.Pointer(req.Y, req.Height)
	}
	writeJSON(w, map[string]bool{"controlsVisible": h.viewer.Snapshot().ControlsVisible})
}

func (h *routerHandlers) handleFramePNG(w http.ResponseWriter, r *http.Request) {
	h.serveFrame(w, r, imagecache.Key{Format: imagecache.PNG}, "image/png")
}

func (h *routerHandlers) handleFrameJPEG(w http.ResponseWriter, r *http.Request) {
	quality := h.jpegQuality
	if q, err := strconv.Atoi(r.URL.Query().Get("q")); err == nil && q >= 1 && q <= 100 {
		quality = q
	}
	h.serveFrame(w, r, imagecache.Key{Format: imagecache.JPEG, Quality: quality}, "image/jpeg")
}

// serveFrame encodes the latest frame through the shared cache. ?w= asks
// for a downscaled copy.
func (h *routerHandlers) serveFrame(w http.ResponseWriter, r *http.Request, key imagecache.Key, contentType string) {
	f := h.latestFrame(w)
	if f == nil {
		return
	}
	key.Seq = f.Seq
	if width, err := strconv.Atoi(r.URL.Query().Get("w")); err == nil && width > 0 {
		key.Width = width
	}

	data, err := h.images.Encode(r.Context(), f.Image, key)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeError(w, "encode failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(f.Seq, 10))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (h *routerHandlers) latestFrame(w http.ResponseWriter) *render.Frame {
	if h.frames == nil {
		writeError(w, "rendering disabled", http.StatusServiceUnavailable)
		return nil
	}
	f := h.frames.Latest()
	if f == nil || f.Image == nil {
		w.Header().Set("Retry-After", "1")
		writeError(w, "no frame rendered yet", http.StatusServiceUnavailable)
		return nil
	}
	return f
}

// Helper functions (package-level for reuse)

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

func writePlaybackError(w http.ResponseWriter, err error) {
	if errors.Is(err, scene.ErrAssetsNotReady) {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	log.Error().Err(err).Msg("❌ Playback command failed")
	writeError(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
