package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/audio"
	"github.com/snappy-loop/skynet/internal/balancer"
	"github.com/snappy-loop/skynet/internal/models"
)

// NarrationLinks remembers where the latest narration was archived.
type NarrationLinks struct {
	mu  sync.Mutex
	url string
}

// Set records url. It matches the storage.AudioSink callback.
func (l *NarrationLinks) Set(url string) {
	l.mu.Lock()
	l.url = url
	l.mu.Unlock()
}

// Last returns the most recent url, or "".
func (l *NarrationLinks) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.url
}

// Narrate handles POST /v1/narration. With ?wait=true the response is sent
// after playback ends and carries the archived URL when one exists.
func (h *Handler) Narrate(w http.ResponseWriter, r *http.Request) {
	view := h.balancer.View()
	if view.Status != balancer.StatusSuccess || view.Result == nil {
		writeJSONError(w, http.StatusConflict, "no balance result to narrate")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	pb, script, err := h.narrator.Speak(ctx, view.Result)
	if err != nil {
		writeNarrationError(w, err)
		return
	}

	h.mu.Lock()
	h.playback = pb
	h.mu.Unlock()

	resp := models.NarrationResponse{
		Script:   script,
		Samples:  pb.Buffer.Len(),
		Duration: pb.Buffer.Duration().Seconds(),
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	select {
	case <-pb.Done():
	case <-r.Context().Done():
		return
	}
	if err := pb.Wait(); err != nil {
		writeNarrationError(w, err)
		return
	}
	resp.URL = h.links.Last()
	writeJSON(w, http.StatusOK, resp)
}

// NarrationStatus handles GET /v1/narration
func (h *Handler) NarrationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"speaking": h.narrator.Speaking(),
		"url":      h.links.Last(),
	})
}

// StopNarration handles DELETE /v1/narration
func (h *Handler) StopNarration(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	pb := h.playback
	h.mu.Unlock()
	if pb != nil {
		pb.Stop()
		<-pb.Done()
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeNarrationError(w http.ResponseWriter, err error) {
	var decodeErr *audio.AudioDecodeError
	var synthErr *audio.SynthesisError
	switch {
	case errors.Is(err, audio.ErrSpeaking):
		writeJSONError(w, http.StatusConflict, "a narration is already playing")
	case errors.As(err, &decodeErr):
		writeJSONError(w, http.StatusUnprocessableEntity, decodeErr.Error())
	case errors.As(err, &synthErr):
		writeJSONError(w, http.StatusBadGateway, synthErr.Error())
	default:
		log.Error().Err(err).Msg("Narration failed")
		writeJSONError(w, http.StatusInternalServerError, "narration failed")
	}
}
