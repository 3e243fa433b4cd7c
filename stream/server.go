package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	facelock "github.com/edgelock/go-facelock"
)

// Server exposes the annotated video feed and the pipeline control
// endpoints over HTTP
type Server struct {
	pipeline   *facelock.Pipeline
	broadcast  *Broadcaster
	router     *chi.Mux
	httpServer *http.Server
	// enroll captures the latest camera frame and adds the strongest
	// face to the enrollment bank
	enroll func() (int, error)
}

// NewServer creates the stream server for the given pipeline.  enroll is
// called by the enrollment endpoint and must embed the strongest face of
// the most recent camera frame
func NewServer(addr string, pipeline *facelock.Pipeline,
	enroll func() (int, error)) *Server {

	r := chi.NewRouter()

	s := &Server{
		pipeline:  pipeline,
		broadcast: NewBroadcaster(4),
		router:    r,
		enroll:    enroll,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/stream", s.handleStream)
	r.Get("/status", s.handleStatus)
	r.Post("/enroll", s.handleEnroll)
	r.Post("/reset", s.handleReset)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Publish sends an annotated JPEG frame to all connected stream clients
func (s *Server) Publish(frame []byte) {
	s.broadcast.Publish(frame)
}

// Start starts the HTTP server
func (s *Server) Start() error {

	log.Printf("Starting stream server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleStream streams annotated frames to the client as an MJPEG
// multipart response
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {

	id, frames := s.broadcast.Subscribe()
	defer s.broadcast.Unsubscribe(id)

	log.Printf("stream client %s connected", id)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	for {
		select {
		case <-r.Context().Done():
			log.Printf("stream client %s disconnected", id)
			return

		case frame, ok := <-frames:

			if !ok {
				return
			}

			w.Write([]byte("--frame\r\n"))
			w.Write([]byte("Content-Type: image/jpeg\r\n\r\n"))
			w.Write(frame)
			w.Write([]byte("\r\n"))

			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// statusResponse is the JSON body of the status endpoint
type statusResponse struct {
	Phase     string  `json:"phase"`
	Locked    bool    `json:"locked"`
	Enrolled  int     `json:"enrolled"`
	Clients   int     `json:"clients"`
	Frames    int64   `json:"frames"`
	AvgMS     float64 `json:"avg_ms"`
	DetectMS  float64 `json:"detect_ms"`
	EmbedMS   float64 `json:"embed_ms"`
	TrackerMS float64 `json:"tracker_ms"`
}

// handleStatus reports the pipeline phase, enrollment count and timing
// averages
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {

	phase := s.pipeline.PhaseOf()
	avg := s.pipeline.Stats().Average()

	resp := statusResponse{
		Phase:     phase.String(),
		Locked:    phase == facelock.Track,
		Enrolled:  s.pipeline.EnrolledCount(),
		Clients:   s.broadcast.Clients(),
		Frames:    s.pipeline.Stats().Frames(),
		AvgMS:     float64(avg.Total) / float64(time.Millisecond),
		DetectMS:  float64(avg.Detect) / float64(time.Millisecond),
		EmbedMS:   float64(avg.Embed) / float64(time.Millisecond),
		TrackerMS: float64(avg.Track) / float64(time.Millisecond),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleEnroll adds the strongest face in the current camera frame to the
// enrollment bank
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {

	if s.enroll == nil {
		http.Error(w, "enrollment not available", http.StatusServiceUnavailable)
		return
	}

	count, err := s.enroll()

	if err != nil {
		log.Printf("enrollment failed: %v", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	log.Printf("enrolled sample %d", count)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"enrolled": count})
}

// handleReset drops the active lock, and with scope=enrollment also
// clears the enrollment bank
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {

	switch r.URL.Query().Get("scope") {
	case "enrollment":
		s.pipeline.ResetEnrollment()
		log.Printf("enrollment bank cleared")
	default:
		s.pipeline.ResetLock()
		log.Printf("lock reset")
	}

	w.WriteHeader(http.StatusNoContent)
}
