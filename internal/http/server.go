package http

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shivamkumar9811/NoteRex/internal/agents"
	"github.com/shivamkumar9811/NoteRex/internal/config"
	"github.com/shivamkumar9811/NoteRex/internal/pipeline"
	"github.com/shivamkumar9811/NoteRex/internal/services"
	"github.com/shivamkumar9811/NoteRex/internal/storage"
)

type Server struct {
	engine *gin.Engine
	cfg    config.Config
}

// progressLogger surfaces pipeline stage transitions in the server log.
type progressLogger struct{}

func (progressLogger) StageStarted(stage int, label string) {
	log.Printf("pipeline stage %d: %s", stage, label)
}

func NewServer(cfg config.Config) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	store, err := newNoteStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	openaiSvc := services.NewOpenAIService(cfg)
	pdfSvc := services.NewPDFService()
	docs := services.NewPDFExtractor()
	video := services.NewYouTubeExtractor(openaiSvc)
	runner := pipeline.NewOrchestrator(agents.NewClient(cfg), video, docs, store, progressLogger{})

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger())
	engine.Use(MaxBodySize(cfg.MaxUploadBytes))
	engine.Use(CORS())

	api := NewAPI(cfg, store, openaiSvc, video, docs, runner, pdfSvc)
	registerRoutes(engine, api)

	return &Server{engine: engine, cfg: cfg}, nil
}

// newNoteStore picks MongoDB when a URI is configured and falls back to the
// JSON file store otherwise.
func newNoteStore(cfg config.Config) (storage.NoteStore, error) {
	if cfg.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	}
	return storage.NewFileStore(cfg.DataDir)
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	return s.engine.Run(addr)
}
