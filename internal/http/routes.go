package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shivamkumar9811/NoteRex/internal/config"
	"github.com/shivamkumar9811/NoteRex/internal/domain"
	apperrors "github.com/shivamkumar9811/NoteRex/internal/errors"
	"github.com/shivamkumar9811/NoteRex/internal/pipeline"
	"github.com/shivamkumar9811/NoteRex/internal/services"
	"github.com/shivamkumar9811/NoteRex/internal/storage"
)

const saveWarning = "note processed but save to database failed"

// AIService is the transcription/summarization/chat collaborator surface.
type AIService interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	Summarize(ctx context.Context, text string) (services.SummaryBundle, error)
	Chat(ctx context.Context, system, user string) (string, error)
}

// VideoExtractor turns a video-hosting URL into transcribed text.
type VideoExtractor interface {
	Extract(ctx context.Context, url string) (services.ExtractedContent, error)
}

// DocumentExtractor turns document bytes into plain text.
type DocumentExtractor interface {
	ExtractText(data []byte) (string, error)
}

// PipelineRunner executes the six-stage agent pipeline.
type PipelineRunner interface {
	Run(ctx context.Context, p pipeline.Payload) pipeline.Result
}

type API struct {
	cfg    config.Config
	store  storage.NoteStore
	ai     AIService
	video  VideoExtractor
	docs   DocumentExtractor
	runner PipelineRunner
	pdf    *services.PDFService
}

func NewAPI(cfg config.Config, store storage.NoteStore, ai AIService, video VideoExtractor, docs DocumentExtractor, runner PipelineRunner, pdf *services.PDFService) *API {
	return &API{cfg: cfg, store: store, ai: ai, video: video, docs: docs, runner: runner, pdf: pdf}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)

		apiGroup.POST("/process", api.handleProcess)
		apiGroup.POST("/pipeline", api.handlePipeline)

		apiGroup.GET("/notes", api.handleListNotes)
		apiGroup.POST("/notes", api.handleSaveNote)
		apiGroup.GET("/notes/:id", api.handleGetNote)
		apiGroup.DELETE("/notes/:id", api.handleDeleteNote)
		apiGroup.GET("/notes/:id/pdf", api.handleNotePDF)

		apiGroup.POST("/chat", api.handleChat)
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleProcess is the single processing entry point: JSON for YouTube URLs
// and raw text, multipart for file uploads. The resulting note is saved; a
// failed save still returns the computed note with a warning so the user
// does not lose AI-generated work.
func (a *API) handleProcess(c *gin.Context) {
	contentType := c.ContentType()

	switch {
	case strings.Contains(contentType, "application/json"):
		a.processJSON(c)
	case strings.Contains(contentType, "multipart/form-data"):
		a.processMultipart(c)
	default:
		respondMessage(c, http.StatusBadRequest, "invalid content type")
	}
}

func (a *API) processJSON(c *gin.Context) {
	var payload struct {
		YoutubeURL string `json:"youtubeUrl"`
		Text       string `json:"text"`
		SourceType string `json:"sourceType"`
		UserID     string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx := c.Request.Context()

	if payload.YoutubeURL != "" {
		content, err := a.video.Extract(ctx, payload.YoutubeURL)
		if err != nil {
			respondPipelineError(c, err)
			return
		}

		bundle, err := a.ai.Summarize(ctx, content.Text)
		if err != nil {
			log.Printf("summary failed: %v", err)
			respondMessage(c, http.StatusBadGateway, "summary failed")
			return
		}

		a.saveAndRespond(c, domain.Note{
			Title:          content.SourceTitle,
			SourceType:     domain.SourceYouTube,
			Transcript:     content.Text,
			SummaryFormats: bundle.Formats,
			VideoID:        content.VideoID,
			YouTubeURL:     content.SourceURL,
			UserID:         payload.UserID,
		}, bundle.RevisionQA)
		return
	}

	if payload.Text != "" && payload.SourceType == domain.SourceText {
		bundle, err := a.ai.Summarize(ctx, payload.Text)
		if err != nil {
			log.Printf("summary failed: %v", err)
			respondMessage(c, http.StatusBadGateway, "summary failed")
			return
		}

		a.saveAndRespond(c, domain.Note{
			Title:          textTitle(payload.Text),
			SourceType:     domain.SourceText,
			Transcript:     payload.Text,
			SummaryFormats: bundle.Formats,
			UserID:         payload.UserID,
		}, bundle.RevisionQA)
		return
	}

	respondMessage(c, http.StatusBadRequest, "youtubeUrl or text is required")
}

func (a *API) processMultipart(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "no file provided")
		return
	}

	sourceType := c.PostForm("sourceType")
	if sourceType == "" {
		sourceType = domain.SourceText
	}

	upload, err := fileHeader.Open()
	if err != nil {
		respondMessage(c, http.StatusInternalServerError, "unable to read uploaded file")
		return
	}
	defer upload.Close()

	data, err := io.ReadAll(upload)
	if err != nil {
		respondMessage(c, http.StatusInternalServerError, "unable to read uploaded file")
		return
	}

	ctx := c.Request.Context()

	var transcript string
	switch sourceType {
	case domain.SourceAudio, domain.SourceVideo:
		transcript, err = a.ai.Transcribe(ctx, data, fileHeader.Filename)
	case domain.SourcePDF:
		transcript, err = a.docs.ExtractText(data)
	default:
		transcript = string(data)
	}
	if err != nil {
		respondPipelineError(c, err)
		return
	}

	bundle, err := a.ai.Summarize(ctx, transcript)
	if err != nil {
		log.Printf("summary failed: %v", err)
		respondMessage(c, http.StatusBadGateway, "summary failed")
		return
	}

	a.saveAndRespond(c, domain.Note{
		Title:          fileHeader.Filename,
		SourceType:     sourceType,
		Transcript:     transcript,
		SummaryFormats: bundle.Formats,
		UserID:         c.PostForm("userId"),
	}, bundle.RevisionQA)
}

// saveAndRespond persists the note (without Q&A, which is never stored) and
// returns it. Q&A rides along in the response only.
func (a *API) saveAndRespond(c *gin.Context, note domain.Note, qa []domain.QAPair) {
	saved, err := a.store.Save(c.Request.Context(), note)
	if err != nil {
		log.Printf("note save failed: %v", err)
		note.RevisionQA = qa
		c.JSON(http.StatusOK, gin.H{"success": true, "data": note, "warning": saveWarning})
		return
	}

	saved.RevisionQA = qa
	c.JSON(http.StatusOK, gin.H{"success": true, "data": saved})
}

func (a *API) handlePipeline(c *gin.Context) {
	var req struct {
		InputType  string `json:"inputType"`
		SourceType string `json:"sourceType"`
		YoutubeURL string `json:"youtubeUrl"`
		SourceURL  string `json:"sourceUrl"`
		Text       string `json:"text"`
		Title      string `json:"title"`
		FileName   string `json:"fileName"`
		FileData   string `json:"fileData"`
		UserID     string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid payload")
		return
	}

	inputType := req.InputType
	if inputType == "" {
		inputType = req.SourceType
	}

	payload := pipeline.Payload{
		UserID:      req.UserID,
		InputType:   inputType,
		YouTubeURL:  req.YoutubeURL,
		SourceURL:   req.SourceURL,
		TextContent: req.Text,
		Title:       req.Title,
		FileName:    req.FileName,
	}

	if req.FileData != "" {
		data, err := base64.StdEncoding.DecodeString(req.FileData)
		if err != nil {
			respondMessage(c, http.StatusBadRequest, "fileData is not valid base64")
			return
		}
		payload.FileData = data
	}

	// The run's outcome is a tagged result, success flag included; transport
	// status stays 200 so callers always read the same shape.
	result := a.runner.Run(c.Request.Context(), payload)
	c.JSON(http.StatusOK, result)
}

func (a *API) handleListNotes(c *gin.Context) {
	notes, err := a.store.List(c.Request.Context(), c.Query("userId"), c.Query("search"))
	if err != nil {
		respondMessage(c, http.StatusInternalServerError, "failed to fetch notes")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": notes})
}

func (a *API) handleSaveNote(c *gin.Context) {
	var note domain.Note
	if err := c.ShouldBindJSON(&note); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid payload")
		return
	}

	if note.Title == "" && note.Transcript == "" {
		respondMessage(c, http.StatusBadRequest, "title or transcript is required")
		return
	}

	saved, err := a.store.Save(c.Request.Context(), note)
	if err != nil {
		respondMessage(c, http.StatusInternalServerError, "failed to save note")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": saved})
}

func (a *API) handleGetNote(c *gin.Context) {
	note, err := a.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNoteNotFound) {
			respondMessage(c, http.StatusNotFound, "note not found")
			return
		}
		respondMessage(c, http.StatusInternalServerError, "failed to fetch note")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": note})
}

func (a *API) handleDeleteNote(c *gin.Context) {
	err := a.store.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNoteNotFound) {
			respondMessage(c, http.StatusNotFound, "note not found")
			return
		}
		respondMessage(c, http.StatusInternalServerError, "failed to delete note")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *API) handleNotePDF(c *gin.Context) {
	note, err := a.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNoteNotFound) {
			respondMessage(c, http.StatusNotFound, "note not found")
			return
		}
		respondMessage(c, http.StatusInternalServerError, "failed to fetch note")
		return
	}

	var buf bytes.Buffer
	if err := a.pdf.Render(note, &buf); err != nil {
		respondMessage(c, http.StatusInternalServerError, "failed to render pdf")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", note.Title+".pdf"))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// handleChat answers a question about a stored note. The chat context is the
// note's title, transcript and summaries; revision Q&A is never included.
func (a *API) handleChat(c *gin.Context) {
	var req struct {
		NoteID  string `json:"noteId"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.NoteID == "" || req.Message == "" {
		respondMessage(c, http.StatusBadRequest, "noteId and message are required")
		return
	}

	note, err := a.store.Get(c.Request.Context(), req.NoteID)
	if err != nil {
		if errors.Is(err, storage.ErrNoteNotFound) {
			respondMessage(c, http.StatusNotFound, "note not found")
			return
		}
		respondMessage(c, http.StatusInternalServerError, "failed to fetch note")
		return
	}

	system := "You are a study assistant. Answer questions using only the provided note content."
	user := fmt.Sprintf("Note: %s\n\nTranscript:\n%s\n\nSummaries:\n%s\n\nQuestion: %s",
		note.Title, note.Transcript, strings.Join(note.SummaryFormats.BulletNotes, "\n"), req.Message)

	reply, err := a.ai.Chat(c.Request.Context(), system, user)
	if err != nil {
		log.Printf("chat failed: %v", err)
		respondMessage(c, http.StatusBadGateway, "chat failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"reply": reply}})
}

func textTitle(text string) string {
	firstLine := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	if len(firstLine) > 50 {
		return firstLine[:50] + "..."
	}
	if firstLine == "" {
		return "Generated Note"
	}
	return firstLine
}

// respondPipelineError renders a typed failure as its short message plus
// stable code; stack traces and upstream bodies never reach clients.
func respondPipelineError(c *gin.Context, err error) {
	pErr := apperrors.From(err)
	body := gin.H{
		"success":    false,
		"error":      pErr.Message,
		"error_code": pErr.Code,
	}
	if retryAfter, ok := pErr.Details["retry_after"].(string); ok {
		body["retry_after"] = retryAfter
	}
	c.JSON(pErr.Status, body)
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}
