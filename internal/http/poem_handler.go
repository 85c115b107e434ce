package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/repository"
	"poetry-tutor/internal/service"
)

// PoemHandler expone el catálogo de poemas y su audio pregrabado.
type PoemHandler struct {
	logger *zap.Logger
	poems  *service.PoemService
	audio  *service.PoemAudioService
}

func NewPoemHandler(logger *zap.Logger, poems *service.PoemService, audio *service.PoemAudioService) *PoemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoemHandler{logger: logger, poems: poems, audio: audio}
}

// List maneja GET /poems?dynasty=&author=&limit=&offset=.
func (h *PoemHandler) List(c *gin.Context) {
	filter := repository.PoemFilter{
		Dynasty: c.Query("dynasty"),
		Author:  c.Query("author"),
	}
	var err error
	if v := c.Query("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			respondError(c, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	if v := c.Query("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil {
			respondError(c, http.StatusBadRequest, "invalid offset")
			return
		}
	}
	poems, err := h.poems.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, h.logger, "list poems", err)
		return
	}
	respond(c, http.StatusOK, "Poems retrieved successfully", poems)
}

func (h *PoemHandler) Get(c *gin.Context) {
	poem, err := h.poems.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, "get poem", err)
		return
	}
	respond(c, http.StatusOK, "Poem retrieved successfully", poem)
}

func (h *PoemHandler) Create(c *gin.Context) {
	var req service.PoemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}
	poem, err := h.poems.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, h.logger, "create poem", err)
		return
	}
	respond(c, http.StatusCreated, "Poem created successfully", poem)
}

func (h *PoemHandler) Update(c *gin.Context) {
	var req service.PoemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}
	poem, err := h.poems.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, h.logger, "update poem", err)
		return
	}
	respond(c, http.StatusOK, "Poem updated successfully", poem)
}

func (h *PoemHandler) Delete(c *gin.Context) {
	if err := h.poems.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, h.logger, "delete poem", err)
		return
	}
	respond(c, http.StatusOK, "Poem deleted successfully", nil)
}

type poemAudioResponse struct {
	Exists    bool                       `json:"exists"`
	Resources *domain.PoemAudioResources `json:"audioResources,omitempty"`
}

// GenerateAudio maneja POST /poems/:id/audio. Es síncrono: la respuesta llega
// cuando todos los segmentos están subidos.
func (h *PoemHandler) GenerateAudio(c *gin.Context) {
	if h.audio == nil {
		respondError(c, http.StatusServiceUnavailable, "poem audio not configured")
		return
	}
	res, err := h.audio.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, "generate poem audio", err)
		return
	}
	respond(c, http.StatusOK, "Poem audio generated successfully", poemAudioResponse{Exists: true, Resources: &res})
}

// Audio maneja GET /poems/:id/audio.
func (h *PoemHandler) Audio(c *gin.Context) {
	if h.audio == nil {
		respondError(c, http.StatusServiceUnavailable, "poem audio not configured")
		return
	}
	res, err := h.audio.Resources(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, "get poem audio", err)
		return
	}
	if res == nil {
		respond(c, http.StatusOK, "Poem audio has not been generated", poemAudioResponse{})
		return
	}
	respond(c, http.StatusOK, "Poem audio retrieved successfully", poemAudioResponse{Exists: true, Resources: res})
}
