package main

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifegraph/backend/internal/agent"
	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/pipeline"
	"lifegraph/backend/internal/storage"
	"lifegraph/backend/pkg/errors"
)

type handlers struct {
	pipe      *pipeline.Pipeline
	suggester *agent.Suggester
	logger    *zap.Logger
}

// notFound writes a 404 when err is a not-found error and reports whether it did
func notFound(c *gin.Context, err error) bool {
	var nf *errors.ErrEntityNotFound
	if !stderrors.As(err, &nf) {
		return false
	}
	c.JSON(http.StatusNotFound, gin.H{"error": nf.Message})
	return true
}

func (h *handlers) fail(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err), zap.String("path", c.Request.URL.Path))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func (h *handlers) stats(c *gin.Context) {
	stats, err := h.pipe.Statistics(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to compute statistics", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handlers) entityContext(c *gin.Context) {
	depth := constants.DefaultQueryDepth
	if raw := c.Query("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be an integer"})
			return
		}
		depth = d
	}

	res, err := h.pipe.QueryContext(c.Request.Context(), c.Param("name"), depth)
	if err != nil {
		if notFound(c, err) {
			return
		}
		h.fail(c, "Failed to query context", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) entities(c *gin.Context) {
	filter := storage.EntityFilter{NamePattern: c.Query("name")}
	if raw := c.Query("type"); raw != "" {
		t, err := graph.ParseEntityType(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Type = t
	}

	entities, err := h.pipe.Store().QueryEntities(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "Failed to query entities", err)
		return
	}
	if entities == nil {
		entities = []graph.Entity{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entities), "entities": entities})
}

func (h *handlers) triplets(c *gin.Context) {
	filter := storage.TripletFilter{Subject: c.Query("subject"), Object: c.Query("object")}
	if raw := c.Query("predicate"); raw != "" {
		r, err := graph.ParseRelationType(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Predicate = r
	}

	triplets, err := h.pipe.Store().QueryTriplets(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "Failed to query triplets", err)
		return
	}
	if triplets == nil {
		triplets = []graph.Triplet{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(triplets), "triplets": triplets})
}

func (h *handlers) suggestions(c *gin.Context) {
	res, err := h.suggester.Suggest(c.Request.Context(), c.Param("name"))
	if err != nil {
		if notFound(c, err) {
			return
		}
		h.fail(c, "Failed to build suggestions", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
