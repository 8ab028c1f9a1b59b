package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// splitQueueID splits a queue id of the form "{queueType}-{organisation}",
// e.g. "boefje-org1", at its first "-". Dispatcher names use a colon instead
// ("boefje:org1").
func splitQueueID(id string) (queueType, organisation string, ok bool) {
	queueType, organisation, found := strings.Cut(id, "-")
	return queueType, organisation, found
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "scheduler"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "scheduler",
		"healthy": true,
		"version": s.version,
	})
}

func (s *Server) handleListQueues(c *gin.Context) {
	var ids []string
	for _, org := range s.view.Organisations() {
		ids = append(ids, "boefje-"+org, "normalizer-"+org)
	}
	c.JSON(http.StatusOK, ids)
}

func (s *Server) handleGetQueue(c *gin.Context) {
	queueType, org, ok := splitQueueID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue"})
		return
	}
	snapshot, ok := s.view.QueueSnapshot(org, queueType)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            c.Param("id"),
		"size":          snapshot.Length,
		"maxsize":       snapshot.Maxsize,
		"pq":            snapshot.Items,
		"task_statuses": snapshot.Statuses,
	})
}

func (s *Server) handlePop(c *gin.Context) {
	queueType, org, ok := splitQueueID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue"})
		return
	}
	item, found, err := s.view.Pop(org, queueType)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "queue empty"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) handlePush(c *gin.Context) {
	queueType, org, ok := splitQueueID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue"})
		return
	}

	var body struct {
		Priority int             `json:"priority"`
		Item     json.RawMessage `json:"item"`
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid queue item: " + err.Error()})
		return
	}

	if err := s.view.Push(org, queueType, body.Priority, body.Item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
