package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nailsizes/nailsizes/internal/app"
	"github.com/nailsizes/nailsizes/internal/backup"
	"github.com/nailsizes/nailsizes/internal/schema"
)

// ListResponse wraps list endpoints.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

func list[T any](c *gin.Context, data []T) {
	if data == nil {
		data = []T{}
	}
	c.JSON(http.StatusOK, ListResponse[T]{Data: data, Total: len(data)})
}

// GET /api/clients?q=...&since=RFC3339
func (s *Server) listClients(c *gin.Context) {
	q := c.Query("q")

	var (
		clients []*schema.Client
		err     error
	)
	if since := c.Query("since"); since != "" {
		t, perr := schema.ParseTime(since)
		if perr != nil {
			writeErr(c, http.StatusBadRequest, "invalid_since", "since must be an ISO-8601 timestamp.")
			return
		}
		clients, err = s.app.ListClientsSince(c.Request.Context(), q, t)
	} else {
		clients, err = s.app.ListClients(c.Request.Context(), q)
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	list(c, clients)
}

// POST /api/clients
func (s *Server) addClient(c *gin.Context) {
	var in app.NewClientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.bindError(c, err)
		return
	}
	st, err := s.app.AddClient(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// GET /api/clients/:id?styleId=...
func (s *Server) editView(c *gin.Context) {
	v, err := s.app.EditView(c.Request.Context(), app.Edit(c.Param("id"), c.Query("styleId")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// PUT /api/clients/:id
func (s *Server) saveClient(c *gin.Context) {
	var in app.ClientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.bindError(c, err)
		return
	}
	client, err := s.app.SaveClientInfo(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// DELETE /api/clients/:id
func (s *Server) deleteClient(c *gin.Context) {
	st, err := s.app.DeleteClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// POST /api/clients/:id/measurements/:styleId
func (s *Server) addStyleMeasurement(c *gin.Context) {
	st, err := s.app.AddStyleMeasurement(c.Request.Context(), c.Param("id"), c.Param("styleId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// PUT /api/clients/:id/measurements/:styleId
func (s *Server) saveMeasurement(c *gin.Context) {
	var in app.MeasurementInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.bindError(c, err)
		return
	}
	m, err := s.app.SaveMeasurement(c.Request.Context(), c.Param("id"), c.Param("styleId"), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// GET /api/styles
func (s *Server) listStyles(c *gin.Context) {
	styles, err := s.app.Styles(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	list(c, styles)
}

// GET /api/backup downloads the whole store.
func (s *Server) exportBackup(c *gin.Context) {
	doc, name, err := s.app.Export(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	data, err := backup.Marshal(doc)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/json", data)
}

// POST /api/backup?clearMissing=true replaces the store with the body.
func (s *Server) importBackup(c *gin.Context) {
	opts := backup.ImportOptions{}
	if v, _ := strconv.ParseBool(c.Query("clearMissing")); v {
		opts.Missing = backup.ClearMissing
	}

	body, err := c.GetRawData()
	if err != nil {
		writeErr(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	start := time.Now()
	res, err := s.app.Import(c.Request.Context(), bytes.NewReader(body), opts)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.logger.Printf("Import finished in %v", time.Since(start).Round(time.Millisecond))
	c.JSON(http.StatusOK, res)
}
