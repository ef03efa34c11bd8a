package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/nodegraph/internal/editor"
	"github.com/alfredjeanlab/nodegraph/internal/export"
	"github.com/alfredjeanlab/nodegraph/internal/fields"
	"github.com/alfredjeanlab/nodegraph/internal/graph"
	"github.com/alfredjeanlab/nodegraph/internal/pipeline"
)

// maxBodyBytes bounds request bodies; workflow text is the largest.
const maxBodyBytes = 8 << 20

// statusResponse carries the status line after a command.
type statusResponse struct {
	Status editor.Status `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Summary())
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"options": s.session.Options(r.URL.Query().Get("q"))})
}

func (s *Server) handleDefinition(w http.ResponseWriter, r *http.Request) {
	def, ok := s.session.Definition(r.PathValue("type"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown node type: "+r.PathValue("type"))
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleSurfaces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": s.surfaces.Connected(),
		"surfaces":  s.surfaces.Roster(),
	})
}

// --- Workflow ---

func (s *Server) handleGetWorkflow(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s.session.Text())
}

func (s *Server) handleLoadWorkflow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.session.LoadText(req.Text); err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Summary())
}

func (s *Server) handleDownload(w http.ResponseWriter, _ *http.Request) {
	data := s.session.Download()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="workflow.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Export(r.Context(), s.dests); err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: s.session.Status()})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	// The engine call outlives a client that hangs up.
	id, err := s.session.Submit(context.WithoutCancel(r.Context()))
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompt_id": id, "status": s.session.Status()})
}

// --- Graph ---

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := s.session.Insert(req.Type)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": s.session.Status()})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.session.Remove(id) {
		writeError(w, http.StatusNotFound, "node not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: s.session.Status()})
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.session.Form(r.PathValue("id"))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := s.session.SetField(r.PathValue("id"), r.PathValue("field"), req.Value)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": v, "status": s.session.Status()})
}

// --- Pipeline ---

func (s *Server) handleScene(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Scene())
}

func (s *Server) handleClickOutput(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "output index must be an integer")
		return
	}
	selected, err := s.session.ClickOutput(r.PathValue("id"), index)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selected": selected, "status": s.session.Status()})
}

func (s *Server) handleClickInput(w http.ResponseWriter, r *http.Request) {
	res, err := s.session.ClickInput(r.PathValue("id"), r.PathValue("field"))
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res, "status": s.session.Status()})
}

type pointerRequest struct {
	Phase   string  `json:"phase"`
	Node    string  `json:"node,omitempty"`
	Pointer int     `json:"pointer"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	op := map[string]string{
		"down":   editor.OpPointerDown,
		"move":   editor.OpPointerMove,
		"up":     editor.OpPointerUp,
		"cancel": editor.OpPointerCancel,
	}[req.Phase]
	if op == "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown pointer phase %q", req.Phase))
		return
	}
	s.dispatch(w, r, editor.Command{Op: op, Node: req.Node, Pointer: req.Pointer, X: req.X, Y: req.Y})
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scroll *pipeline.Point `json:"scroll,omitempty"`
		Size   *struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"size,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Scroll != nil {
		s.session.Scroll(req.Scroll.X, req.Scroll.Y)
	}
	if req.Size != nil {
		s.session.Resize(req.Size.Width, req.Size.Height)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ports []pipeline.PortRect `json:"ports"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.session.ReportPorts(req.Ports)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetLayout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.ResetLayout())
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		View   string `json:"view"`
		Toggle bool   `json:"toggle"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Toggle {
		s.session.ToggleView()
	} else if err := s.session.SetView(editor.ViewMode(req.View)); err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"view": s.session.View(), "status": s.session.Status()})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd editor.Command
	if !decodeBody(w, r, &cmd) {
		return
	}
	s.dispatch(w, r, cmd)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, cmd editor.Command) {
	res, err := s.session.Dispatch(r.Context(), cmd)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Helpers ---

// errorStatus maps editor errors to HTTP status codes.
func errorStatus(err error) int {
	var se *editor.SubmissionError
	switch {
	case errors.As(err, &se):
		if se.Err != nil {
			return http.StatusBadGateway
		}
		return http.StatusUnprocessableEntity
	case errors.Is(err, graph.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrMalformedInput),
		errors.Is(err, graph.ErrUnknownType),
		errors.Is(err, fields.ErrUnknownField),
		errors.Is(err, editor.ErrNoDefinition),
		errors.Is(err, editor.ErrInvalidView),
		errors.Is(err, editor.ErrUnknownCommand),
		errors.Is(err, pipeline.ErrNoPort),
		errors.Is(err, export.ErrNoDestination):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeCommandError writes the error together with the status line the
// failed command left behind.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]any{
		"error":  err.Error(),
		"status": s.session.Status(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
