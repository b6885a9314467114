package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/aibridge/pkg/bridge"
	"github.com/MrWong99/aibridge/pkg/types"
	"github.com/MrWong99/aibridge/pkg/vectorstore"
)

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	reg := s.svc.Registry()
	def := s.svc.Chat.Select().Provider()
	out := make([]providerInfo, 0, reg.Len())
	for _, name := range reg.Names() {
		a, _ := reg.Lookup(name)
		out = append(out, providerInfo{
			Name:         name,
			Default:      name == def,
			Capabilities: a.Capabilities(),
			Models:       a.Models(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	sel, err := req.apply(s.svc.Chat.Select())
	if err != nil {
		fail(w, r, err)
		return
	}

	var resp *types.ChatResponse
	switch {
	case len(req.Messages) > 0:
		resp, err = s.svc.Chat.CompleteMessages(r.Context(), sel, toMessages(req.Messages))
	case req.Prompt != "":
		resp, err = s.svc.Chat.Complete(r.Context(), sel, req.Prompt)
	default:
		err = fmt.Errorf("%w: prompt or messages is required", errBadRequest)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChatResponse(resp))
}

func (s *Server) handleChatFunctions(w http.ResponseWriter, r *http.Request) {
	var req functionsRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	sel, err := req.apply(s.svc.Chat.Select())
	if err != nil {
		fail(w, r, err)
		return
	}
	resp, err := s.svc.Chat.CompleteWithFunctions(r.Context(), sel, toMessages(req.Messages), req.Tools)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChatResponse(resp))
}

// handleChatStream relays a streamed completion as server-sent events. Each
// fragment is a "data:" frame; a backend failure after the stream opened is
// sent as an "error" event, and a final "done" event closes a clean stream.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if req.Prompt == "" {
		fail(w, r, fmt.Errorf("%w: prompt is required", errBadRequest))
		return
	}
	sel, err := req.apply(s.svc.Chat.Select())
	if err != nil {
		fail(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	stream, err := s.svc.Chat.CompleteStreaming(r.Context(), sel, req.Prompt)
	if err != nil {
		fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	for chunk := range stream {
		if chunk.Err != nil {
			b, _ := json.Marshal(map[string]string{"error": chunk.Err.Error()})
			_, _ = fmt.Fprintf(bw, "event: error\ndata: %s\n\n", b)
			_ = bw.Flush()
			flusher.Flush()
			return
		}
		b, _ := json.Marshal(chunk)
		if _, err := fmt.Fprintf(bw, "data: %s\n\n", b); err != nil {
			return
		}
		_ = bw.Flush()
		flusher.Flush()
	}
	if r.Context().Err() != nil {
		return
	}
	_, _ = fmt.Fprint(bw, "event: done\ndata: {}\n\n")
	_ = bw.Flush()
	flusher.Flush()
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingsRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	sel := s.embedSelection(req.Provider, req.Model)
	vecs, err := s.svc.Embeddings.GenerateEmbeddings(r.Context(), sel, req.Texts)
	if err != nil {
		fail(w, r, err)
		return
	}
	resp := embeddingsResponse{Embeddings: vecs}
	if len(vecs) > 0 {
		resp.Dimensions = len(vecs[0])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	var req similarityRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	sim, err := s.svc.Embeddings.CalculateSimilarity(req.A, req.B)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, similarityResponse{Similarity: sim})
}

func (s *Server) handleVision(w http.ResponseWriter, r *http.Request) {
	var req visionRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	sel, err := req.apply(s.svc.Vision.Select())
	if err != nil {
		fail(w, r, err)
		return
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(req.Image)
	}
	resp, err := s.svc.Vision.AnalyzeImage(r.Context(), sel, req.Image, req.Prompt, mimeType)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
	}
	name := chi.URLParam(r, "name")
	col, err := s.svc.VectorStore.GetCollection(r.Context(), name, vectorstore.Definition{Dimensions: req.Dimensions})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionResponse{Name: col.Name(), Dimensions: col.Definition().Dimensions})
}

// handleUpsert stores every record. Records without a vector are embedded
// from their content with the request's embedding selection.
func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	sel := s.embedSelection(req.Provider, req.Model)
	for i, rec := range req.Records {
		var err error
		switch {
		case rec.Key == "":
			err = fmt.Errorf("%w: record %d: key is required", errBadRequest, i)
		case len(rec.Vector) == 0 && rec.Content != "":
			err = s.svc.VectorStore.UpsertText(r.Context(), sel, name, rec.Key, rec.Content, rec.Metadata)
		default:
			err = s.svc.VectorStore.Upsert(r.Context(), name, rec)
		}
		if err != nil {
			fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, upsertResponse{Upserted: len(req.Records)})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.VectorStore.Get(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "key"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.VectorStore.Delete(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "key")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")

	var (
		results []vectorstore.SearchResult
		err     error
	)
	switch {
	case len(req.Vector) > 0:
		results, err = s.svc.VectorStore.Search(r.Context(), name, req.Vector, req.TopK)
	case req.Text != "":
		results, err = s.svc.VectorStore.SearchText(r.Context(), s.embedSelection(req.Provider, req.Model), name, req.Text, req.TopK)
	default:
		err = fmt.Errorf("%w: vector or text is required", errBadRequest)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	if results == nil {
		results = []vectorstore.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (s *Server) embedSelection(providerName, model string) bridge.Selection {
	sel := s.svc.Embeddings.Select()
	if providerName != "" {
		sel = sel.WithProvider(providerName)
	}
	if model != "" {
		sel = sel.WithModel(model)
	}
	return sel
}
