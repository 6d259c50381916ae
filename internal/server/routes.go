// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/docent-dev/docent/internal/answer"
	"github.com/docent-dev/docent/internal/ingest"
	"github.com/docent-dev/docent/internal/memory"
	"github.com/docent-dev/docent/internal/provider"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat",
		Summary:     "Ask a question about a document",
		Tags:        []string{"chat"},
		Middlewares: huma.Middlewares{s.limitChat},
	}, s.handleChat)

	huma.Register(s.api, huma.Operation{
		OperationID:   "ingest-document",
		Method:        http.MethodPost,
		Path:          "/api/v1/documents/{docId}/ingest",
		Summary:       "Ingest page texts and action records",
		Tags:          []string{"documents"},
		DefaultStatus: http.StatusCreated,
	}, s.handleIngest)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-progress",
		Method:      http.MethodGet,
		Path:        "/api/v1/documents/{docId}/progress",
		Summary:     "Ingestion progress",
		Tags:        []string{"documents"},
	}, s.handleProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-conversation",
		Method:      http.MethodGet,
		Path:        "/api/v1/documents/{docId}/conversation",
		Summary:     "Conversation summary and recent turns",
		Tags:        []string{"documents"},
	}, s.handleGetConversation)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-conversation",
		Method:        http.MethodDelete,
		Path:          "/api/v1/documents/{docId}/conversation",
		Summary:       "Forget a document's conversation",
		Tags:          []string{"documents"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteConversation)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-providers",
		Method:      http.MethodGet,
		Path:        "/api/v1/providers",
		Summary:     "Generator provider status",
		Tags:        []string{"system"},
	}, s.handleProviders)
}

// --- Request/Response types for huma ---

type chatInput struct {
	Body struct {
		DocID    string `json:"doc_id" minLength:"1" doc:"Document identifier"`
		Question string `json:"question" minLength:"1" doc:"User question"`
	}
}

type chatOutput struct {
	Body struct {
		Answer    string            `json:"answer" doc:"Generated answer"`
		Source    *string           `json:"source" nullable:"true" doc:"Fragments the answer is attributed to; null when the document has none"`
		Citations []answer.Citation `json:"citations,omitempty" doc:"Structured form of source"`
	}
}

type docIDInput struct {
	DocID string `path:"docId" minLength:"1" doc:"Document identifier"`
}

type ingestInput struct {
	DocID string `path:"docId" minLength:"1" doc:"Document identifier"`
	Body  struct {
		Pages   []string              `json:"pages" doc:"Cleaned page texts in page order"`
		Actions []ingest.ActionRecord `json:"actions,omitempty" doc:"Action records extracted from the document"`
		Extract bool                  `json:"extract,omitempty" doc:"Extract actions and entities with the generator when none are given"`
	}
}

type ingestOutput struct {
	Body struct {
		DocID    string `json:"doc_id"`
		Inserted int    `json:"inserted" doc:"Fragments stored"`
	}
}

type progressOutput struct {
	Body ingest.Progress
}

type conversationOutput struct {
	Body struct {
		DocID   string        `json:"doc_id"`
		Summary string        `json:"summary"`
		History []memory.Turn `json:"history"`
	}
}

type providersOutput struct {
	Body struct {
		Providers []provider.ProviderStatus `json:"providers"`
	}
}

// --- Handlers ---

func (s *Server) handleChat(ctx context.Context, input *chatInput) (*chatOutput, error) {
	resp, err := s.services.answers.Answer(ctx, input.Body.DocID, input.Body.Question)
	if err != nil {
		return nil, apiError("answering question", err)
	}
	out := &chatOutput{}
	out.Body.Answer = resp.Answer
	out.Body.Source = resp.Source
	out.Body.Citations = resp.Citations
	return out, nil
}

func (s *Server) handleIngest(ctx context.Context, input *ingestInput) (*ingestOutput, error) {
	b := &ingest.Bundle{
		DocID:   input.DocID,
		Pages:   input.Body.Pages,
		Actions: input.Body.Actions,
	}
	n, err := s.services.ingester.IngestBundle(ctx, b, ingest.Options{Extract: input.Body.Extract})
	if err != nil {
		return nil, apiError("ingesting document", err)
	}
	out := &ingestOutput{}
	out.Body.DocID = input.DocID
	out.Body.Inserted = n
	return out, nil
}

func (s *Server) handleProgress(_ context.Context, input *docIDInput) (*progressOutput, error) {
	p, err := s.services.progress.Get(input.DocID)
	if docerr.IsNotFound(err) {
		// Documents never seen are reported as waiting to start.
		return &progressOutput{Body: ingest.Progress{DocID: input.DocID, Step: ingest.StagePending}}, nil
	}
	if err != nil {
		return nil, apiError("reading progress", err)
	}
	return &progressOutput{Body: p}, nil
}

func (s *Server) handleGetConversation(_ context.Context, input *docIDInput) (*conversationOutput, error) {
	st, ok := s.services.conversations.Snapshot(input.DocID)
	if !ok {
		return nil, huma.Error404NotFound("no conversation for document " + input.DocID)
	}
	out := &conversationOutput{}
	out.Body.DocID = input.DocID
	out.Body.Summary = st.Summary
	out.Body.History = st.History
	if out.Body.History == nil {
		out.Body.History = []memory.Turn{}
	}
	return out, nil
}

func (s *Server) handleDeleteConversation(ctx context.Context, input *docIDInput) (*struct{}, error) {
	found, err := s.services.conversations.Evict(ctx, input.DocID)
	if err != nil {
		return nil, apiError("deleting conversation", err)
	}
	if !found {
		return nil, huma.Error404NotFound("no conversation for document " + input.DocID)
	}
	slog.Info("conversation deleted", "doc_id", input.DocID)
	return nil, nil
}

func (s *Server) handleProviders(ctx context.Context, _ *struct{}) (*providersOutput, error) {
	out := &providersOutput{}
	out.Body.Providers = []provider.ProviderStatus{}
	if s.services.providers != nil {
		out.Body.Providers = s.services.providers.Statuses(ctx)
	}
	return out, nil
}

// apiError converts a coded error into a huma status error. Server faults
// are logged and their detail withheld from the client.
func apiError(op string, err error) error {
	status := docerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed", "code", docerr.CodeOf(err), "error", err)
		if status == http.StatusInternalServerError {
			return huma.NewError(status, op+" failed")
		}
	}
	return huma.NewError(status, err.Error())
}
