package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/authsdk"
	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// ClientsHandler handles the client management endpoints.
type ClientsHandler struct {
	ClientService *service.ClientService
}

// HandleCreate handles POST /identity/admin/clients
//
//	@Summary		Register OAuth2 Client
//	@Description	Registers a client. Confidential clients without a client_secret get a generated one, returned once.
//	@Tags			Clients
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			Authorization	header		string							true	"Bearer token with idp:admin scope"
//	@Param			request			body		authsdk.CreateClientRequest		true	"Client registration"
//	@Success		201				{object}	authsdk.CreateClientResponse	"client_id and client_secret (if generated)"
//	@Failure		400				{object}	authsdk.ErrorResponse			"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse			"error, error_description"
//	@Failure		403				{object}	authsdk.ErrorResponse			"error, error_description"
//	@Failure		500				{object}	authsdk.ErrorResponse			"error, error_description"
//	@Router			/identity/admin/clients [post]
func (h *ClientsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription("invalid JSON in request body").WriteError(w)
		return
	}

	clientID, secret, err := h.ClientService.CreateClient(ctx, service.ClientParams{
		ID:                req.ID,
		Name:              req.Name,
		Type:              domain.ClientType(req.Type),
		Secret:            req.Secret,
		Scopes:            req.Scopes,
		DefaultScopes:     req.DefaultScopes,
		GrantTypes:        req.GrantTypes,
		ResponseTypes:     req.ResponseTypes,
		RedirectURIs:      req.RedirectURIs,
		CORSOrigins:       req.CORSOrigins,
		AllowURIWildcards: req.AllowURIWildcards,
		SkipConsent:       req.SkipConsent,
		OwnerID:           httpx.ClientIDFromContext(ctx),
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to create client")
		return
	}

	// Only a generated secret is echoed back.
	if secret == req.Secret {
		secret = ""
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, authsdk.CreateClientResponse{
		ClientID:     clientID,
		ClientSecret: secret,
	})
}

// HandleList handles GET /identity/admin/clients
//
//	@Summary		List OAuth2 Clients
//	@Description	Returns all registered clients without their secrets.
//	@Tags			Clients
//	@Produce		json
//	@Security		BearerAuth
//	@Param			Authorization	header		string						true	"Bearer token with idp:admin scope"
//	@Success		200				{object}	authsdk.ListClientsResponse	"List of clients"
//	@Failure		401				{object}	authsdk.ErrorResponse		"error, error_description"
//	@Failure		403				{object}	authsdk.ErrorResponse		"error, error_description"
//	@Failure		500				{object}	authsdk.ErrorResponse		"error, error_description"
//	@Router			/identity/admin/clients [get]
func (h *ClientsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clients, err := h.ClientService.ListClients(ctx)
	if err != nil {
		log.Error("failed to list clients", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	resp := authsdk.ListClientsResponse{Clients: make([]authsdk.ClientInfo, len(clients))}
	for i, c := range clients {
		resp.Clients[i] = authsdk.ClientInfo{
			ID:           c.ID,
			Name:         c.Name,
			Type:         string(c.Type),
			Scopes:       c.Scopes,
			GrantTypes:   c.GrantTypes,
			RedirectURIs: c.RedirectURIs,
			HasSecret:    c.SecretHash != "",
			SkipConsent:  c.SkipConsent,
			CreatedAt:    c.CreatedAt.Format(time.RFC3339),
		}
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleDelete handles DELETE /identity/admin/clients/{id}
//
//	@Summary		Delete OAuth2 Client
//	@Description	Deletes a client. Its tokens stop validating on their next use.
//	@Tags			Clients
//	@Produce		json
//	@Security		BearerAuth
//	@Param			Authorization	header	string	true	"Bearer token with idp:admin scope"
//	@Param			id				path	string	true	"Client ID"
//	@Success		204				"Client deleted successfully"
//	@Failure		401				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		403				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		404				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/identity/admin/clients/{id} [delete]
func (h *ClientsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID := r.PathValue("id")

	err := h.ClientService.DeleteClient(ctx, clientID)
	switch {
	case errors.Is(err, service.ErrClientNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, authsdk.ErrorResponse{
			Error:            "client_not_found",
			ErrorDescription: "Client not found",
		})
		return
	case err != nil:
		log.Error("failed to delete client", "error", err, "client_id", clientID)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireScope admits requests whose bearer token carries scope. The token's
// client is put in the request context.
func requireScope(grants *service.GrantServer, scope string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _ := httpx.BearerToken(r)
			tok, _, err := grants.Validator.ValidateBearerToken(r.Context(), service.BearerRequest{
				Token:   token,
				InQuery: httpx.HasQueryAccessToken(r),
			}, []string{scope})
			if err != nil {
				writeBearerError(w, r, err)
				return
			}

			ctx := httpx.WithClientID(r.Context(), tok.ClientID)
			if tok.UserID != "" {
				ctx = httpx.WithUserID(ctx, tok.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
