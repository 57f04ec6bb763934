package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"wg-lifecycle/wg-server/internal/auth"
	"wg-lifecycle/wg-server/internal/journal"
	"wg-lifecycle/wg-server/internal/middleware"
	"wg-lifecycle/wg-server/internal/model"
	"wg-lifecycle/wg-server/internal/registry"
	"wg-lifecycle/wg-server/internal/syncer"
)

type Passer interface {
	Pass(ctx context.Context) (syncer.PassResult, error)
}

type PassLister interface {
	List(ctx context.Context, limit int) ([]journal.Entry, error)
}

type Handler struct {
	reg    *registry.Registry
	passer Passer
	passes PassLister
	issuer *auth.Issuer
	admin  auth.Credentials
	log    logrus.FieldLogger
}

// NewHandler builds the admin API. passes may be nil when the journal is
// disabled.
func NewHandler(reg *registry.Registry, passer Passer, passes PassLister, issuer *auth.Issuer, admin auth.Credentials, log logrus.FieldLogger) *Handler {
	return &Handler{reg: reg, passer: passer, passes: passes, issuer: issuer, admin: admin, log: log}
}

// --- Request/Response types ---

type ClientIDInput struct {
	ID string `path:"id"`
}

type ClientOutput struct {
	Body model.Client
}

type ClientListOutput struct {
	Body []model.Client
}

type CreateClientInput struct {
	Body model.NewClient
}

type UpdateClientInput struct {
	ID   string `path:"id"`
	Body model.ClientPatch
}

type ServerOutput struct {
	Body model.Server
}

type UpdateServerInput struct {
	Body model.ServerPatch
}

type PassSummary struct {
	StartedAt         time.Time `json:"started_at"`
	DurationMillis    int64     `json:"duration_ms"`
	Added             []string  `json:"added"`
	Removed           []string  `json:"removed"`
	AccountChanges    int       `json:"account_changes"`
	ConnectionChanges int       `json:"connection_changes"`
	Failures          []string  `json:"failures"`
	Saved             bool      `json:"saved"`
	SaveError         string    `json:"save_error,omitempty"`
}

type PassOutput struct {
	Body PassSummary
}

type ListPassesInput struct {
	Limit int `query:"limit" minimum:"0" default:"20"`
}

type ListPassesOutput struct {
	Body []journal.Entry
}

type LoginInput struct {
	Body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
}

type LoginOutput struct {
	Body struct {
		Token string `json:"token"`
	}
}

// --- Register routes ---

func (h *Handler) RegisterRoutes(r chi.Router) {
	// Public
	r.Group(func(r chi.Router) {
		api := humachi.New(r, huma.DefaultConfig("wg-server admin API", "1.0.0"))

		huma.Register(api, huma.Operation{
			OperationID: "login",
			Method:      http.MethodPost,
			Path:        "/api/login",
			Summary:     "Exchange admin credentials for a bearer token",
		}, h.login)
	})

	// Bearer token
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(h.issuer))
		api := humachi.New(r, huma.DefaultConfig("wg-server admin API", "1.0.0"))

		huma.Register(api, huma.Operation{
			OperationID: "list-clients",
			Method:      http.MethodGet,
			Path:        "/api/clients",
			Summary:     "List clients",
		}, h.listClients)
		huma.Register(api, huma.Operation{
			OperationID:   "create-client",
			Method:        http.MethodPost,
			Path:          "/api/clients",
			Summary:       "Create client",
			DefaultStatus: http.StatusCreated,
		}, h.createClient)
		huma.Register(api, huma.Operation{
			OperationID: "get-client",
			Method:      http.MethodGet,
			Path:        "/api/clients/{id}",
			Summary:     "Get client",
		}, h.getClient)
		huma.Register(api, huma.Operation{
			OperationID: "update-client",
			Method:      http.MethodPatch,
			Path:        "/api/clients/{id}",
			Summary:     "Update client",
		}, h.updateClient)
		huma.Register(api, huma.Operation{
			OperationID:   "delete-client",
			Method:        http.MethodDelete,
			Path:          "/api/clients/{id}",
			Summary:       "Delete client",
			DefaultStatus: http.StatusNoContent,
		}, h.deleteClient)
		huma.Register(api, huma.Operation{
			OperationID: "get-server",
			Method:      http.MethodGet,
			Path:        "/api/server",
			Summary:     "Get server",
		}, h.getServer)
		huma.Register(api, huma.Operation{
			OperationID: "update-server",
			Method:      http.MethodPatch,
			Path:        "/api/server",
			Summary:     "Update server",
		}, h.updateServer)
		huma.Register(api, huma.Operation{
			OperationID: "reconcile",
			Method:      http.MethodPost,
			Path:        "/api/reconcile",
			Summary:     "Run a reconciliation pass now",
		}, h.reconcile)
		huma.Register(api, huma.Operation{
			OperationID: "list-passes",
			Method:      http.MethodGet,
			Path:        "/api/passes",
			Summary:     "List recent reconciliation passes",
		}, h.listPasses)
	})
}

// --- Handlers ---

func (h *Handler) login(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	token, err := h.issuer.Login(h.admin, input.Body.Username, input.Body.Password, auth.DefaultTTL)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			return nil, huma.Error401Unauthorized("invalid credentials")
		}
		return nil, toHumaError(err)
	}
	out := &LoginOutput{}
	out.Body.Token = token
	return out, nil
}

func (h *Handler) listClients(ctx context.Context, input *struct{}) (*ClientListOutput, error) {
	return &ClientListOutput{Body: h.reg.List()}, nil
}

func (h *Handler) createClient(ctx context.Context, input *CreateClientInput) (*ClientOutput, error) {
	c, err := h.reg.Create(ctx, input.Body)
	if err != nil {
		return nil, toHumaError(err)
	}
	h.audit(ctx, "create client", c.UUID)
	return &ClientOutput{Body: c}, nil
}

func (h *Handler) getClient(ctx context.Context, input *ClientIDInput) (*ClientOutput, error) {
	c, err := h.reg.Get(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &ClientOutput{Body: c}, nil
}

func (h *Handler) updateClient(ctx context.Context, input *UpdateClientInput) (*ClientOutput, error) {
	c, err := h.reg.Update(ctx, input.ID, input.Body)
	if err != nil {
		return nil, toHumaError(err)
	}
	h.audit(ctx, "update client", input.ID)
	return &ClientOutput{Body: c}, nil
}

func (h *Handler) deleteClient(ctx context.Context, input *ClientIDInput) (*struct{}, error) {
	if err := h.reg.Remove(ctx, input.ID); err != nil {
		return nil, toHumaError(err)
	}
	h.audit(ctx, "delete client", input.ID)
	return nil, nil
}

func (h *Handler) getServer(ctx context.Context, input *struct{}) (*ServerOutput, error) {
	return &ServerOutput{Body: h.reg.Server()}, nil
}

func (h *Handler) updateServer(ctx context.Context, input *UpdateServerInput) (*ServerOutput, error) {
	s, err := h.reg.UpdateServer(input.Body)
	if err != nil {
		return nil, toHumaError(err)
	}
	h.audit(ctx, "update server", s.InterfaceName)
	return &ServerOutput{Body: s}, nil
}

func (h *Handler) reconcile(ctx context.Context, input *struct{}) (*PassOutput, error) {
	h.audit(ctx, "run pass", "")
	// A pass is never cut short because the caller went away.
	res, err := h.passer.Pass(context.WithoutCancel(ctx))
	if err != nil {
		return nil, toHumaError(err)
	}
	return &PassOutput{Body: summarize(res)}, nil
}

func (h *Handler) listPasses(ctx context.Context, input *ListPassesInput) (*ListPassesOutput, error) {
	if h.passes == nil {
		return &ListPassesOutput{Body: []journal.Entry{}}, nil
	}
	entries, err := h.passes.List(ctx, input.Limit)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &ListPassesOutput{Body: entries}, nil
}

// audit logs an admin action together with the token subject that made it.
func (h *Handler) audit(ctx context.Context, action, target string) {
	fields := logrus.Fields{"action": action}
	if target != "" {
		fields["target"] = target
	}
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		fields["subject"] = claims.Subject
	}
	h.log.WithFields(fields).Info("admin action")
}

func summarize(res syncer.PassResult) PassSummary {
	out := PassSummary{
		StartedAt:         res.StartedAt,
		DurationMillis:    res.Duration.Milliseconds(),
		Added:             append([]string{}, res.Peers.Added...),
		Removed:           append([]string{}, res.Peers.Removed...),
		AccountChanges:    res.AccountChanges,
		ConnectionChanges: res.ConnectionChanges,
		Failures:          append([]string{}, res.Failures()...),
		Saved:             res.Saved,
	}
	if res.SaveErr != nil {
		out.SaveError = res.SaveErr.Error()
	}
	return out
}

func toHumaError(err error) error {
	if model.IsValidation(err) {
		return huma.Error400BadRequest(err.Error())
	}
	if model.IsNotFound(err) {
		return huma.Error404NotFound(err.Error())
	}
	if model.IsConflict(err) {
		return huma.Error409Conflict(err.Error())
	}
	if errors.Is(err, syncer.ErrPassInProgress) {
		return huma.Error409Conflict(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
