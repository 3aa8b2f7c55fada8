package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/catalog"
	"github.com/org/jitaccess/internal/policydoc"
	"github.com/org/jitaccess/pkg/models"
)

type environmentSummary struct {
	Name string `json:"name"`
}

// ListEnvironmentsHandler handles GET /environments.
func (s *Server) ListEnvironmentsHandler(w http.ResponseWriter, r *http.Request) {
	names, err := s.catalog.Environments(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]environmentSummary, 0, len(names))
	for _, n := range names {
		out = append(out, environmentSummary{Name: n})
	}
	writeJSON(w, http.StatusOK, out)
}

type systemSummary struct {
	Name string `json:"name"`
}

type environmentDetail struct {
	Name      string          `json:"name"`
	CanExport bool            `json:"can_export"`
	Systems   []systemSummary `json:"systems"`
}

// GetEnvironmentHandler handles GET /environments/{env}.
func (s *Server) GetEnvironmentHandler(w http.ResponseWriter, r *http.Request) {
	subject, _ := subjectFromCtx(r.Context())
	env, err := s.catalog.Environment(r.Context(), subject, chi.URLParam(r, "env"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	detail := environmentDetail{Name: env.Name(), CanExport: env.CanExport()}
	for _, sys := range env.Systems() {
		detail.Systems = append(detail.Systems, systemSummary{Name: sys.Name()})
	}
	writeJSON(w, http.StatusOK, detail)
}

// ExportPolicyHandler handles GET /environments/{env}/policy.
func (s *Server) ExportPolicyHandler(w http.ResponseWriter, r *http.Request) {
	subject, _ := subjectFromCtx(r.Context())
	env, err := s.catalog.Environment(r.Context(), subject, chi.URLParam(r, "env"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	text, err := env.Export()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text)) //nolint:errcheck
}

type reconciliationStatusBody struct {
	Name         string            `json:"name"`
	CanReconcile bool              `json:"can_reconcile"`
	Reconciled   int               `json:"reconciled,omitempty"`
	Orphaned     []string          `json:"orphaned,omitempty"`
	NonCompliant map[string]string `json:"non_compliant,omitempty"`
}

// ReconciliationStatusHandler handles GET /environments/{env}/status. When
// the subject may trigger reconciliation, it walks every group in the
// environment, reconciling each against the IdP and reporting per-group
// compliance; otherwise it reports only that reconciliation is unavailable
// to this subject.
func (s *Server) ReconciliationStatusHandler(w http.ResponseWriter, r *http.Request) {
	subject, _ := subjectFromCtx(r.Context())
	env, err := s.catalog.Environment(r.Context(), subject, chi.URLParam(r, "env"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !env.CanReconcile() {
		writeJSON(w, http.StatusOK, reconciliationStatusBody{Name: env.Name(), CanReconcile: false})
		return
	}

	allGroupKeys, err := s.idpClient.ListGroups(r.Context())
	if err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.KindTransport, err, "listing idp groups"))
		return
	}

	report := s.provisioner.Reconcile(r.Context(), env.Policy(), allGroupKeys)

	body := reconciliationStatusBody{
		Name:         env.Name(),
		CanReconcile: true,
		Reconciled:   report.Reconciled,
	}
	for _, key := range report.Orphaned {
		body.Orphaned = append(body.Orphaned, string(key))
	}
	if len(report.NonCompliant) > 0 {
		body.NonCompliant = make(map[string]string, len(report.NonCompliant))
		for id, cause := range report.NonCompliant {
			body.NonCompliant[id.String()] = cause.Error()
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type groupSummary struct {
	ID string `json:"id"`
}

type systemDetail struct {
	Name   string         `json:"name"`
	Groups []groupSummary `json:"groups"`
}

// GetSystemHandler handles GET /environments/{env}/systems/{sys}.
func (s *Server) GetSystemHandler(w http.ResponseWriter, r *http.Request) {
	subject, _ := subjectFromCtx(r.Context())
	env, err := s.catalog.Environment(r.Context(), subject, chi.URLParam(r, "env"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	sys, err := env.System(chi.URLParam(r, "sys"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	detail := systemDetail{Name: sys.Name()}
	for _, g := range sys.Groups() {
		detail.Groups = append(detail.Groups, groupSummary{ID: g.ID().String()})
	}
	writeJSON(w, http.StatusOK, detail)
}

type groupDetail struct {
	ID                string  `json:"id"`
	Description       string  `json:"description"`
	ActiveMembership  bool    `json:"active_membership"`
	ActiveExpiry      *string `json:"active_expiry,omitempty"`
}

func (s *Server) group(r *http.Request) (*catalog.JitGroupView, models.Subject, error) {
	subj, _ := subjectFromCtx(r.Context())
	env, err := s.catalog.Environment(r.Context(), subj, chi.URLParam(r, "env"))
	if err != nil {
		return nil, subj, err
	}
	sys, err := env.System(chi.URLParam(r, "sys"))
	if err != nil {
		return nil, subj, err
	}
	group, err := sys.Group(chi.URLParam(r, "name"))
	return group, subj, err
}

// GetGroupHandler handles GET .../groups/{name}.
func (s *Server) GetGroupHandler(w http.ResponseWriter, r *http.Request) {
	group, _, err := s.group(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	detail := groupDetail{ID: group.ID().String(), Description: group.Description()}
	if membership, ok := group.ActiveMembership(); ok {
		detail.ActiveMembership = true
		expiry := membership.Expiry.Format(time.RFC3339)
		detail.ActiveExpiry = &expiry
	}
	writeJSON(w, http.StatusOK, detail)
}

type joinRequestBody struct {
	Input     map[string]string `json:"input"`
	Assignees []string          `json:"assignees,omitempty"`
}

type joinResponseBody struct {
	Status    string `json:"status"` // "executed" | "deferred"
	Expiry    string `json:"expiry,omitempty"`
	Token     string `json:"token,omitempty"`
}

// JoinGroupHandler handles POST .../groups/{name}: proposes the join,
// populates its input properties from the request body, and either
// executes it immediately (self-approvable) or issues a deferral token
// addressed to the request's assignees.
func (s *Server) JoinGroupHandler(w http.ResponseWriter, r *http.Request) {
	group, subj, err := s.group(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var body joinRequestBody
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			s.writeError(w, apperrors.InvalidInput("body", "could not parse request body"))
			return
		}
	}

	op := group.Join()
	for _, prop := range op.Input() {
		raw, ok := body.Input[prop.Name]
		if !ok {
			continue
		}
		if err := prop.Set(raw); err != nil {
			s.writeError(w, apperrors.InvalidInput(prop.Name, err.Error()))
			return
		}
	}

	if op.RequiresApproval() {
		if err := op.VerifyForApproval(); err != nil {
			joinAttemptsTotal.WithLabelValues("denied").Inc()
			s.writeError(w, err)
			return
		}
		joinAttemptsTotal.WithLabelValues("deferred").Inc()
		token, err := s.deferral.Defer(op.GroupID(), subj.User.Value, body.Assignees, op.Input())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, joinResponseBody{Status: "deferred", Token: token})
		return
	}

	principal, err := op.Execute(r.Context())
	if err != nil {
		joinAttemptsTotal.WithLabelValues("denied").Inc()
		s.writeError(w, err)
		return
	}
	joinAttemptsTotal.WithLabelValues("self_approved").Inc()
	writeJSON(w, http.StatusOK, joinResponseBody{Status: "executed", Expiry: principal.Expiry.Format(time.RFC3339)})
}

type lintRequestBody struct {
	Document string `json:"document"`
}

// LintPolicyHandler handles POST /lint: validates a policy document
// without requiring it be registered as any environment's source.
func (s *Server) LintPolicyHandler(w http.ResponseWriter, r *http.Request) {
	var body lintRequestBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, apperrors.InvalidInput("body", "could not parse request body"))
		return
	}
	issues, err := policydoc.Lint(body.Document)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"issues": issues, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}
