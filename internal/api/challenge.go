package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/dailycase/internal/domain"
	"github.com/ashureev/dailycase/internal/gemini"
	"github.com/ashureev/dailycase/internal/generator"
	"github.com/ashureev/dailycase/internal/progress"
	"github.com/ashureev/dailycase/internal/recovery"
	"github.com/ashureev/dailycase/internal/store"
	"github.com/go-chi/chi/v5"
)

// ChallengeHandler serves challenge, submission and progress endpoints.
type ChallengeHandler struct {
	*Handler
	limiter *RateLimiter
}

// NewChallengeHandler creates a challenge handler. A nil limiter disables
// rate limiting.
func NewChallengeHandler(base *Handler, limiter *RateLimiter) *ChallengeHandler {
	return &ChallengeHandler{Handler: base, limiter: limiter}
}

// RegisterRoutes registers challenge routes.
func (h *ChallengeHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Put("/credential", h.PutCredential)
		r.Get("/progress", h.GetProgress)

		r.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(h.limiter.Middleware)
			}
			r.Get("/challenge", h.GetChallenge)
			r.Post("/feedback", h.PostFeedback)
			r.Post("/thread", h.PostThread)
		})
	})
}

type credentialRequest struct {
	Credential string `json:"credential"`
}

type submissionRequest struct {
	Offset         int    `json:"offset"`
	Analysis       string `json:"analysis"`
	Recommendation string `json:"recommendation"`
}

// GetConfig returns the server configuration for the frontend.
func (h *ChallengeHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	kv, ok := h.kv(w, r)
	if !ok {
		return
	}
	credential, _, err := kv.Get(r.Context(), store.CredentialKey)
	if err != nil {
		slog.Error("Failed to read credential", "error", err, "user_id", kv.Namespace())
		Error(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"has_credential": credential != "",
		"model":          h.model,
		"max_attempts":   h.gen.Policy().MaxAttempts,
	})
}

// PutCredential stores the user's model credential.
func (h *ChallengeHandler) PutCredential(w http.ResponseWriter, r *http.Request) {
	kv, ok := h.kv(w, r)
	if !ok {
		return
	}
	var req credentialRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	credential := strings.TrimSpace(req.Credential)
	if credential == "" {
		Error(w, http.StatusBadRequest, "credential is required")
		return
	}
	if err := kv.Set(r.Context(), store.CredentialKey, credential); err != nil {
		slog.Error("Failed to store credential", "error", err, "user_id", kv.Namespace())
		Error(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	slog.Info("Credential stored", "user_id", kv.Namespace())
	w.WriteHeader(http.StatusNoContent)
}

// GetChallenge returns the challenge for ?offset=N, generating it if needed.
func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	kv, ok := h.kv(w, r)
	if !ok {
		return
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			Error(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		offset = n
	}
	credential, ok := h.credential(w, r, kv)
	if !ok {
		return
	}

	ch, err := h.gen.Obtain(r.Context(), kv, offset, credential)
	if err != nil {
		writeGenerationError(w, err)
		return
	}
	JSON(w, http.StatusOK, ch)
}

// PostFeedback reviews a submission against the challenge it answers.
func (h *ChallengeHandler) PostFeedback(w http.ResponseWriter, r *http.Request) {
	kv, ch, sub, credential, ok := h.submission(w, r)
	if !ok {
		return
	}
	text, err := h.gen.Feedback(r.Context(), credential, ch, sub)
	if err != nil {
		slog.Warn("Feedback generation failed", "error", err, "user_id", kv.Namespace())
		writeGenerationError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"feedback": text})
}

// PostThread turns a submission into thread posts and records the completion.
func (h *ChallengeHandler) PostThread(w http.ResponseWriter, r *http.Request) {
	kv, ch, sub, credential, ok := h.submission(w, r)
	if !ok {
		return
	}
	res, err := h.gen.Thread(r.Context(), kv, credential, ch, sub)
	if err != nil {
		slog.Warn("Thread generation failed", "error", err, "user_id", kv.Namespace())
		writeGenerationError(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// GetProgress returns the user's streak and history.
func (h *ChallengeHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	kv, ok := h.kv(w, r)
	if !ok {
		return
	}
	p, err := progress.NewLedger(kv, nil).Snapshot(r.Context())
	if err != nil {
		slog.Error("Failed to read progress", "error", err, "user_id", kv.Namespace())
		Error(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	JSON(w, http.StatusOK, p)
}

func (h *ChallengeHandler) credential(w http.ResponseWriter, r *http.Request, kv store.KV) (string, bool) {
	credential, ok, err := kv.Get(r.Context(), store.CredentialKey)
	if err != nil {
		slog.Error("Failed to read credential", "error", err, "user_id", kv.Namespace())
		Error(w, http.StatusInternalServerError, "storage unavailable")
		return "", false
	}
	if !ok || credential == "" {
		Error(w, http.StatusPreconditionFailed, "missing_credential")
		return "", false
	}
	return credential, true
}

// submission decodes a submission body and resolves the challenge it answers.
func (h *ChallengeHandler) submission(w http.ResponseWriter, r *http.Request) (store.KV, *domain.Challenge, domain.Submission, string, bool) {
	var sub domain.Submission
	kv, ok := h.kv(w, r)
	if !ok {
		return nil, nil, sub, "", false
	}
	var req submissionRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return nil, nil, sub, "", false
	}
	sub = domain.Submission{
		Analysis:       strings.TrimSpace(req.Analysis),
		Recommendation: strings.TrimSpace(req.Recommendation),
	}
	if sub.Analysis == "" || sub.Recommendation == "" {
		Error(w, http.StatusBadRequest, "analysis and recommendation are required")
		return nil, nil, sub, "", false
	}
	credential, ok := h.credential(w, r, kv)
	if !ok {
		return nil, nil, sub, "", false
	}
	ch, err := h.gen.Obtain(r.Context(), kv, req.Offset, credential)
	if err != nil {
		writeGenerationError(w, err)
		return nil, nil, sub, "", false
	}
	return kv, ch, sub, credential, true
}

// writeGenerationError maps pipeline errors onto responses.
func writeGenerationError(w http.ResponseWriter, err error) {
	var (
		failed    *generator.GenerationFailed
		svcErr    *gemini.ServiceError
		malformed *recovery.MalformedResponse
	)
	switch {
	case errors.As(err, &failed):
		JSON(w, http.StatusBadGateway, map[string]any{
			"error":     failed.Message(),
			"attempts":  failed.Attempts,
			"retryable": true,
		})
	case errors.As(err, &svcErr):
		JSON(w, http.StatusBadGateway, map[string]any{
			"error":          svcErr.Message,
			"service_status": svcErr.Status,
			"retryable":      true,
		})
	case errors.As(err, &malformed):
		JSON(w, http.StatusBadGateway, map[string]any{
			"error":     malformed.Error(),
			"retryable": true,
		})
	default:
		slog.Error("Unexpected generation error", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
