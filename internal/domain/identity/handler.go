package identity

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/middleware"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/platform/logger"
	"pet-vaccination-clinic/internal/ports/auth"
)

var errInvalidJSON = apperror.Validation("invalid_json", "invalid json")

// RegisterRoutes registra usuarios, perfiles y /me.
// issuer puede ser nil: en ese caso no se exponen /auth/token ni /auth/refresh.
func RegisterRoutes(r chi.Router, svc *Service, issuer auth.TokenIssuer, log logger.Logger) {
	r.Post("/users", signUpHandler(svc, log))
	r.Get("/users", listUsersHandler(svc, log))
	r.Get("/users/{userID}", getUserHandler(svc, log))
	r.Patch("/users/{userID}", updateUserHandler(svc, log))
	r.Delete("/users/{userID}", deleteUserHandler(svc, log))
	if issuer != nil {
		r.Post("/auth/token", tokenHandler(svc, issuer, log))
		r.Post("/auth/refresh", refreshHandler(svc, issuer, log))
	}
	r.Get("/me", meHandler(log))

	r.Post("/owners", createOwnerHandler(svc, log))
	r.Get("/owners", listOwnersHandler(svc, log))
	r.Get("/owners/{ownerID}", getOwnerHandler(svc, log))
	r.Patch("/owners/{ownerID}", updateOwnerHandler(svc, log))
	r.Delete("/owners/{ownerID}", deleteOwnerHandler(svc, log))

	r.Post("/staff", createStaffHandler(svc, log))
	r.Get("/staff", listStaffHandler(svc, log))
	r.Get("/staff/{staffID}", getStaffHandler(svc, log))
	r.Patch("/staff/{staffID}", updateStaffHandler(svc, log))
	r.Delete("/staff/{staffID}", deleteStaffHandler(svc, log))
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsStaff   bool      `json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type meResponse struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	IsStaff        bool   `json:"is_staff"`
	OwnerProfileID string `json:"owner_profile_id,omitempty"`
	StaffProfileID string `json:"staff_profile_id,omitempty"`
}

type ownerResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	NationalID string    `json:"national_id"`
	Address    string    `json:"address"`
	Phone      string    `json:"phone"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type staffResponse struct {
	ownerResponse
	JobTitle string `json:"job_title"`
}

// signUpHandler godoc
// @Summary Registrar usuario
// @Description Crea una cuenta. Cualquiera puede crear usuarios no-staff. Usuarios staff solo los crea otro staff (excepto el primero).
// @Tags identity
// @Accept json
// @Produce json
// @Param payload body SignUpInput true "Datos del usuario"
// @Success 201 {object} userResponse
// @Failure 400 {object} apperror.Error "invalid_input"
// @Failure 403 {object} apperror.Error "staff_only"
// @Failure 409 {object} apperror.Error "username_taken"
// @Router /users [post]
func signUpHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in SignUpInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		var caller *authz.Caller
		if c, ok := middleware.GetCaller(r.Context()); ok {
			caller = &c
		}

		u, err := svc.SignUp(r.Context(), caller, in)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toUserResponse(u))
	}
}

// @Summary Listar usuarios (staff)
// @Tags identity
// @Produce json
// @Success 200 {array} userResponse
// @Failure 403 {object} apperror.Error "staff_only"
// @Router /users [get]
func listUsersHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		items, err := svc.ListUsers(r.Context(), c)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		out := make([]userResponse, 0, len(items))
		for _, u := range items {
			out = append(out, toUserResponse(u))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getUserHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		u, err := svc.GetUser(r.Context(), c, chi.URLParam(r, "userID"))
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(u))
	}
}

// updateUserHandler godoc
// @Summary Editar usuario
// @Description Cada usuario edita su cuenta; staff edita cualquiera. Solo staff cambia is_staff.
// @Tags identity
// @Accept json
// @Produce json
// @Param userID path string true "ID del usuario"
// @Param payload body UserPatch true "Campos a cambiar"
// @Success 200 {object} userResponse
// @Failure 400 {object} apperror.Error "invalid_input / password_too_long"
// @Failure 403 {object} apperror.Error
// @Failure 409 {object} apperror.Error "username_taken"
// @Router /users/{userID} [patch]
func updateUserHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		var in UserPatch
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		u, err := svc.UpdateUser(r.Context(), c, chi.URLParam(r, "userID"), in)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(u))
	}
}

// @Summary Eliminar usuario (staff)
// @Description Falla con 409 mientras el usuario tenga perfil de dueño o de funcionario.
// @Tags identity
// @Param userID path string true "ID del usuario"
// @Success 204
// @Failure 409 {object} apperror.Error "protected_reference"
// @Router /users/{userID} [delete]
func deleteUserHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		if err := svc.DeleteUser(r.Context(), c, chi.URLParam(r, "userID")); err != nil {
			apperror.Write(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// tokenHandler godoc
// @Summary Obtener token de acceso
// @Tags identity
// @Accept json
// @Produce json
// @Param payload body tokenRequest true "Credenciales"
// @Success 200 {object} tokenResponse
// @Failure 401 {object} apperror.Error "invalid_credentials"
// @Router /auth/token [post]
func tokenHandler(svc *Service, issuer auth.TokenIssuer, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		u, err := svc.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}

		resp, err := issueTokens(r, issuer, u)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// refreshHandler godoc
// @Summary Renovar tokens
// @Description Canjea un refresh token por un access token nuevo y un refresh token nuevo. Los claims se recargan de la cuenta.
// @Tags identity
// @Accept json
// @Produce json
// @Param payload body refreshRequest true "Refresh token"
// @Success 200 {object} tokenResponse
// @Failure 401 {object} apperror.Error "invalid_refresh_token"
// @Router /auth/refresh [post]
func refreshHandler(svc *Service, issuer auth.TokenIssuer, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		userID, err := issuer.VerifyRefresh(r.Context(), req.RefreshToken)
		if err != nil {
			apperror.Write(w, log, ErrInvalidRefreshToken.Wrap(err))
			return
		}
		u, err := svc.RefreshUser(r.Context(), userID)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}

		resp, err := issueTokens(r, issuer, u)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func issueTokens(r *http.Request, issuer auth.TokenIssuer, u User) (tokenResponse, error) {
	tok, exp, err := issuer.Issue(r.Context(), auth.Claims{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		IsStaff:  u.IsStaff,
	})
	if err != nil {
		return tokenResponse{}, err
	}
	refresh, refreshExp, err := issuer.IssueRefresh(r.Context(), u.ID)
	if err != nil {
		return tokenResponse{}, err
	}
	return tokenResponse{
		AccessToken:      tok,
		TokenType:        "Bearer",
		ExpiresAt:        exp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// meHandler godoc
// @Summary Caller actual
// @Tags identity
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {object} meResponse
// @Failure 401 {object} apperror.Error "unauthorized"
// @Router /me [get]
func meHandler(log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}
		writeJSON(w, http.StatusOK, meResponse{
			UserID:         c.UserID,
			Username:       c.Username,
			IsStaff:        c.IsStaff,
			OwnerProfileID: c.OwnerProfileID,
			StaffProfileID: c.StaffProfileID,
		})
	}
}

// createOwnerHandler godoc
// @Summary Crear perfil de dueño
// @Description Un usuario crea su propio perfil (user_id vacío). Staff puede crearlo para cualquier usuario.
// @Tags owners
// @Accept json
// @Produce json
// @Param payload body ProfileInput true "Datos personales"
// @Success 201 {object} ownerResponse
// @Failure 400 {object} apperror.Error
// @Failure 403 {object} apperror.Error
// @Failure 409 {object} apperror.Error "profile_exists / national_id_taken"
// @Router /owners [post]
func createOwnerHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		var in ProfileInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		p, err := svc.CreateOwnerProfile(r.Context(), c, in)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toOwnerResponse(p))
	}
}

// @Summary Listar perfiles de dueño (staff)
// @Tags owners
// @Produce json
// @Success 200 {array} ownerResponse
// @Router /owners [get]
func listOwnersHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		items, err := svc.ListOwnerProfiles(r.Context(), c)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		out := make([]ownerResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toOwnerResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getOwnerHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		p, err := svc.GetOwnerProfile(r.Context(), c, chi.URLParam(r, "ownerID"))
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toOwnerResponse(p))
	}
}

// updateOwnerHandler godoc
// @Summary Editar perfil de dueño
// @Description El dueño edita su propio perfil; staff edita cualquiera. Campos ausentes no cambian.
// @Tags owners
// @Accept json
// @Produce json
// @Param ownerID path string true "ID del perfil"
// @Param payload body ProfilePatch true "Campos a cambiar"
// @Success 200 {object} ownerResponse
// @Failure 400 {object} apperror.Error
// @Failure 403 {object} apperror.Error
// @Failure 404 {object} apperror.Error
// @Failure 409 {object} apperror.Error "national_id_taken"
// @Router /owners/{ownerID} [patch]
func updateOwnerHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		var in ProfilePatch
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		p, err := svc.UpdateOwnerProfile(r.Context(), c, chi.URLParam(r, "ownerID"), in)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toOwnerResponse(p))
	}
}

// deleteOwnerHandler godoc
// @Summary Eliminar perfil de dueño (staff)
// @Description Falla con 409 mientras existan mascotas del dueño.
// @Tags owners
// @Param ownerID path string true "ID del perfil"
// @Success 204
// @Failure 403 {object} apperror.Error
// @Failure 404 {object} apperror.Error
// @Failure 409 {object} apperror.Error "protected_reference"
// @Router /owners/{ownerID} [delete]
func deleteOwnerHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		if err := svc.DeleteOwnerProfile(r.Context(), c, chi.URLParam(r, "ownerID")); err != nil {
			apperror.Write(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// createStaffHandler godoc
// @Summary Crear perfil de funcionario (staff)
// @Tags staff
// @Accept json
// @Produce json
// @Param payload body StaffProfileInput true "Datos personales + cargo"
// @Success 201 {object} staffResponse
// @Failure 400 {object} apperror.Error "invalid_input / user_not_staff"
// @Failure 403 {object} apperror.Error "staff_only"
// @Router /staff [post]
func createStaffHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		var in StaffProfileInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		p, err := svc.CreateStaffProfile(r.Context(), c, in)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toStaffResponse(p))
	}
}

func listStaffHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		items, err := svc.ListStaffProfiles(r.Context(), c)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		out := make([]staffResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toStaffResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getStaffHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		p, err := svc.GetStaffProfile(r.Context(), c, chi.URLParam(r, "staffID"))
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toStaffResponse(p))
	}
}

// @Summary Editar perfil de funcionario (staff)
// @Tags staff
// @Accept json
// @Produce json
// @Param staffID path string true "ID del perfil"
// @Param payload body StaffProfilePatch true "Campos a cambiar"
// @Success 200 {object} staffResponse
// @Router /staff/{staffID} [patch]
func updateStaffHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		var in StaffProfilePatch
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		p, err := svc.UpdateStaffProfile(r.Context(), c, chi.URLParam(r, "staffID"), in)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toStaffResponse(p))
	}
}

// @Summary Eliminar perfil de funcionario (staff)
// @Description Falla con 409 mientras existan vacunaciones aplicadas por el funcionario.
// @Tags staff
// @Param staffID path string true "ID del perfil"
// @Success 204
// @Router /staff/{staffID} [delete]
func deleteStaffHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		if err := svc.DeleteStaffProfile(r.Context(), c, chi.URLParam(r, "staffID")); err != nil {
			apperror.Write(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func toUserResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsStaff:   u.IsStaff,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toOwnerResponse(p OwnerProfile) ownerResponse {
	return ownerResponse{
		ID:         p.ID,
		UserID:     p.UserID,
		Name:       p.Name,
		NationalID: p.NationalID,
		Address:    p.Address,
		Phone:      p.Phone,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func toStaffResponse(p StaffProfile) staffResponse {
	return staffResponse{
		ownerResponse: ownerResponse{
			ID:         p.ID,
			UserID:     p.UserID,
			Name:       p.Name,
			NationalID: p.NationalID,
			Address:    p.Address,
			Phone:      p.Phone,
			CreatedAt:  p.CreatedAt,
			UpdatedAt:  p.UpdatedAt,
		},
		JobTitle: p.JobTitle,
	}
}

// writeJSON está duplicado en cada módulo (igual que en pets/vaccines/vaccinations).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
