package vaccines

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/middleware"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/platform/logger"
)

var errInvalidJSON = apperror.Validation("invalid_json", "invalid json")

func RegisterRoutes(r chi.Router, svc *Service, log logger.Logger) {
	r.Get("/vaccines", listVaccinesHandler(svc, log))
	r.Post("/vaccines", createVaccineHandler(svc, log))
	r.Get("/vaccines/{vaccineID}", getVaccineHandler(svc, log))
	r.Patch("/vaccines/{vaccineID}", updateVaccineHandler(svc, log))
	r.Delete("/vaccines/{vaccineID}", deleteVaccineHandler(svc, log))
}

type updateVaccineRequest struct {
	Name             *string  `json:"name"`
	Manufacturer     *string  `json:"manufacturer"`
	Price            *float64 `json:"price"`
	DoseIntervalDays *int     `json:"dose_interval_days"`
	Description      *string  `json:"description"`
}

type vaccineResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Manufacturer     string    `json:"manufacturer"`
	Price            float64   `json:"price"`
	DoseIntervalDays int       `json:"dose_interval_days"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// @Summary Catálogo de vacunas
// @Tags vaccines
// @Produce json
// @Success 200 {array} vaccineResponse
// @Failure 401 {object} apperror.Error
// @Router /vaccines [get]
func listVaccinesHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		items, err := svc.List(r.Context(), c)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		out := make([]vaccineResponse, 0, len(items))
		for _, v := range items {
			out = append(out, toVaccineResponse(v))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// createVaccineHandler godoc
// @Summary Crear vacuna (staff)
// @Description Agrega una vacuna al catálogo. price > 0 y dose_interval_days > 0.
// @Tags vaccines
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body CreateInput true "Datos de la vacuna"
// @Success 201 {object} vaccineResponse
// @Failure 400 {object} apperror.Error "invalid_price / invalid_dose_interval / invalid_input"
// @Failure 403 {object} apperror.Error "staff_only"
// @Router /vaccines [post]
func createVaccineHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		var in CreateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		v, err := svc.Create(r.Context(), c, in)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toVaccineResponse(v))
	}
}

func getVaccineHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		v, err := svc.Get(r.Context(), c, chi.URLParam(r, "vaccineID"))
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toVaccineResponse(v))
	}
}

// @Summary Actualizar vacuna (staff)
// @Description No recalcula la próxima dosis de vacunaciones ya registradas.
// @Tags vaccines
// @Accept json
// @Produce json
// @Param vaccineID path string true "ID de la vacuna"
// @Param payload body updateVaccineRequest true "Campos a modificar"
// @Success 200 {object} vaccineResponse
// @Router /vaccines/{vaccineID} [patch]
func updateVaccineHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		var req updateVaccineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		v, err := svc.Update(r.Context(), c, chi.URLParam(r, "vaccineID"), UpdateInput(req))
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toVaccineResponse(v))
	}
}

func deleteVaccineHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		if err := svc.Delete(r.Context(), c, chi.URLParam(r, "vaccineID")); err != nil {
			apperror.Write(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func toVaccineResponse(v Vaccine) vaccineResponse {
	return vaccineResponse{
		ID:               v.ID,
		Name:             v.Name,
		Manufacturer:     v.Manufacturer,
		Price:            v.Price,
		DoseIntervalDays: v.DoseIntervalDays,
		Description:      v.Description,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
