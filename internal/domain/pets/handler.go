package pets

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/middleware"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/platform/dates"
	"pet-vaccination-clinic/internal/platform/logger"
)

var (
	errInvalidJSON      = apperror.Validation("invalid_json", "invalid json")
	errInvalidBirthDate = apperror.Validation("invalid_birth_date", "birth_date must be YYYY-MM-DD or null")
)

func RegisterRoutes(r chi.Router, svc *Service, log logger.Logger) {
	r.Get("/pets", listPetsHandler(svc, log))
	r.Post("/pets", createPetHandler(svc, log))
	r.Get("/pets/{petID}", getPetHandler(svc, log))
	r.Patch("/pets/{petID}", updatePetHandler(svc, log))
	r.Delete("/pets/{petID}", deletePetHandler(svc, log))
}

type createPetRequest struct {
	OwnerID   string  `json:"owner_id"` // opcional: por defecto el perfil del caller
	Name      string  `json:"name"`
	Species   string  `json:"species"`
	Breed     string  `json:"breed"`
	Weight    float64 `json:"weight"`
	BirthDate string  `json:"birth_date"` // YYYY-MM-DD opcional
}

type updatePetRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name    *string  `json:"name"`
	Species *string  `json:"species"`
	Breed   *string  `json:"breed"`
	Weight  *float64 `json:"weight"`
}

type petResponse struct {
	ID            string                `json:"id"`
	OwnerID       string                `json:"owner_id"`
	OwnerName     string                `json:"owner_name"`
	Name          string                `json:"name"`
	Species       string                `json:"species"`
	Breed         string                `json:"breed"`
	Weight        float64               `json:"weight"`
	BirthDate     *dates.Date           `json:"birth_date"`
	AgeInDays     *int                  `json:"age_in_days"`
	AgeInYears    *int                  `json:"age_in_years"`
	UpcomingDoses []upcomingDoseResponse `json:"upcoming_doses"`
	OverdueDoses  []overdueDoseResponse  `json:"overdue_doses"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

type upcomingDoseResponse struct {
	RecordID      string     `json:"record_id"`
	VaccineName   string     `json:"vaccine_name"`
	NextDoseOn    dates.Date `json:"next_dose_on"`
	DaysRemaining int        `json:"days_remaining"`
}

type overdueDoseResponse struct {
	RecordID    string     `json:"record_id"`
	VaccineName string     `json:"vaccine_name"`
	NextDoseOn  dates.Date `json:"next_dose_on"`
	DaysOverdue int        `json:"days_overdue"`
}

// listPetsHandler godoc
// @Summary Listar mascotas
// @Description Staff ve todas las mascotas. Un dueño solo las propias; sin perfil de dueño responde 403 owner_profile_not_found.
// @Tags pets
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} petResponse
// @Failure 401 {object} apperror.Error
// @Failure 403 {object} apperror.Error
// @Router /pets [get]
func listPetsHandler(svc *Service, log logger.Logger) http.HandlerFunc {
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
		views, err := svc.DescribeAll(r.Context(), items)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}

		today := svc.Today()
		out := make([]petResponse, 0, len(views))
		for _, v := range views {
			out = append(out, toPetResponse(v, today))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// createPetHandler godoc
// @Summary Crear mascota
// @Description Un dueño crea mascotas solo para sí mismo (owner_id omitido o igual al propio). Staff puede indicar cualquier owner_id.
// @Tags pets
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createPetRequest true "Datos de la mascota; birth_date en formato YYYY-MM-DD"
// @Success 201 {object} petResponse
// @Failure 400 {object} apperror.Error "invalid_json / invalid_weight / invalid_input"
// @Failure 401 {object} apperror.Error
// @Failure 403 {object} apperror.Error "not_owner / owner_profile_not_found"
// @Failure 404 {object} apperror.Error "owner_not_found"
// @Router /pets [post]
func createPetHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		var req createPetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		bd, err := dates.ParsePtr(req.BirthDate)
		if err != nil {
			apperror.Write(w, log, errInvalidBirthDate)
			return
		}

		p, err := svc.Create(r.Context(), c, CreateInput{
			OwnerID:   req.OwnerID,
			Name:      req.Name,
			Species:   req.Species,
			Breed:     req.Breed,
			Weight:    req.Weight,
			BirthDate: bd,
		})
		if err != nil {
			apperror.Write(w, log, err)
			return
		}

		writePet(w, r, svc, log, http.StatusCreated, p)
	}
}

// @Summary Perfil de mascota
// @Tags pets
// @Produce json
// @Param petID path string true "ID de la mascota"
// @Success 200 {object} petResponse
// @Failure 403 {object} apperror.Error
// @Failure 404 {object} apperror.Error
// @Router /pets/{petID} [get]
func getPetHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		p, err := svc.Get(r.Context(), c, chi.URLParam(r, "petID"))
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writePet(w, r, svc, log, http.StatusOK, p)
	}
}

// updatePetHandler godoc
// @Summary Actualizar mascota (parcial)
// @Description PATCH: solo se modifican los campos enviados. "birth_date": null limpia la fecha.
// @Tags pets
// @Accept json
// @Produce json
// @Param petID path string true "ID de la mascota"
// @Param payload body updatePetRequest true "Campos a modificar"
// @Success 200 {object} petResponse
// @Failure 400 {object} apperror.Error
// @Failure 403 {object} apperror.Error
// @Failure 404 {object} apperror.Error
// @Router /pets/{petID} [patch]
func updatePetHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		// Decodificamos a map primero para detectar presencia de birth_date (null = limpiar).
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		var req updatePetRequest
		b, _ := json.Marshal(raw)
		if err := json.Unmarshal(b, &req); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		var bd BirthDatePatch
		if v, exists := raw["birth_date"]; exists {
			bd.Present = true
			if string(v) != "null" {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					apperror.Write(w, log, errInvalidBirthDate)
					return
				}
				t, err := dates.ParsePtr(s)
				if err != nil {
					apperror.Write(w, log, errInvalidBirthDate)
					return
				}
				bd.Value = t
			}
		}

		p, err := svc.Update(r.Context(), c, chi.URLParam(r, "petID"), UpdateInput{
			Name:      req.Name,
			Species:   req.Species,
			Breed:     req.Breed,
			Weight:    req.Weight,
			BirthDate: bd,
		})
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writePet(w, r, svc, log, http.StatusOK, p)
	}
}

// @Summary Eliminar mascota
// @Description Falla con 409 protected_reference mientras la mascota tenga vacunaciones registradas.
// @Tags pets
// @Param petID path string true "ID de la mascota"
// @Success 204
// @Failure 403 {object} apperror.Error
// @Failure 404 {object} apperror.Error
// @Failure 409 {object} apperror.Error
// @Router /pets/{petID} [delete]
func deletePetHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		if err := svc.Delete(r.Context(), c, chi.URLParam(r, "petID")); err != nil {
			apperror.Write(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writePet(w http.ResponseWriter, r *http.Request, svc *Service, log logger.Logger, status int, p Pet) {
	v, err := svc.Describe(r.Context(), p)
	if err != nil {
		apperror.Write(w, log, err)
		return
	}
	writeJSON(w, status, toPetResponse(v, svc.Today()))
}

func toPetResponse(v View, today time.Time) petResponse {
	out := petResponse{
		ID:            v.ID,
		OwnerID:       v.OwnerID,
		OwnerName:     v.OwnerName,
		Name:          v.Name,
		Species:       v.Species,
		Breed:         v.Breed,
		Weight:        v.Weight,
		BirthDate:     dates.Ptr(v.BirthDate),
		AgeInDays:     v.AgeInDays(today),
		AgeInYears:    v.AgeInYears(today),
		UpcomingDoses: make([]upcomingDoseResponse, 0, len(v.Upcoming)),
		OverdueDoses:  make([]overdueDoseResponse, 0, len(v.Overdue)),
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
	for _, d := range v.Upcoming {
		out.UpcomingDoses = append(out.UpcomingDoses, upcomingDoseResponse{
			RecordID:      d.RecordID,
			VaccineName:   d.VaccineName,
			NextDoseOn:    dates.Date(d.NextDoseOn),
			DaysRemaining: d.Days,
		})
	}
	for _, d := range v.Overdue {
		out.OverdueDoses = append(out.OverdueDoses, overdueDoseResponse{
			RecordID:    d.RecordID,
			VaccineName: d.VaccineName,
			NextDoseOn:  dates.Date(d.NextDoseOn),
			DaysOverdue: d.Days,
		})
	}
	return out
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
