package vaccinations

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/middleware"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/platform/dates"
	"pet-vaccination-clinic/internal/platform/logger"
)

var (
	errInvalidJSON = apperror.Validation("invalid_json", "invalid json")
	errInvalidDate = apperror.Validation("invalid_date", "dates must be YYYY-MM-DD")
)

func RegisterRoutes(r chi.Router, svc *Service, log logger.Logger) {
	r.Get("/vaccinations", listRecordsHandler(svc, log))
	r.Post("/vaccinations", recordVaccinationHandler(svc, log))
	r.Get("/vaccinations/{recordID}", getRecordHandler(svc, log))
	r.Patch("/vaccinations/{recordID}", updateRecordHandler(svc, log))
	r.Delete("/vaccinations/{recordID}", deleteRecordHandler(svc, log))

	// Sub-vistas por mascota
	r.Get("/pets/{petID}/vaccinations", historyHandler(svc, log))
	r.Get("/pets/{petID}/upcoming-doses", upcomingHandler(svc, log))
	r.Get("/pets/{petID}/overdue-doses", overdueHandler(svc, log))

	// Reportes globales (staff)
	r.Get("/reports/upcoming", systemUpcomingHandler(svc, log))
	r.Get("/reports/overdue", systemOverdueHandler(svc, log))
}

type recordRequest struct {
	PetID          string `json:"pet_id"`
	VaccineID      string `json:"vaccine_id"`
	AdministeredBy string `json:"administered_by"` // opcional: perfil staff del caller
	AppliedOn      string `json:"applied_on"`      // YYYY-MM-DD
	NextDoseOn     string `json:"next_dose_on"`    // YYYY-MM-DD opcional; si falta se calcula
	Batch          string `json:"batch"`
	Notes          string `json:"notes"`
}

type updateRecordRequest struct {
	AppliedOn *string `json:"applied_on"`
	Batch     *string `json:"batch"`
	Notes     *string `json:"notes"`
}

type recordResponse struct {
	ID                 string      `json:"id"`
	PetID              string      `json:"pet_id"`
	PetName            string      `json:"pet_name"`
	VaccineID          string      `json:"vaccine_id"`
	VaccineName        string      `json:"vaccine_name"`
	AdministeredBy     string      `json:"administered_by"`
	AdministeredByName string      `json:"administered_by_name"`
	AppliedOn          dates.Date  `json:"applied_on"`
	NextDoseOn         *dates.Date `json:"next_dose_on"`
	Batch              string      `json:"batch"`
	Notes              string      `json:"notes"`
	IsOverdue          bool        `json:"is_overdue"`
	Status             Status      `json:"status"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

type upcomingResponse struct {
	RecordID      string     `json:"record_id"`
	VaccineName   string     `json:"vaccine_name"`
	NextDoseOn    dates.Date `json:"next_dose_on"`
	DaysRemaining int        `json:"days_remaining"`
}

type overdueResponse struct {
	RecordID    string     `json:"record_id"`
	VaccineName string     `json:"vaccine_name"`
	NextDoseOn  dates.Date `json:"next_dose_on"`
	DaysOverdue int        `json:"days_overdue"`
}

type reportUpcomingResponse struct {
	RecordID      string     `json:"record_id"`
	PetID         string     `json:"pet_id"`
	PetName       string     `json:"pet_name"`
	OwnerID       string     `json:"owner_id"`
	OwnerName     string     `json:"owner_name"`
	VaccineName   string     `json:"vaccine_name"`
	NextDoseOn    dates.Date `json:"next_dose_on"`
	DaysRemaining int        `json:"days_remaining"`
}

type reportOverdueResponse struct {
	RecordID    string     `json:"record_id"`
	PetID       string     `json:"pet_id"`
	PetName     string     `json:"pet_name"`
	OwnerID     string     `json:"owner_id"`
	OwnerName   string     `json:"owner_name"`
	VaccineName string     `json:"vaccine_name"`
	NextDoseOn  dates.Date `json:"next_dose_on"`
	DaysOverdue int        `json:"days_overdue"`
}

// @Summary Listar vacunaciones
// @Description Staff ve todas; un dueño solo las de sus mascotas.
// @Tags vaccinations
// @Produce json
// @Success 200 {array} recordResponse
// @Router /vaccinations [get]
func listRecordsHandler(svc *Service, log logger.Logger) http.HandlerFunc {
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
		writeJSON(w, http.StatusOK, toRecordResponses(svc, items))
	}
}

// recordVaccinationHandler godoc
// @Summary Registrar vacunación (staff)
// @Description Registra la aplicación de una vacuna. Si next_dose_on no viene se calcula como applied_on + intervalo de la vacuna, una sola vez. applied_on no puede ser futura.
// @Tags vaccinations
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body recordRequest true "Datos de la aplicación; fechas YYYY-MM-DD"
// @Success 201 {object} recordResponse
// @Failure 400 {object} apperror.Error "future_application_date / invalid_reference / invalid_input"
// @Failure 401 {object} apperror.Error
// @Failure 403 {object} apperror.Error "staff_only"
// @Router /vaccinations [post]
func recordVaccinationHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		var req recordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		var applied time.Time
		if strings.TrimSpace(req.AppliedOn) != "" {
			t, err := dates.Parse(req.AppliedOn)
			if err != nil {
				apperror.Write(w, log, errInvalidDate)
				return
			}
			applied = t
		}
		next, err := dates.ParsePtr(req.NextDoseOn)
		if err != nil {
			apperror.Write(w, log, errInvalidDate)
			return
		}

		d, err := svc.Record(r.Context(), c, RecordInput{
			PetID:          req.PetID,
			VaccineID:      req.VaccineID,
			AdministeredBy: req.AdministeredBy,
			AppliedOn:      applied,
			NextDoseOn:     next,
			Batch:          req.Batch,
			Notes:          req.Notes,
		})
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRecordResponse(svc, d))
	}
}

// getRecordHandler godoc
// @Summary Detalle de vacunación
// @Description Incluye vaccination_status (up_to_date, due_soon, overdue, undefined) evaluado hoy.
// @Tags vaccinations
// @Produce json
// @Param recordID path string true "ID del registro"
// @Success 200 {object} recordResponse
// @Failure 403 {object} apperror.Error
// @Failure 404 {object} apperror.Error
// @Router /vaccinations/{recordID} [get]
func getRecordHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		d, err := svc.Get(r.Context(), c, chi.URLParam(r, "recordID"))
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecordResponse(svc, d))
	}
}

// @Summary Actualizar vacunación (staff)
// @Description "next_dose_on": null quita la próxima dosis.
// @Tags vaccinations
// @Accept json
// @Produce json
// @Param recordID path string true "ID del registro"
// @Param payload body updateRecordRequest true "Campos a modificar"
// @Success 200 {object} recordResponse
// @Router /vaccinations/{recordID} [patch]
func updateRecordHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		// raw distingue next_dose_on ausente de next_dose_on: null
		body, err := io.ReadAll(r.Body)
		if err != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}
		var raw map[string]json.RawMessage
		var req updateRecordRequest
		if json.Unmarshal(body, &raw) != nil || json.Unmarshal(body, &req) != nil {
			apperror.Write(w, log, errInvalidJSON)
			return
		}

		in := UpdateInput{Batch: req.Batch, Notes: req.Notes}
		if req.AppliedOn != nil {
			t, err := dates.Parse(*req.AppliedOn)
			if err != nil {
				apperror.Write(w, log, errInvalidDate)
				return
			}
			in.AppliedOn = &t
		}
		if v, exists := raw["next_dose_on"]; exists {
			in.NextDoseOn.Present = true
			if string(v) != "null" {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					apperror.Write(w, log, errInvalidDate)
					return
				}
				t, err := dates.ParsePtr(s)
				if err != nil {
					apperror.Write(w, log, errInvalidDate)
					return
				}
				in.NextDoseOn.Value = t
			}
		}

		d, err := svc.Update(r.Context(), c, chi.URLParam(r, "recordID"), in)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecordResponse(svc, d))
	}
}

func deleteRecordHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		if err := svc.Delete(r.Context(), c, chi.URLParam(r, "recordID")); err != nil {
			apperror.Write(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// @Summary Historial de vacunación de una mascota
// @Tags vaccinations
// @Produce json
// @Param petID path string true "ID de la mascota"
// @Success 200 {array} recordResponse
// @Router /pets/{petID}/vaccinations [get]
func historyHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		items, err := svc.History(r.Context(), c, chi.URLParam(r, "petID"))
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecordResponses(svc, items))
	}
}

// upcomingHandler godoc
// @Summary Próximas dosis de una mascota
// @Description Registros con next_dose_on >= hoy, en el orden del historial (aplicación más reciente primero).
// @Tags vaccinations
// @Produce json
// @Param petID path string true "ID de la mascota"
// @Success 200 {array} upcomingResponse
// @Failure 403 {object} apperror.Error
// @Failure 404 {object} apperror.Error
// @Router /pets/{petID}/upcoming-doses [get]
func upcomingHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		items, err := svc.Upcoming(r.Context(), c, chi.URLParam(r, "petID"))
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		out := make([]upcomingResponse, 0, len(items))
		for _, u := range items {
			out = append(out, upcomingResponse{
				RecordID:      u.RecordID,
				VaccineName:   u.VaccineName,
				NextDoseOn:    dates.Date(u.NextDoseOn),
				DaysRemaining: u.DaysRemaining,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// @Summary Dosis vencidas de una mascota
// @Tags vaccinations
// @Produce json
// @Param petID path string true "ID de la mascota"
// @Success 200 {array} overdueResponse
// @Router /pets/{petID}/overdue-doses [get]
func overdueHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		items, err := svc.Overdue(r.Context(), c, chi.URLParam(r, "petID"))
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		out := make([]overdueResponse, 0, len(items))
		for _, o := range items {
			out = append(out, overdueResponse{
				RecordID:    o.RecordID,
				VaccineName: o.VaccineName,
				NextDoseOn:  dates.Date(o.NextDoseOn),
				DaysOverdue: o.DaysOverdue,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// systemUpcomingHandler godoc
// @Summary Reporte de próximas dosis (staff)
// @Description Todas las dosis con next_dose_on entre hoy y hoy+days (inclusive), ordenadas por fecha.
// @Tags reports
// @Produce json
// @Param days query int false "Ventana en días. Por defecto UPCOMING_REPORT_DAYS (7)"
// @Success 200 {array} reportUpcomingResponse
// @Failure 400 {object} apperror.Error "invalid_days"
// @Failure 403 {object} apperror.Error "staff_only"
// @Router /reports/upcoming [get]
func systemUpcomingHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		days := svc.ReportDays()
		if v := strings.TrimSpace(r.URL.Query().Get("days")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				apperror.Write(w, log, ErrInvalidDays)
				return
			}
			days = n
		}

		items, err := svc.SystemUpcoming(r.Context(), c, days)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		out := make([]reportUpcomingResponse, 0, len(items))
		for _, e := range items {
			out = append(out, reportUpcomingResponse{
				RecordID:      e.RecordID,
				PetID:         e.PetID,
				PetName:       e.PetName,
				OwnerID:       e.OwnerID,
				OwnerName:     e.OwnerName,
				VaccineName:   e.VaccineName,
				NextDoseOn:    dates.Date(e.NextDoseOn),
				DaysRemaining: e.Days,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// @Summary Reporte de dosis vencidas (staff)
// @Tags reports
// @Produce json
// @Success 200 {array} reportOverdueResponse
// @Failure 403 {object} apperror.Error "staff_only"
// @Router /reports/overdue [get]
func systemOverdueHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := middleware.GetCaller(r.Context())
		if !ok {
			apperror.Write(w, log, authz.ErrUnauthenticatedCaller)
			return
		}

		items, err := svc.SystemOverdue(r.Context(), c)
		if err != nil {
			apperror.Write(w, log, err)
			return
		}
		out := make([]reportOverdueResponse, 0, len(items))
		for _, e := range items {
			out = append(out, reportOverdueResponse{
				RecordID:    e.RecordID,
				PetID:       e.PetID,
				PetName:     e.PetName,
				OwnerID:     e.OwnerID,
				OwnerName:   e.OwnerName,
				VaccineName: e.VaccineName,
				NextDoseOn:  dates.Date(e.NextDoseOn),
				DaysOverdue: e.Days,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toRecordResponses(svc *Service, items []Detail) []recordResponse {
	out := make([]recordResponse, 0, len(items))
	for _, d := range items {
		out = append(out, toRecordResponse(svc, d))
	}
	return out
}

func toRecordResponse(svc *Service, d Detail) recordResponse {
	return recordResponse{
		ID:                 d.ID,
		PetID:              d.PetID,
		PetName:            d.PetName,
		VaccineID:          d.VaccineID,
		VaccineName:        d.VaccineName,
		AdministeredBy:     d.AdministeredBy,
		AdministeredByName: d.AdministeredByName,
		AppliedOn:          dates.Date(d.AppliedOn),
		NextDoseOn:         dates.Ptr(d.NextDoseOn),
		Batch:              d.Batch,
		Notes:              d.Notes,
		IsOverdue:          IsOverdue(d.Record, svc.Today()),
		Status:             svc.Status(d.Record),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
