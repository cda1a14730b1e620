package api

import (
	"net/http"
	"strconv"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/logging"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/metrics"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

// CreateAdmin создает администратора
// POST /api/v1/admin/admins
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req users.CreateAdminInput
	if err := decodeAndValidate(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	admin, err := h.userService.CreateAdmin(r.Context(), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("admin_id", admin.ID).Msg("admin created")
	h.resp.JSON(w, http.StatusCreated, "Admin created successfully", admin)
}

// CreateLecturer создает преподавателя
// POST /api/v1/admin/lecturers
func (h *Handler) CreateLecturer(w http.ResponseWriter, r *http.Request) {
	var req users.CreateLecturerInput
	if err := decodeAndValidate(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	lecturer, err := h.userService.CreateLecturer(r.Context(), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("lecturer_id", lecturer.ID).Msg("lecturer created")
	h.resp.JSON(w, http.StatusCreated, "Lecturer created successfully", lecturer)
}

// CreateStudent создает студента
// POST /api/v1/admin/students
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req users.CreateStudentInput
	if err := decodeAndValidate(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	student, err := h.userService.CreateStudent(r.Context(), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("reg_no", student.RegNo).Msg("student created")
	h.resp.JSON(w, http.StatusCreated, "Student created successfully", student)
}

// getIntParam читает целый query параметр со значением по умолчанию
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func pageRequest(r *http.Request) users.PageRequest {
	return users.PageRequest{
		Page:  getIntParam(r, "page", 1),
		Limit: getIntParam(r, "limit", 10),
	}
}

// ListLecturers возвращает страницу преподавателей
// GET /api/v1/admin/lecturers?page=1&limit=10
func (h *Handler) ListLecturers(w http.ResponseWriter, r *http.Request) {
	page, err := h.userService.ListLecturers(r.Context(), pageRequest(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, "Lecturers retrieved", page)
}

// ListStudents возвращает страницу студентов
// GET /api/v1/students?page=1&limit=10
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	page, err := h.userService.ListStudents(r.Context(), pageRequest(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, "Students retrieved", page)
}

// AccountRequest адресует учетную запись преподавателя или студента.
// Номер зачетки содержит "/", поэтому передается в теле, а не в пути.
type AccountRequest struct {
	Role users.Role `json:"role" validate:"required,role"`
	ID   string     `json:"id" validate:"required,max=255"`
}

// SuspendAccount блокирует учетную запись
// POST /api/v1/admin/accounts/suspend
func (h *Handler) SuspendAccount(w http.ResponseWriter, r *http.Request) {
	h.setAccountStatus(w, r, "suspend")
}

// UnsuspendAccount разблокирует учетную запись
// POST /api/v1/admin/accounts/unsuspend
func (h *Handler) UnsuspendAccount(w http.ResponseWriter, r *http.Request) {
	h.setAccountStatus(w, r, "unsuspend")
}

func (h *Handler) setAccountStatus(w http.ResponseWriter, r *http.Request, action string) {
	var req AccountRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	var err error
	if action == "suspend" {
		err = h.userService.Suspend(r.Context(), req.Role, req.ID)
	} else {
		err = h.userService.Unsuspend(r.Context(), req.Role, req.ID)
	}
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	metrics.RecordStatusChange(string(req.Role), action)
	logging.Ctx(r.Context()).Info().
		Str("role", string(req.Role)).
		Str("principal_id", req.ID).
		Str("action", action).
		Msg("account status changed")

	message := "Account suspended successfully"
	if action == "unsuspend" {
		message = "Account unsuspended successfully"
	}
	h.resp.JSON(w, http.StatusOK, message, req)
}

// DashboardCounts возвращает количество учетных записей по ролям
// GET /api/v1/dashboard/counts
func (h *Handler) DashboardCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.userService.Counts(r.Context())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, "Counts retrieved", counts)
}

// Health проверка живости
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.resp.JSON(w, http.StatusOK, "Server is running", map[string]string{"status": "ok"})
}
