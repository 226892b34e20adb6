package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	id, err := s.deps.Users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "ok", "user_id": id})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	token, err := s.deps.Users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "token": token})
}

type createTransactionRequest struct {
	UserID     *int64      `json:"user_id"`
	Amount     *jsonAmount `json:"amount"`
	CategoryID *int        `json:"category_id"`
	Note       string      `json:"note"`
	Date       string      `json:"tx_date"`
}

type createTransactionResponse struct {
	Status       string `json:"status"`
	ID           int64  `json:"tx_id"`
	AutoCategory *int   `json:"auto_category,omitempty"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	var missing missingFields
	missing.check("amount", req.Amount != nil)
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, missing.message())
		return
	}

	// A zero user_id in the body is treated as absent.
	claimed := req.UserID
	if claimed != nil && *claimed == 0 {
		claimed = nil
	}
	userID, ok := requestUser(w, r, claimed)
	if !ok {
		return
	}

	in := services.CreateTransactionInput{
		UserID: userID,
		Amount: req.Amount.Decimal,
		Note:   req.Note,
	}
	if req.CategoryID != nil {
		in.CategoryID = core.CategoryID(*req.CategoryID)
	}
	if strings.TrimSpace(req.Date) != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid tx_date, expected YYYY-MM-DD")
			return
		}
		in.Date = d
	}

	res, err := s.deps.Transactions.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, "create_transaction", err)
		return
	}

	resp := createTransactionResponse{Status: "ok", ID: res.ID}
	if res.AutoCategory {
		auto := int(res.CategoryID)
		resp.AutoCategory = &auto
	}
	writeJSON(w, http.StatusCreated, resp)
}

type transactionResponse struct {
	ID         int64  `json:"tx_id"`
	CategoryID int    `json:"category_id"`
	Amount     money  `json:"amount"`
	Note       string `json:"note"`
	Date       string `json:"tx_date"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	claimed, ok := queryUserID(w, r)
	if !ok {
		return
	}
	userID, ok := requestUser(w, r, claimed)
	if !ok {
		return
	}

	txs, err := s.deps.Transactions.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "list_transactions", err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionResponse{
			ID:         t.ID,
			CategoryID: int(t.CategoryID),
			Amount:     money(t.Amount),
			Note:       t.Note,
			Date:       t.Date.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// queryUserID reads the optional user_id query parameter.
func queryUserID(w http.ResponseWriter, r *http.Request) (*int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user_id")
		return nil, false
	}
	return &id, true
}

type upsertBudgetRequest struct {
	CategoryID *int        `json:"category_id"`
	Limit      *jsonAmount `json:"limit_amount"`
	Month      *string     `json:"month_year"`
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req upsertBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	var missing missingFields
	missing.check("category_id", req.CategoryID != nil)
	missing.check("limit_amount", req.Limit != nil)
	missing.check("month_year", req.Month != nil)
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, missing.message())
		return
	}

	userID, ok := requestUser(w, r, nil)
	if !ok {
		return
	}
	month, err := core.ParseMonth(*req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month_year, expected YYYY-MM")
		return
	}

	id, err := s.deps.Budgets.Upsert(r.Context(), core.Budget{
		UserID:     userID,
		CategoryID: core.CategoryID(*req.CategoryID),
		Limit:      req.Limit.Decimal,
		Month:      month,
	})
	if err != nil {
		writeServiceError(w, r, "upsert_budget", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "ok", "budget_id": id})
}

type budgetStatusResponse struct {
	CategoryID  int    `json:"category_id"`
	Category    string `json:"category"`
	Limit       money  `json:"limit_amount"`
	Spent       money  `json:"spent"`
	UsedPercent money  `json:"used_percent"`
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	claimed, ok := queryUserID(w, r)
	if !ok {
		return
	}
	userID, ok := requestUser(w, r, claimed)
	if !ok {
		return
	}
	month, ok := monthParam(w, r, true, core.Month{})
	if !ok {
		return
	}

	statuses, err := s.deps.Budgets.Status(r.Context(), userID, month)
	if err != nil {
		writeServiceError(w, r, "budget_status", err)
		return
	}
	out := make([]budgetStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, budgetStatusResponse{
			CategoryID:  int(st.CategoryID),
			Category:    st.Category,
			Limit:       money(st.Limit),
			Spent:       money(st.Spent),
			UsedPercent: money(st.UsedPercent),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCheckAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r, nil)
	if !ok {
		return
	}
	month, ok := monthParam(w, r, false, core.CurrentMonth(time.Now()))
	if !ok {
		return
	}

	sent, err := s.deps.Budgets.CheckAndNotify(r.Context(), userID, month)
	if err != nil {
		writeServiceError(w, r, "check_alerts", err)
		return
	}
	slog.InfoContext(r.Context(), "Budget alerts checked",
		log.FieldComponent, log.ComponentBudget,
		log.FieldOperation, log.OpAlert,
		log.FieldMonth, month.String(),
		"alerts", sent)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "Budget alerts checked",
		"alerts":  sent,
	})
}

type monthlyTotalResponse struct {
	Month string `json:"month"`
	Total money  `json:"total_expense"`
}

type categoryTotalResponse struct {
	Category string `json:"category"`
	Total    money  `json:"total_expense"`
}

type forecastResponse struct {
	Months        []string `json:"months"`
	PredictedNext money    `json:"predicted_next"`
}

func monthlyResponse(totals []core.MonthlyTotal) []monthlyTotalResponse {
	out := make([]monthlyTotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, monthlyTotalResponse{Month: t.Month.String(), Total: money(t.Total)})
	}
	return out
}

func categoryResponse(totals []core.CategoryTotal) []categoryTotalResponse {
	out := make([]categoryTotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, categoryTotalResponse{Category: t.Category, Total: money(t.Total)})
	}
	return out
}

func newForecastResponse(f core.Forecast) forecastResponse {
	months := make([]string, len(f.Months))
	for i, m := range f.Months {
		months[i] = m.String()
	}
	return forecastResponse{Months: months, PredictedNext: money(f.PredictedNext)}
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r, nil)
	if !ok {
		return
	}
	totals, err := s.deps.Reports.Monthly(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "report_monthly", err)
		return
	}
	writeJSON(w, http.StatusOK, monthlyResponse(totals))
}

func (s *Server) handleCategoryReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r, nil)
	if !ok {
		return
	}
	totals, err := s.deps.Reports.ByCategory(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "report_category", err)
		return
	}
	writeJSON(w, http.StatusOK, categoryResponse(totals))
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r, nil)
	if !ok {
		return
	}
	f, err := s.deps.Reports.Forecast(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "predict", err)
		return
	}
	writeJSON(w, http.StatusOK, newForecastResponse(f))
}

// handleDashboard returns every report in one response. forecast is null
// when there is not enough data.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r, nil)
	if !ok {
		return
	}
	d, err := s.deps.Reports.Dashboard(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "dashboard", err)
		return
	}
	var forecast *forecastResponse
	if d.Forecast != nil {
		f := newForecastResponse(*d.Forecast)
		forecast = &f
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"monthly":  monthlyResponse(d.Monthly),
		"category": categoryResponse(d.Categories),
		"forecast": forecast,
	})
}

type reportPage struct {
	GeneratedAt time.Time
	Categories  []core.Category
}

func (s *Server) handleReportPage(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		writeError(w, http.StatusInternalServerError, "Templates not loaded")
		return
	}
	page := reportPage{GeneratedAt: time.Now()}
	if s.deps.Classifier != nil {
		page.Categories = s.deps.Classifier.Categories()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "report.html", page); err != nil {
		slog.ErrorContext(r.Context(), "Failed to render report page",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
	}
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r, nil)
	if !ok {
		return
	}
	retrained, err := s.deps.Classifier.RetrainForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "retrain", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "retrained": retrained})
}

func (s *Server) handleClassifierPredict(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestUser(w, r, nil); !ok {
		return
	}
	p := s.deps.Classifier.Predict(r.URL.Query().Get("note"))
	writeJSON(w, http.StatusOK, map[string]any{
		"category_id":   int(p.CategoryID),
		"category":      p.Category,
		"auto_detected": p.AutoDetected,
	})
}
