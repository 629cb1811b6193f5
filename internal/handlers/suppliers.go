package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/lib/pq"

	"procurement/db"
	"procurement/internal/ai"
)

// Число поставщиков для контакта по умолчанию; переопределяется настройкой.
const defaultSuppliersToContact = 5

// CreateSupplierHandler обрабатывает POST /api/suppliers/new
func (h *Handler) CreateSupplierHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name          string     `json:"name"`
		TaxID         *string    `json:"taxId"`
		Email         string     `json:"email"`
		Phone         string     `json:"phone"`
		Whatsapp      string     `json:"whatsapp"`
		Website       string     `json:"website"`
		Tags          []string   `json:"tags"`
		Rating        float64    `json:"rating"`
		ContractFrom  *time.Time `json:"contractFrom"`
		ContractUntil *time.Time `json:"contractUntil"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}
	if input.Name == "" {
		h.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	sup := &db.Supplier{
		Name:          input.Name,
		TaxID:         input.TaxID,
		Email:         input.Email,
		Phone:         input.Phone,
		Whatsapp:      input.Whatsapp,
		Website:       input.Website,
		Tags:          pq.StringArray(input.Tags),
		Rating:        input.Rating,
		ContractFrom:  input.ContractFrom,
		ContractUntil: input.ContractUntil,
		IsActive:      true,
		Source:        "manual",
	}
	if sup.Tags == nil {
		sup.Tags = pq.StringArray{}
	}
	if err := h.Store.CreateSupplier(r.Context(), sup); err != nil {
		h.respondStorageError(w, err, "supplier")
		return
	}

	h.audit(r.Context(), currentUser(r), "supplier.create", "supplier", strconv.Itoa(sup.ID), nil)
	h.respondData(w, http.StatusOK, sup)
}

// GetSuppliersHandler возвращает список поставщиков
func (h *Handler) GetSuppliersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	filter := db.SupplierFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Tag:        r.URL.Query().Get("tag"),
		Limit:      params.Limit,
		Offset:     params.Offset,
	}

	suppliers, err := h.Store.GetSuppliers(r.Context(), filter)
	if err != nil {
		h.respondStorageError(w, err, "suppliers")
		return
	}
	h.respondData(w, http.StatusOK, suppliers)
}

// EditSupplierHandler обрабатывает PATCH /api/suppliers/{supplierId}
func (h *Handler) EditSupplierHandler(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := h.intParam(w, r, "supplierId")
	if !ok {
		return
	}

	var input struct {
		Name     *string  `json:"name"`
		Email    *string  `json:"email"`
		Phone    *string  `json:"phone"`
		Whatsapp *string  `json:"whatsapp"`
		Website  *string  `json:"website"`
		Tags     []string `json:"tags"`
		Rating   *float64 `json:"rating"`
		IsActive *bool    `json:"isActive"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}

	sup, err := h.Store.GetSupplier(r.Context(), supplierID)
	if err != nil {
		h.respondStorageError(w, err, "supplier")
		return
	}

	if input.Name != nil {
		sup.Name = *input.Name
	}
	if input.Email != nil {
		sup.Email = *input.Email
	}
	if input.Phone != nil {
		sup.Phone = *input.Phone
	}
	if input.Whatsapp != nil {
		sup.Whatsapp = *input.Whatsapp
	}
	if input.Website != nil {
		sup.Website = *input.Website
	}
	if input.Tags != nil {
		sup.Tags = pq.StringArray(input.Tags)
	}
	if input.Rating != nil {
		sup.Rating = *input.Rating
	}
	if input.IsActive != nil {
		sup.IsActive = *input.IsActive
	}

	if err := h.Store.UpdateSupplier(r.Context(), sup); err != nil {
		h.respondStorageError(w, err, "supplier")
		return
	}
	h.respondData(w, http.StatusOK, sup)
}

// SearchSuppliersHandler обрабатывает POST /api/suppliers/search: опрос
// провайдеров, оценка кандидатов, сохранение найденного. Запрос строится
// из позиции либо берётся как есть.
func (h *Handler) SearchSuppliersHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		PositionID int    `json:"positionId"`
		Query      string `json:"query"`
		TopN       int    `json:"topN"`
	}
	if err := decodeBody(r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}
	if input.Query == "" && input.PositionID <= 0 {
		h.respondError(w, http.StatusBadRequest, "query or positionId is required")
		return
	}

	requirement := ai.Requirement{Name: input.Query}
	query := input.Query
	if input.PositionID > 0 {
		pos, err := h.Store.GetPosition(r.Context(), input.PositionID)
		if err != nil {
			h.respondStorageError(w, err, "position")
			return
		}
		requirement = ai.Requirement{
			Name:        pos.Name,
			Description: pos.Description,
			Quantity:    pos.Quantity,
			Unit:        pos.Unit,
		}
		if query == "" {
			query = pos.Name + " купить поставщик"
		}
	}

	results, err := h.Searcher.Search(r.Context(), query)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "search failed: "+err.Error())
		return
	}

	candidates := make([]ai.Candidate, 0, len(results))
	for _, res := range results {
		c := ai.Candidate{
			Name:    res.CompanyName,
			Website: res.URL,
			Snippet: res.Snippet,
		}
		if res.Price != nil {
			// Наличие цены в выдаче — сигнал релевантности.
			c.SearchRelevance = 20
		}
		candidates = append(candidates, c)
	}

	topN := input.TopN
	if topN <= 0 {
		topN = h.Store.GetSettingInt(r.Context(), db.SettingSuppliersToSearch, defaultSuppliersToContact)
	}
	analyses := h.Ranker.RankSuppliers(r.Context(), requirement, candidates, topN)

	// Найденные кандидаты сохраняются как поставщики; дубликат по
	// уникальному ключу не считается ошибкой поиска.
	saved := 0
	for _, res := range results {
		sup := &db.Supplier{
			Name:     res.CompanyName,
			Website:  res.URL,
			IsActive: true,
			Source:   res.Source,
			Tags:     pq.StringArray{},
		}
		if err := h.Store.CreateSupplier(r.Context(), sup); err != nil {
			if !db.IsUniqueViolation(err) {
				h.Logger.Warnw("save discovered supplier failed", "name", res.CompanyName, "error", err)
			}
			continue
		}
		saved++
	}

	h.respondData(w, http.StatusOK, map[string]interface{}{
		"results":  results,
		"analyses": analyses,
		"saved":    saved,
	})
}
