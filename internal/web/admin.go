package web

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storefront-bff/internal/auth"
	"storefront-bff/internal/models"
	"storefront-bff/internal/ordercontext"
)

var orderStatuses = []string{
	ordercontext.StatusPendingApproval,
	ordercontext.StatusApproved,
	ordercontext.StatusRejected,
	ordercontext.StatusInvoiced,
	ordercontext.StatusShipped,
	ordercontext.StatusDelivered,
	ordercontext.StatusCancelled,
}

type ordersData struct {
	Status   string
	Statuses []string
	Orders   []models.OrderContext
	Total    int
}

func (p *Pages) AdminOrders(w http.ResponseWriter, r *http.Request) {
	pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))
	filter := models.OrderFilter{Status: r.URL.Query().Get("status"), Page: pageNum}

	list, err := p.sf.Orders(r.Context(), filter)
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	data := ordersData{
		Status:   filter.Status,
		Statuses: orderStatuses,
		Orders:   make([]models.OrderContext, 0, len(list.Items)),
		Total:    list.Total,
	}
	if data.Status == "" {
		data.Status = ordercontext.StatusPendingApproval
	}
	for _, rec := range list.Items {
		data.Orders = append(data.Orders, ordercontext.FromRecord(rec))
	}
	p.render(w, http.StatusOK, "admin_orders", page{Title: "Orders", Admin: true, Data: data})
}

func (p *Pages) AdminOrder(w http.ResponseWriter, r *http.Request) {
	d, err := p.sf.OrderDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	pg := page{Title: "Order " + d.Order.Number, Admin: true, Data: d}
	switch r.URL.Query().Get("done") {
	case models.ActionApprove:
		pg.Notice = "Order approved."
	case models.ActionReject:
		pg.Notice = "Order rejected."
	}
	p.render(w, http.StatusOK, "admin_order", pg)
}

// AdminDecide handles the approve and reject forms and redirects back to
// the order.
func (p *Pages) AdminDecide(approve bool) http.HandlerFunc {
	action := models.ActionReject
	if approve {
		action = models.ActionApprove
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		_, err := p.sf.Decide(r.Context(), id, action, r.PostFormValue("reason"), auth.UserID(r.Context()))
		if err != nil {
			p.renderError(w, r, err)
			return
		}
		http.Redirect(w, r, "/admin/orders/"+url.PathEscape(id)+"?done="+action, http.StatusSeeOther)
	}
}

type reportsData struct {
	From   string
	To     string
	Report *models.SalesReport
}

func (p *Pages) Reports(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")

	rep, err := p.sf.Sales(r.Context(), from, to)
	if err != nil {
		p.renderError(w, r, err)
		return
	}
	p.render(w, http.StatusOK, "reports", page{Title: "Sales report", Admin: true, Data: reportsData{From: rep.From, To: rep.To, Report: rep}})
}
