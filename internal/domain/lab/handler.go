package lab

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/pkg/pagination"
)

type Handler struct {
	svc     *Service
	catalog Catalog
}

func NewHandler(svc *Service, catalog Catalog) *Handler {
	return &Handler{svc: svc, catalog: catalog}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – lab staff and clinicians
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "lab_tech", "lab_supervisor"))
	readGroup.GET("/lab-orders", h.Worklist)
	readGroup.GET("/lab-orders/:id", h.GetOrder)
	readGroup.GET("/patients/:patientRef/lab-orders", h.ListByPatient)
	readGroup.GET("/catalog/tests", h.ListCatalog)

	// Write endpoints – ordering and bench work
	writeGroup := api.Group("", auth.RequireRole("admin", "physician", "lab_tech"))
	writeGroup.POST("/lab-orders", h.CreateOrder)
	writeGroup.POST("/lab-orders/:id/tests/:testId/collect", h.CollectSample)
	writeGroup.POST("/lab-orders/:id/tests/:testId/start", h.StartTest)
	writeGroup.POST("/lab-orders/:id/tests/:testId/results", h.RecordResult)
	writeGroup.POST("/lab-orders/:id/tests/:testId/cancel", h.CancelTest)
	writeGroup.POST("/lab-orders/:id/cancel", h.CancelOrder)

	// Result release requires supervisory review
	approveGroup := api.Group("", auth.RequireRole("admin", "physician", "lab_supervisor"))
	approveGroup.POST("/lab-orders/:id/tests/:testId/approve", h.ApproveResult)
}

// httpError maps workflow error kinds to HTTP statuses. Conflicts signal the
// client to re-fetch and resubmit; command-rule violations are 422 so they
// are distinguishable from malformed requests.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "the order was modified concurrently; refresh and retry")
	case errors.Is(err, ErrOrderAlreadyTerminal):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrResultNotReady),
		errors.Is(err, ErrIncompleteResult),
		errors.Is(err, ErrEmptyTestList),
		errors.Is(err, ErrUnknownTestType),
		errors.Is(err, ErrSelfApproval):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var in CreateOrderInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.OrderingStaffRef == "" {
		in.OrderingStaffRef = auth.UserIDFromContext(c.Request().Context())
	}
	o, err := h.svc.CreateOrder(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetOrder(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	o, err := h.svc.GetOrder(c.Request().Context(), orderID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	pg := pagination.FromContext(c)
	orders, total, err := h.svc.ListOrdersByPatient(c.Request().Context(), c.Param("patientRef"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(orders, total, pg.Limit, pg.Offset))
}

// Worklist serves the operator queue, sorted by priority then age. Filters:
// ?status= derived order status, ?test_status= any contained test status.
// The queue holds open orders only; terminal statuses never match here and
// are served by the per-patient history endpoint instead.
func (h *Handler) Worklist(c echo.Context) error {
	f := WorklistFilter{
		Status:     OrderStatus(c.QueryParam("status")),
		TestStatus: TestStatus(c.QueryParam("test_status")),
	}
	orders, err := h.svc.Worklist(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	pg := pagination.FromContext(c)
	total := len(orders)
	lo := pg.Offset
	if lo > total {
		lo = total
	}
	hi := lo + pg.Limit
	if hi > total {
		hi = total
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(orders[lo:hi], total, pg.Limit, pg.Offset))
}

func (h *Handler) ListCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, h.catalog.List())
}

func (h *Handler) CollectSample(c echo.Context) error {
	orderID, testID, err := pathIDs(c)
	if err != nil {
		return err
	}
	collector := auth.UserIDFromContext(c.Request().Context())
	o, err := h.svc.CollectSample(c.Request().Context(), orderID, testID, collector)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) StartTest(c echo.Context) error {
	orderID, testID, err := pathIDs(c)
	if err != nil {
		return err
	}
	o, err := h.svc.StartTest(c.Request().Context(), orderID, testID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

type recordResultRequest struct {
	Values []ParameterValue `json:"values"`
}

func (h *Handler) RecordResult(c echo.Context) error {
	orderID, testID, err := pathIDs(c)
	if err != nil {
		return err
	}
	var req recordResultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	recorder := auth.UserIDFromContext(c.Request().Context())
	out, err := h.svc.RecordResult(c.Request().Context(), orderID, testID, recorder, req.Values)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

type approveRequest struct {
	ApproverRef string `json:"approver_ref"`
}

func (h *Handler) ApproveResult(c echo.Context) error {
	orderID, testID, err := pathIDs(c)
	if err != nil {
		return err
	}
	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ApproverRef == "" {
		req.ApproverRef = auth.UserIDFromContext(c.Request().Context())
	}
	o, err := h.svc.ApproveResult(c.Request().Context(), orderID, testID, req.ApproverRef)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelTest(c echo.Context) error {
	orderID, testID, err := pathIDs(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.CancelTest(c.Request().Context(), orderID, testID, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) CancelOrder(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.CancelOrder(c.Request().Context(), orderID, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func pathIDs(c echo.Context) (orderID, testID uuid.UUID, err error) {
	orderID, err = uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	testID, err = uuid.Parse(c.Param("testId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid test id")
	}
	return orderID, testID, nil
}
