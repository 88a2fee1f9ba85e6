package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"safetynet/internal/core"
)

func bindBody(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return badRequest(c, "invalid_request", "request body must be a JSON object: "+err.Error())
	}
	return nil
}

func (h *Handler) listResidents(c echo.Context) error {
	res, err := h.svc.ListResidents(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) createResident(c echo.Context) error {
	var body core.Resident
	if err := bindBody(c, &body); err != nil {
		return err
	}
	created, _, err := h.svc.CreateResident(c.Request().Context(), body)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateResident(c echo.Context) error {
	key, ok, err := personKeyParams(c)
	if !ok {
		return err
	}
	var body core.Resident
	if err := bindBody(c, &body); err != nil {
		return err
	}
	updated, _, err := h.svc.UpdateResident(c.Request().Context(), key, body)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteResident(c echo.Context) error {
	key, ok, err := personKeyParams(c)
	if !ok {
		return err
	}
	if _, err := h.svc.DeleteResident(c.Request().Context(), key); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listStations(c echo.Context) error {
	res, err := h.svc.ListStationAssignments(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) createStation(c echo.Context) error {
	var body core.StationAssignment
	if err := bindBody(c, &body); err != nil {
		return err
	}
	created, _, err := h.svc.CreateStationAssignment(c.Request().Context(), body)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateStation(c echo.Context) error {
	address, ok, err := requiredParam(c, "address")
	if !ok {
		return err
	}
	var body core.StationAssignment
	if err := bindBody(c, &body); err != nil {
		return err
	}
	updated, _, err := h.svc.UpdateStationAssignment(c.Request().Context(), address, body)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteStation(c echo.Context) error {
	address, ok, err := requiredParam(c, "address")
	if !ok {
		return err
	}
	if _, err := h.svc.DeleteStationAssignment(c.Request().Context(), address); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listRecords(c echo.Context) error {
	res, err := h.svc.ListMedicalRecords(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) createRecord(c echo.Context) error {
	var body core.MedicalRecord
	if err := bindBody(c, &body); err != nil {
		return err
	}
	created, _, err := h.svc.CreateMedicalRecord(c.Request().Context(), body)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateRecord(c echo.Context) error {
	key, ok, err := personKeyParams(c)
	if !ok {
		return err
	}
	var body core.MedicalRecord
	if err := bindBody(c, &body); err != nil {
		return err
	}
	updated, _, err := h.svc.UpdateMedicalRecord(c.Request().Context(), key, body)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteRecord(c echo.Context) error {
	key, ok, err := personKeyParams(c)
	if !ok {
		return err
	}
	if _, err := h.svc.DeleteMedicalRecord(c.Request().Context(), key); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
