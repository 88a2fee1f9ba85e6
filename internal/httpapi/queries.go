package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GET /firestation?stationNumber=N
func (h *Handler) coverage(c echo.Context) error {
	station, ok, err := intParam(c, "stationNumber")
	if !ok {
		return err
	}
	res, err := h.svc.Coverage(c.Request().Context(), station)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GET /childAlert?address=A
func (h *Handler) childAlert(c echo.Context) error {
	address, ok, err := requiredParam(c, "address")
	if !ok {
		return err
	}
	res, err := h.svc.ChildAlert(c.Request().Context(), address)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GET /phoneAlert?firestation=N
func (h *Handler) phoneAlert(c echo.Context) error {
	station, ok, err := intParam(c, "firestation")
	if !ok {
		return err
	}
	res, err := h.svc.PhoneAlert(c.Request().Context(), station)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GET /fire?address=A
func (h *Handler) fire(c echo.Context) error {
	address, ok, err := requiredParam(c, "address")
	if !ok {
		return err
	}
	res, err := h.svc.Fire(c.Request().Context(), address)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GET /flood/stations?stations=1,2
func (h *Handler) flood(c echo.Context) error {
	stations, ok, err := intListParam(c, "stations")
	if !ok {
		return err
	}
	res, err := h.svc.Flood(c.Request().Context(), stations)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GET /personInfo?lastName=L. firstName is accepted and ignored.
func (h *Handler) personInfo(c echo.Context) error {
	lastName, ok, err := requiredParam(c, "lastName")
	if !ok {
		return err
	}
	res, err := h.svc.PersonInfo(c.Request().Context(), lastName)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GET /communityEmail?city=C
func (h *Handler) communityEmail(c echo.Context) error {
	city, ok, err := requiredParam(c, "city")
	if !ok {
		return err
	}
	res, err := h.svc.CommunityEmail(c.Request().Context(), city)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
