package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aep/mintdb/api"
	"github.com/aep/mintdb/db"
	"github.com/labstack/echo/v4"
)

func (s *server) handleGet(c echo.Context) error {
	key, err := decodeKey(c.Param("key"))
	if err != nil {
		return err
	}

	value, ok, err := s.h.Get(c.Request().Context(), key)
	if err != nil {
		return s.fail(c, err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "key not found")
	}

	return c.JSON(http.StatusOK, api.GetResponse{Key: key, Value: value})
}

func (s *server) handlePut(c echo.Context) error {
	key, err := decodeKey(c.Param("key"))
	if err != nil {
		return err
	}

	var req api.PutRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Value == nil {
		req.Value = []byte{}
	}

	prev, existed, err := s.h.Insert(c.Request().Context(), key, req.Value)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusOK, api.PrevResponse{Existed: existed, Previous: prev})
}

func (s *server) handleDelete(c echo.Context) error {
	key, err := decodeKey(c.Param("key"))
	if err != nil {
		return err
	}

	prev, existed, err := s.h.Remove(c.Request().Context(), key)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusOK, api.PrevResponse{Existed: existed, Previous: prev})
}

func (s *server) handleScan(c echo.Context) error {
	prefix, err := decodeBase64(c.QueryParam("prefix"))
	if err != nil {
		return err
	}

	entries, err := s.h.ScanPrefix(c.Request().Context(), prefix)
	if err != nil {
		return s.fail(c, err)
	}

	rsp := api.ScanResponse{Entries: make([]api.Entry, len(entries))}
	for i, e := range entries {
		rsp.Entries[i] = api.Entry{Key: e.Key, Value: e.Value}
	}
	return c.JSON(http.StatusOK, rsp)
}

func (s *server) handleBatch(c echo.Context) error {
	var req api.BatchRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	batch := make(db.Batch, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Key == nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("items[%d]: key is required", i))
		}
		bi, err := db.NewBatchItem(item.Op, item.Key, item.Value)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("items[%d]: %v", i, err))
		}
		batch = append(batch, bi)
	}

	ctx := c.Request().Context()
	var report *db.BatchReport
	var err error
	if req.Atomic {
		report, err = s.h.ApplyAtomic(ctx, batch)
	} else {
		report, err = s.h.Apply(ctx, batch)
	}

	rsp := api.BatchResponse{}
	if report != nil {
		rsp.Applied = report.Applied
		rsp.Violations = toViolations(report.Violations)
	}
	if err == nil {
		return c.JSON(http.StatusOK, rsp)
	}

	var be *db.BatchError
	if !errors.As(err, &be) {
		return s.fail(c, err)
	}

	code := statusFor(err)
	if code >= 500 {
		s.log.Error("batch failed", "index", be.Index, "applied", rsp.Applied, "err", err)
	}
	rsp.Error = err.Error()
	rsp.Index = &be.Index
	return c.JSON(code, rsp)
}
