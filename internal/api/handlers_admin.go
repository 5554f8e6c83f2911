// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/auth"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/models"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/rls"
)

var orderStatuses = map[string]struct{}{
	"pending": {}, "paid": {}, "shipped": {}, "delivered": {}, "cancelled": {}, "refunded": {},
}

// CSRFToken returns the anti-forgery token bound to the caller's session.
//
// Method: GET
// Path: /api/v1/auth/csrf
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	ac, err := authContext(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, models.CSRFTokenResponse{
		Token:  h.composer.CSRFToken(ac.SessionID()),
		Header: auth.CSRFHeaderName,
	}, time.Time{})
}

// ListProducts returns the caller's tenant catalogue.
//
// Method: GET
// Path: /api/v1/admin/products
// Query: limit (1-500, default 50), offset
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ac, err := authContext(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		respondRequestError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	rows, err := rls.Execute(r.Context(), h.executor, ac, rls.ResourceProducts,
		func(ctx context.Context, c *rls.ScopedClient) ([]rls.Row, error) {
			return c.Select(ctx, rls.Query{
				OrderBy: []rls.OrderBy{{Column: "name"}, {Column: "id"}},
				Limit:   limit,
				Offset:  offset,
			})
		}, rls.DefaultOptions())
	if err != nil {
		respondError(w, r, err)
		return
	}

	products := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, productFromRow(row))
	}
	respondData(w, r, http.StatusOK, products, start)
}

// CreateProduct adds a product to the caller's tenant. The tenant column is
// stamped by the scoped client, never taken from the body.
//
// Method: POST
// Path: /api/v1/admin/products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ac, err := authContext(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req models.CreateProductRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	row := rls.Row{
		"id":          uuid.NewString(),
		"name":        req.Name,
		"price_cents": req.PriceCents,
		"stock":       req.Stock,
		"updated_at":  h.now().UTC(),
	}
	created, err := rls.Execute(r.Context(), h.executor, ac, rls.ResourceProducts,
		func(ctx context.Context, c *rls.ScopedClient) (rls.Row, error) {
			if _, err := c.Insert(ctx, "", row); err != nil {
				return nil, err
			}
			for _, p := range c.Filter().Predicates {
				if p.Operator == rls.OpEq {
					row[p.Column] = p.Value
				}
			}
			return row, nil
		}, rls.DefaultOptions())
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondData(w, r, http.StatusCreated, productFromRow(created), start)
}

// ListOrders returns the orders visible to the caller: the whole tenant for
// staff, only their own for customers.
//
// Method: GET
// Path: /api/v1/admin/orders
// Query: status, limit, offset
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ac, err := authContext(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		respondRequestError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var where []rls.Predicate
	if status := r.URL.Query().Get("status"); status != "" {
		if _, ok := orderStatuses[status]; !ok {
			respondRequestError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Unknown order status")
			return
		}
		where = append(where, rls.Eq("status", status))
	}

	rows, err := rls.Execute(r.Context(), h.executor, ac, rls.ResourceOrders,
		func(ctx context.Context, c *rls.ScopedClient) ([]rls.Row, error) {
			return c.Select(ctx, rls.Query{
				Where:   where,
				OrderBy: []rls.OrderBy{{Column: "id", Desc: true}},
				Limit:   limit,
				Offset:  offset,
			})
		}, rls.DefaultOptions())
	if err != nil {
		respondError(w, r, err)
		return
	}

	orders := make([]models.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, orderFromRow(row))
	}
	respondData(w, r, http.StatusOK, orders, start)
}

func productFromRow(row rls.Row) models.Product {
	return models.Product{
		ID:         rowString(row["id"]),
		TenantID:   rowString(row["tenant_id"]),
		Name:       rowString(row["name"]),
		PriceCents: rowInt64(row["price_cents"]),
		Stock:      rowInt64(row["stock"]),
		UpdatedAt:  rowTime(row["updated_at"]),
	}
}

func orderFromRow(row rls.Row) models.Order {
	return models.Order{
		ID:         rowString(row["id"]),
		TenantID:   rowString(row["tenant_id"]),
		OwnerID:    rowString(row["owner_id"]),
		Status:     rowString(row["status"]),
		TotalCents: rowInt64(row["total_cents"]),
	}
}
