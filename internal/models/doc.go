// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package models defines the HTTP data structures shared by the pipeline and the
admin API.

Key Components:

  - APIResponse: Standard response envelope with status, data and metadata
  - APIError: Public error form {code, message, request_id, retry_after_ms}
  - Product, Order: Admin catalogue and order views
  - PermissionUpdateRequest: Grant/revoke overlay payload

Public errors are derived from *secerr.Error values with NewAPIError. Only the
code's fixed public message is serialized; internal reasons, causes and
details never leave the process.
*/
package models
