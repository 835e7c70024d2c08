/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"net/http"

	"delayed-pool-go/internal/models"
)

// deposit accepts value from the caller into the pool. The response carries
// only the deposit id; the caller is never stored with it.
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req models.DepositRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := s.pool.Deposit(r.Context(), caller(r), req.Amount)
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.DepositResponse{DepositId: id})
}

func (s *Server) getDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "depositId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	deposit, err := s.pool.GetDeposit(r.Context(), id)
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deposit)
}
